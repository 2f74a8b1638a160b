// Copyright The Rye Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package volcache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/ryedb/ryecore/internal/diskvol"
)

// VolumeCreator is the narrow slice of diskvol.Manager the auto-extender
// needs: create a brand-new volume file and format it. Kept as an interface
// so this package never imports diskvol/format.go's FormatParams directly.
type VolumeCreator interface {
	CreateVolume(ctx context.Context, purpose diskvol.Purpose, hintVolid int32) (int32, error)
}

// Grower extends an already-open GENERIC volume's total_pages toward
// max_npages. GENERIC volumes grow in place rather than spawning a new
// volume file, until total_pages reaches max_npages.
type Grower interface {
	Grow(ctx context.Context, volid int32, addPages int32) error
}

// SpaceInfoProbe reads a volume's current purpose/free/total pages so
// ExtendOrCreate can register newly available space into the cache right
// after a successful grow or create — the router's retry-once path only
// sees the new space if the cache is updated before it re-runs
// find_volume_for. Injected as a closure over the real *diskvol.Manager, the
// same pattern as Router's MaxContiguousProbe, e.g.:
//
//	probe := func(volid int32) (diskvol.Purpose, int32, int32, bool) {
//	    v, ok := mgr.Get(volid)
//	    if !ok { return 0, 0, 0, false }
//	    info, err := diskalloc.PurposeAndSpaceInfo(v)
//	    if err != nil { return 0, 0, 0, false }
//	    return info.Purpose, info.Free, info.Total, true
//	}
type SpaceInfoProbe func(volid int32) (purpose diskvol.Purpose, free, total int32, ok bool)

// AutoExtender implements Extender by serializing concurrent extension
// requests for the same target through a singleflight.Group, so only one
// extension is ever in flight at a time even when many
// goroutines discover starvation simultaneously. incrementPages is the
// configured auto_extend_increment_pages (config.CacheConfig) added to a
// GENERIC volume per growth step, rather than growing straight to
// max_npages, so one shortage doesn't force one huge write.
type AutoExtender struct {
	cache          *Cache
	creator        VolumeCreator
	grower         Grower
	probe          SpaceInfoProbe
	incrementPages int32
	group          singleflight.Group
}

func NewAutoExtender(cache *Cache, creator VolumeCreator, grower Grower, probe SpaceInfoProbe, incrementPages int32) *AutoExtender {
	return &AutoExtender{cache: cache, creator: creator, grower: grower, probe: probe, incrementPages: incrementPages}
}

// ExtendOrCreate satisfies a shortage for purpose: TEMP requests get a
// brand-new TEMP volume, and every permanent purpose is served by growing
// the registered auto-extend GENERIC volume (creating a fresh GENERIC one
// if nothing is registered or the registered volume is out of headroom).
// Permanent DATA/INDEX volumes are never created on demand; GENERIC is the
// fallback group the router already searches for those purposes, so that
// is where new permanent space goes. Concurrent callers racing on the same
// target collapse into a single underlying extension via singleflight; all
// callers observe its result. Either way, the affected volume's fresh
// space is pushed back into the cache before returning, so the router's
// immediate retry actually sees it.
func (e *AutoExtender) ExtendOrCreate(ctx context.Context, purpose diskvol.Purpose, hintVolid int32) (int32, error) {
	target := extensionTarget(purpose)
	key := fmt.Sprintf("%d", target)

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		if target == diskvol.PermGeneric {
			if volid, ok := e.cache.AutoExtendVolid(); ok {
				if err := e.grower.Grow(ctx, volid, e.incrementPages); err == nil {
					e.registerSpace(volid)
					return volid, nil
				}
				// Growth failed, most likely because the volume hit
				// max_npages; fall through to creating a new one and
				// clear the stale registration.
				e.cache.SetAutoExtendVolid(0)
			}
		}
		volid, err := e.creator.CreateVolume(ctx, target, hintVolid)
		if err != nil {
			return nil, err
		}
		e.registerSpace(volid)
		if target == diskvol.PermGeneric {
			e.cache.SetAutoExtendVolid(volid)
		}
		return volid, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

// extensionTarget maps the requesting purpose onto the purpose of the
// volume actually extended or created. TEMP_TEMP and PERM_TEMP get a
// volume of their own purpose, EITHER_TEMP settles on PERM_TEMP, and every
// permanent purpose (DATA, INDEX, GENERIC) resolves to GENERIC.
func extensionTarget(purpose diskvol.Purpose) diskvol.Purpose {
	switch purpose {
	case diskvol.TempTemp, diskvol.PermTemp:
		return purpose
	case diskvol.EitherTemp:
		return diskvol.PermTemp
	default:
		return diskvol.PermGeneric
	}
}

// registerSpace pushes volid's current purpose/free/total pages into the
// cache via the injected probe. A nil probe (e.g. a test with no cache
// expectations) makes this a no-op rather than a panic.
func (e *AutoExtender) registerSpace(volid int32) {
	if e.probe == nil {
		return
	}
	if purpose, free, total, ok := e.probe(volid); ok {
		e.cache.UpdateHint(volid, purpose, free, total)
	}
}
