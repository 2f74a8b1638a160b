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
	"errors"

	"github.com/ryedb/ryecore/internal/diskvol"
)

// Mode is the allocation-contiguity mode
type Mode int

const (
	Contiguous Mode = iota
	NoncontiguousSameVol
	NoncontiguousSpanVols
)

// ErrNotEnoughPages is FILE_NOT_ENOUGH_PAGES_IN_DATABASE —
// recoverable by the caller, who may back off and retry.
var ErrNotEnoughPages = errors.New("volcache: not enough pages in database")

// MaxContiguousProbe reports the longest contiguous free-page run available
// in volid, capped at cap (backed by diskalloc.MaxContiguous). It is
// injected as a function rather than a direct diskalloc import so this
// package stays a thin coordinator over the allocator; callers wire it
// with a closure over their *diskvol.Manager, e.g.:
//
//	probe := func(volid int32, cap int) int {
//	    v, ok := mgr.Get(volid)
//	    if !ok { return 0 }
//	    return diskalloc.MaxContiguous(v, cap)
//	}
type MaxContiguousProbe func(volid int32, cap int) int

// Extender requests volume extension: a new TEMP volume, or growth of the
// registered auto-extend GENERIC volume. The router asks for it when no
// candidate qualifies, then retries the search once.
type Extender interface {
	ExtendOrCreate(ctx context.Context, purpose diskvol.Purpose, hintVolid int32) (volid int32, err error)
}

// Router implements find_volume_for.
type Router struct {
	cache   *Cache
	probe   MaxContiguousProbe
	extend  Extender
}

func NewRouter(cache *Cache, probe MaxContiguousProbe, extend Extender) *Router {
	return &Router{cache: cache, probe: probe, extend: extend}
}

// searchOrder returns, for each purpose, the ordered list of candidate
// purposes to search. hintVolid's own purpose is tried
// first for the TEMP purposes, which accept a matching hint volume.
func searchOrder(purpose diskvol.Purpose) []diskvol.Purpose {
	switch purpose {
	case diskvol.PermData:
		return []diskvol.Purpose{diskvol.PermData, diskvol.PermGeneric}
	case diskvol.PermIndex:
		return []diskvol.Purpose{diskvol.PermIndex, diskvol.PermGeneric}
	case diskvol.PermGeneric, diskvol.PurposeUnknown:
		return []diskvol.Purpose{diskvol.PermGeneric}
	case diskvol.TempTemp:
		return []diskvol.Purpose{diskvol.TempTemp, diskvol.PermTemp}
	case diskvol.PermTemp:
		return []diskvol.Purpose{diskvol.PermTemp}
	case diskvol.EitherTemp:
		return []diskvol.Purpose{diskvol.PermTemp, diskvol.TempTemp}
	default:
		return nil
	}
}

// FindVolumeFor picks a target volume for an allocation request. It tries
// the hint volume first when the purpose's search order
// calls for it (the TEMP_TEMP/PERM_TEMP/EITHER_TEMP rows), then searches
// each candidate purpose group in order, picking within a group the volume
// with the most free pages, breaking ties toward one that can supply
// exp_npages contiguously. If nothing qualifies, it asks the Extender to
// grow or create a volume and retries exactly once before reporting
// ErrNotEnoughPages.
func (r *Router) FindVolumeFor(ctx context.Context, purpose diskvol.Purpose, hintVolid, undesirableVolid, expNpages int32, mode Mode) (int32, error) {
	volid, err := r.findOnce(purpose, hintVolid, undesirableVolid, expNpages, mode)
	if err == nil {
		return volid, nil
	}
	if r.extend == nil {
		return 0, ErrNotEnoughPages
	}

	if _, err := r.extend.ExtendOrCreate(ctx, purpose, hintVolid); err != nil {
		return 0, ErrNotEnoughPages
	}

	volid, err = r.findOnce(purpose, hintVolid, undesirableVolid, expNpages, mode)
	if err != nil {
		return 0, ErrNotEnoughPages
	}
	return volid, nil
}

func (r *Router) findOnce(purpose diskvol.Purpose, hintVolid, undesirableVolid, expNpages int32, mode Mode) (int32, error) {
	isTempFamily := purpose == diskvol.TempTemp || purpose == diskvol.PermTemp || purpose == diskvol.EitherTemp
	if isTempFamily && hintVolid > 0 && hintVolid != undesirableVolid {
		if h, ok := r.cache.hints.Get(cacheKey(hintVolid)); ok {
			hv := h.(hint)
			if hintMatchesPurpose(purpose, hv.Purpose) && r.qualifies(hintVolid, hv, expNpages, mode) {
				return hintVolid, nil
			}
		}
	}

	for _, group := range searchOrder(purpose) {
		if volid, ok := r.bestInGroup(group, undesirableVolid, expNpages, mode); ok {
			return volid, nil
		}
	}
	return 0, ErrNotEnoughPages
}

// hintMatchesPurpose implements the hint-if-matches qualifier for
// TEMP_TEMP requests: the hint volume only short-circuits the search if it is
// already of a purpose the router would otherwise accept.
func hintMatchesPurpose(requested, actual diskvol.Purpose) bool {
	for _, p := range searchOrder(requested) {
		if p == actual {
			return true
		}
	}
	return actual == requested
}

func (r *Router) bestInGroup(purpose diskvol.Purpose, undesirableVolid, expNpages int32, mode Mode) (int32, bool) {
	best := int32(0)
	bestFree := int32(-1)
	bestSatisfiesContig := false

	r.cache.eachHint(func(volid int32, h hint) {
		if h.Purpose != purpose || volid == undesirableVolid {
			return
		}
		if !r.qualifies(volid, h, expNpages, mode) {
			return
		}
		satisfiesContig := mode != Contiguous || (r.probe != nil && r.probe(volid, int(expNpages)) >= int(expNpages))

		switch {
		case h.Free > bestFree:
			best, bestFree, bestSatisfiesContig = volid, h.Free, satisfiesContig
		case h.Free == bestFree && satisfiesContig && !bestSatisfiesContig:
			best, bestSatisfiesContig = volid, satisfiesContig
		}
	})
	if bestFree < 0 {
		return 0, false
	}
	return best, true
}

// qualifies applies the CONTIGUOUS mode's "verify the candidate can supply
// exp_npages contiguously" rule before a volume is accepted at
// all (not just used as a tiebreaker).
func (r *Router) qualifies(volid int32, h hint, expNpages int32, mode Mode) bool {
	if expNpages > 0 && h.Free < expNpages {
		return false
	}
	if mode == Contiguous && expNpages > 0 && r.probe != nil {
		return r.probe(volid, int(expNpages)) >= int(expNpages)
	}
	return true
}
