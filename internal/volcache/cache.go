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

// Package volcache implements the process-wide free-space cache
// and the allocation-cache router built on top of it.
package volcache

import (
	"fmt"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/atomic"

	"github.com/ryedb/ryecore/internal/diskvol"
)

// hint is what the cache remembers about one volume.
type hint struct {
	Purpose diskvol.Purpose
	Free    int32
	Total   int32
}

// purposeAggregate tracks the running totals for one purpose across every
// volume of that purpose. free/total are atomics so concurrent allocations
// can update them without taking the cache-wide lock.
type purposeAggregate struct {
	nvols atomic.Int32
	free  atomic.Int64
	total atomic.Int64
}

// Cache is the process-wide free-space cache. Per-volume hints live in a
// patrickmn/go-cache map configured with no expiration — volumes live for
// the process lifetime, so the cache is really just a concurrency-safe map
// with a convenient API, not a TTL cache. Per-purpose aggregates are kept
// separately so the router doesn't need to enumerate every volume of a
// purpose to answer "is there space".
type Cache struct {
	hints *gocache.Cache

	mu  sync.RWMutex // guards autoExtendVolid and the purpose map's membership
	agg [diskvol.PurposeUnknown + 1]*purposeAggregate

	autoExtendVolid int32 // 0 means "none registered"
	needAddGeneric  atomic.Bool
}

// New builds an empty cache.
func New() *Cache {
	c := &Cache{hints: gocache.New(gocache.NoExpiration, 0)}
	for i := range c.agg {
		c.agg[i] = &purposeAggregate{}
	}
	return c
}

// Rebuild atomically replaces the cache contents from a fresh enumeration
// of volumes, as happens at process startup.
func (c *Cache) Rebuild(volumes []VolumeInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hints.Flush()
	for i := range c.agg {
		c.agg[i] = &purposeAggregate{}
	}
	for _, vi := range volumes {
		c.hints.Set(cacheKey(vi.Volid), hint{Purpose: vi.Purpose, Free: vi.Free, Total: vi.Total}, gocache.NoExpiration)
		a := c.agg[vi.Purpose]
		a.nvols.Inc()
		a.free.Add(int64(vi.Free))
		a.total.Add(int64(vi.Total))
	}
}

// VolumeInfo is the input Rebuild consumes; produced by enumerating open
// volumes through diskalloc.PurposeAndSpaceInfo at startup.
type VolumeInfo struct {
	Volid   int32
	Purpose diskvol.Purpose
	Free    int32
	Total   int32
}

func cacheKey(volid int32) string { return fmt.Sprintf("v%d", volid) }

// UpdateHint is called by the allocator after a successful allocation or
// deallocation. It adjusts
// the purpose aggregate by the delta from the volume's previous hint, then
// replaces the hint.
//
// A negative running total is never clamped to zero here — it is surfaced
// as-is. Clamping would hide the races concurrent hint updates are allowed
// to produce; the aggregate is a hint, and callers must not treat it as
// authoritative under concurrent mutation.
func (c *Cache) UpdateHint(volid int32, purpose diskvol.Purpose, free, total int32) {
	key := cacheKey(volid)
	a := c.agg[purpose]

	if prevRaw, ok := c.hints.Get(key); ok {
		prev := prevRaw.(hint)
		a.free.Sub(int64(prev.Free))
		a.total.Sub(int64(prev.Total))
	} else {
		a.nvols.Inc()
	}
	a.free.Add(int64(free))
	a.total.Add(int64(total))
	c.hints.Set(key, hint{Purpose: purpose, Free: free, Total: total}, gocache.NoExpiration)
}

// HintFreePages returns the last known free-page hint for volid, or false
// if volid isn't in the cache.
func (c *Cache) HintFreePages(volid int32) (int32, bool) {
	v, ok := c.hints.Get(cacheKey(volid))
	if !ok {
		return 0, false
	}
	return v.(hint).Free, true
}

// PurposeAggregate is a snapshot of a purpose's aggregate free/total pages.
type PurposeAggregate struct {
	NVols int32
	Total int64
	Free  int64
}

func (c *Cache) Aggregate(purpose diskvol.Purpose) PurposeAggregate {
	a := c.agg[purpose]
	return PurposeAggregate{NVols: a.nvols.Load(), Total: a.total.Load(), Free: a.free.Load()}
}

// VolumesOfPurpose lists every cached volid currently tagged with purpose.
func (c *Cache) VolumesOfPurpose(purpose diskvol.Purpose) []int32 {
	var out []int32
	c.eachHint(func(volid int32, h hint) {
		if h.Purpose == purpose {
			out = append(out, volid)
		}
	})
	return out
}

// eachHint visits every cached (volid, hint) pair. It's the shared iteration
// helper behind VolumesOfPurpose and the router's group search, so both
// parse the "vN" cache key the same way.
func (c *Cache) eachHint(fn func(volid int32, h hint)) {
	for k, item := range c.hints.Items() {
		var volid int32
		if _, err := fmt.Sscanf(k, "v%d", &volid); err != nil {
			continue
		}
		fn(volid, item.Object.(hint))
	}
}

// AutoExtendVolid returns the single GENERIC volume currently permitted to
// grow, and whether one is registered.
func (c *Cache) AutoExtendVolid() (int32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.autoExtendVolid, c.autoExtendVolid != 0
}

// SetAutoExtendVolid registers volid as the volume permitted to grow, or
// clears the registration when volid is 0 (done once total_pages reaches
// max_npages, so the router creates a new GENERIC volume next time).
func (c *Cache) SetAutoExtendVolid(volid int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoExtendVolid = volid
}

// CheckGenericThreshold implements diskalloc.CacheUpdater: it compares the
// GENERIC purpose aggregate's current free-page count to thresholdPages and
// latches the result as the need_add_generic_volume flag, returning the new
// flag value so the caller can react without a second read of the cache.
func (c *Cache) CheckGenericThreshold(thresholdPages int64) bool {
	low := c.Aggregate(diskvol.PermGeneric).Free < thresholdPages
	c.needAddGeneric.Store(low)
	return low
}

// NeedAddGenericVolume reports the most recently latched
// need_add_generic_volume flag, for a router or an
// operator dashboard to consult.
func (c *Cache) NeedAddGenericVolume() bool {
	return c.needAddGeneric.Load()
}

