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

package diskalloc

import (
	"context"
	"fmt"

	"github.com/ryedb/ryecore/internal/diskvol"
	"github.com/ryedb/ryecore/internal/logstub"
)

// PageAllocResult carries the outcome of AllocPage, since "no contiguous
// range in this sector but enough free pages exist volume-wide" is a
// distinct, non-error outcome
type PageAllocResult struct {
	Pageid          int32
	NoRangeInSector bool
}

// AllocPage allocates npages contiguous pages from v, bounded to sectid's
// page range (or the whole non-system range, for SpecialSector). It tries
// forward from nearPageid first, skipping it to avoid re-allocation
// collisions, then falls back to scanning from the sector start.
//
// genericThresholdPages is the configured generic_prealloc_threshold_pages
// (config.CacheConfig); once the cache hint is updated, AllocPage asks cache
// to compare the GENERIC aggregate against it and, if the aggregate now
// falls below the threshold, calls notify so a router or auto-extender can
// react. notify may be nil.
func AllocPage(ctx context.Context, v *diskvol.Volume, sectid int32, npages int32, nearPageid int32, ptype logstub.PageType, cache CacheUpdater, genericThresholdPages int64, notify GenericLowNotifier) (PageAllocResult, error) {
	if err := v.AcquireExclusiveWithRetry(ctx); err != nil {
		return PageAllocResult{}, err
	}
	defer v.Unlock()

	h := &v.Header
	lo, hi := pageRangeForSector(h, sectid)

	start := int(nearPageid) + 1
	if start < lo || start >= hi {
		start = lo
	}

	found := v.PAT.FindClearRun(start, lo, hi, int(npages))
	if found < 0 {
		found = v.PAT.FindClearRun(lo, lo, hi, int(npages))
	}
	if found < 0 {
		if int(h.FreePages) >= int(npages) {
			return PageAllocResult{NoRangeInSector: true}, nil
		}
		return PageAllocResult{}, fmt.Errorf("diskalloc: %w: volume %d sector %d", ErrNoContiguousRange, h.Volid, sectid)
	}

	v.PAT.SetRange(found, int(npages))
	h.FreePages -= npages

	if h.Purpose == diskvol.PermGeneric {
		switch ptype {
		case logstub.PageTypeData:
			h.UsedDataNpages += npages
		case logstub.PageTypeIndex:
			h.UsedIndexNpages += npages
		case logstub.PageTypeTemp:
			h.UsedTempNpages += npages
		}
	}

	if sectid == SpecialSector {
		stolenSector := int32(found) / h.SectNpgs
		if stolenSector == h.HintAllocsect {
			h.HintAllocsect++
			if h.HintAllocsect >= h.TotalSects {
				h.HintAllocsect = 1
			}
		}
	}

	undo := encodePageAlloc(found, int(npages), logstub.DeallocPage, ptype, false)
	redo := encodePageAlloc(found, int(npages), logstub.DeallocPage, ptype, true)
	if _, err := v.Appender.Append(logstub.Record{
		Verb: logstub.RVDKVhdrPgalloc,
		Undo: undo,
		Redo: redo,
	}); err != nil {
		return PageAllocResult{}, err
	}

	if cache != nil {
		cache.UpdateHint(h.Volid, h.Purpose, h.FreePages, h.TotalPages)
		if cache.CheckGenericThreshold(genericThresholdPages) && notify != nil {
			notify(ctx)
		}
	}

	return PageAllocResult{Pageid: int32(found)}, nil
}

// pageRangeForSector bounds a page search to [sectid*sect_npgs,
// (sectid+1)*sect_npgs) or, for SpecialSector, the whole non-system range.
func pageRangeForSector(h *diskvol.VolumeHeader, sectid int32) (lo, hi int) {
	if sectid == SpecialSector {
		return int(h.SysLastpage) + 1, int(h.TotalPages)
	}
	lo = int(sectid) * int(h.SectNpgs)
	hi = lo + int(h.SectNpgs)
	if hi > int(h.TotalPages) {
		hi = int(h.TotalPages)
	}
	if lo < int(h.SysLastpage)+1 {
		lo = int(h.SysLastpage) + 1
	}
	return lo, hi
}

func encodePageAlloc(startBit, num int, kind logstub.DeallocKind, ptype logstub.PageType, negate bool) []byte {
	b := make([]byte, 10)
	n := int32(num)
	if negate {
		n = -n
	}
	putBE32(b[0:4], int32(startBit))
	putBE32(b[4:8], n)
	b[8] = byte(kind)
	b[9] = byte(ptype)
	return b
}
