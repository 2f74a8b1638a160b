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

// AllocSector allocates nsects contiguous sectors from v, or reports the
// SpecialSector sentinel if the volume is too tight on space to bother
// searching. expNpages, when positive, also
// requires the candidate run's underlying page range to have at least that
// many free pages, so a sector selected for a big page request isn't
// immediately starved.
func AllocSector(ctx context.Context, v *diskvol.Volume, nsects int32, expNpages int32, cache CacheUpdater) (int32, error) {
	if err := v.AcquireExclusiveWithRetry(ctx); err != nil {
		return 0, err
	}
	defer v.Unlock()

	h := &v.Header
	if h.FreeSects < nsects || h.FreePages < h.SectNpgs {
		return SpecialSector, nil
	}

	lo, hi := 1, int(h.TotalSects)
	start := int(h.HintAllocsect)
	if start < lo || start >= hi {
		start = lo
	}

	candidate := -1
	attempts := hi - lo
	for i := 0; i < attempts; i++ {
		run := v.SAT.FindClearRun(start, lo, hi, int(nsects))
		if run < 0 {
			return 0, fmt.Errorf("diskalloc: no %d contiguous free sectors in volume %d", nsects, h.Volid)
		}
		if expNpages <= 0 || sectorRunFreePages(v, run, int(nsects)) >= int(expNpages) {
			candidate = run
			break
		}
		// This run doesn't have enough underlying free pages; keep
		// scanning from just past it.
		start = run + int(nsects)
		if start >= hi {
			start = lo
		}
	}
	if candidate < 0 {
		return 0, fmt.Errorf("diskalloc: no sector run in volume %d has >= %d free pages", h.Volid, expNpages)
	}

	// The hint is never logged (it's only a hint), but the sector delta
	// is, as +nsects to undo and -nsects to redo.
	if _, err := v.Appender.Append(logstub.Record{
		Verb: logstub.RVDKVhdrScalloc,
		Undo: encodeSectDelta(nsects),
		Redo: encodeSectDelta(-nsects),
	}); err != nil {
		return 0, err
	}

	v.SAT.SetRange(candidate, int(nsects))
	h.HintAllocsect = int32(candidate + int(nsects))
	if int(h.HintAllocsect) >= hi {
		h.HintAllocsect = int32(lo)
	}
	h.FreeSects -= nsects

	if cache != nil {
		cache.UpdateHint(h.Volid, h.Purpose, h.FreePages, h.TotalPages)
	}
	return int32(candidate), nil
}

// sectorRunFreePages counts clear PAT bits across the page range backing
// sector run [start, start+count).
func sectorRunFreePages(v *diskvol.Volume, start, count int) int {
	lo := start * int(v.Header.SectNpgs)
	hi := (start + count) * int(v.Header.SectNpgs)
	if hi > int(v.Header.MaxNpages) {
		hi = int(v.Header.MaxNpages)
	}
	free := 0
	for i := lo; i < hi; i++ {
		if !v.PAT.Test(i) {
			free++
		}
	}
	return free
}

func encodeSectDelta(delta int32) []byte {
	b := make([]byte, 4)
	putBE32(b, delta)
	return b
}

func putBE32(b []byte, v int32) {
	u := uint32(v)
	b[0] = byte(u >> 24)
	b[1] = byte(u >> 16)
	b[2] = byte(u >> 8)
	b[3] = byte(u)
}
