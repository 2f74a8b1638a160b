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

package diskvol

import (
	"github.com/ryedb/ryecore/internal/logstub"
)

// Volume is an open data volume: its header, its two allocation bitmaps,
// and the latch serializing mutation. The header is the single
// serialization point for volume-wide counters; Latch guards
// Header and both bitmaps together, matching "header latch before bitmap
// latch" by simply being the one lock both are taken under.
type Volume struct {
	Path     string
	Header   VolumeHeader
	SAT      *Bitmap
	PAT      *Bitmap
	Appender logstub.Appender

	mu Latch

	// pending holds page ranges deallocated this transaction but not yet
	// committed.
	pending []pendingDealloc
}

type pendingDealloc struct {
	startBit int
	num      int
	kind     logstub.DeallocKind
	pageType logstub.PageType
}

// DeferDealloc records startBit/num as deallocated-at-commit and appends
// the RVDK_IDDEALLOC_WITH_VOLHEADER postpone record. The bitmap itself is
// untouched until CommitPendingDeallocs runs, so a transaction that rolls
// back never has its pages visible as free.
func (v *Volume) DeferDealloc(startBit, num int, pageType logstub.PageType) error {
	payload := encodePageAllocPayload(startBit, num, logstub.DeallocPage, pageType, false)
	if _, err := v.Appender.AppendPostpone(logstub.Record{
		Verb: logstub.RVDKIddeallocWithVolheader,
		Redo: payload,
	}); err != nil {
		return err
	}
	v.pending = append(v.pending, pendingDealloc{startBit: startBit, num: num, kind: logstub.DeallocPage, pageType: pageType})
	return nil
}

// CommitPendingDeallocs applies every deferred deallocation recorded since
// the last commit as a single atomic bitmap + header update, the unified
// recovery verb calls IDDEALLOC_WITH_VOLHEADER. Bit clears are
// idempotent, and the free-page counter (and, on GENERIC volumes, the
// used-page counters) are only adjusted for bits that were actually set, so replaying this after a crash (or calling
// it twice) leaves the bitmap and counters exactly where a single
// application would.
func (v *Volume) CommitPendingDeallocs() {
	h := &v.Header
	for _, p := range v.pending {
		for i := p.startBit; i < p.startBit+p.num; i++ {
			if v.PAT.Test(i) {
				v.PAT.ClearIdempotent(i)
				h.FreePages++
				if h.Purpose == PermGeneric {
					switch p.pageType {
					case logstub.PageTypeData:
						h.UsedDataNpages--
					case logstub.PageTypeIndex:
						h.UsedIndexNpages--
					case logstub.PageTypeTemp:
						h.UsedTempNpages--
					}
				}
			}
		}
	}
	v.pending = v.pending[:0]
}

// ApplyDeallocRedo replays a single RVDK_IDDEALLOC_WITH_VOLHEADER redo
// payload against the bitmap directly (used by crash recovery, outside any
// in-process pending list). Idempotent: replaying the same payload twice
// only increments free_pages once, because the second pass finds the bits
// already clear.
func (v *Volume) ApplyDeallocRedo(startBit, num int, pageType logstub.PageType) {
	h := &v.Header
	for i := startBit; i < startBit+num; i++ {
		if v.PAT.Test(i) {
			v.PAT.ClearIdempotent(i)
			h.FreePages++
			if h.Purpose == PermGeneric {
				switch pageType {
				case logstub.PageTypeData:
					h.UsedDataNpages--
				case logstub.PageTypeIndex:
					h.UsedIndexNpages--
				case logstub.PageTypeTemp:
					h.UsedTempNpages--
				}
			}
		}
	}
}

func encodePageAllocPayload(startBit, num int, kind logstub.DeallocKind, ptype logstub.PageType, negate bool) []byte {
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

func putBE32(b []byte, v int32) {
	u := uint32(v)
	b[0] = byte(u >> 24)
	b[1] = byte(u >> 16)
	b[2] = byte(u >> 8)
	b[3] = byte(u)
}

// Lock acquires the volume's header/bitmap latch. Use Unlock to release.
func (v *Volume) Lock() { v.mu.Lock() }

func (v *Volume) Unlock() { v.mu.Unlock() }

// RLock/RUnlock support the read-only lookups (isvalid,
// purpose_and_space_info) which only need a shared latch on the header.
func (v *Volume) RLock()   { v.mu.RLock() }
func (v *Volume) RUnlock() { v.mu.RUnlock() }

// newVolume wires a freshly built header and zero-valued bitmaps together.
// Bitmaps are sized to cover max_npages bits regardless of the volume's
// current total_pages, the last invariant.
func newVolume(path string, h *VolumeHeader, appender logstub.Appender) *Volume {
	maxSects := ceilDiv(h.MaxNpages, SectNpgs)
	v := &Volume{
		Path:     path,
		Header:   *h,
		SAT:      NewBitmap(int(maxSects)),
		PAT:      NewBitmap(int(h.MaxNpages)),
		Appender: appender,
	}
	return v
}
