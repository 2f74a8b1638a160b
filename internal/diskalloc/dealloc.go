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
	"encoding/binary"
	"fmt"

	"github.com/ryedb/ryecore/internal/diskvol"
	"github.com/ryedb/ryecore/internal/logstub"
)

// DeallocPage defers the deallocation of npages pages starting at pageid
// to transaction end: under the exclusive header latch it appends the
// RVDK_IDDEALLOC_WITH_VOLHEADER postpone record and queues the range on
// the volume. The PAT and the header counters are untouched until
// CommitDeallocs runs, so a transaction that rolls back never has its pages
// visible as free.
func DeallocPage(ctx context.Context, v *diskvol.Volume, pageid, npages int32, ptype logstub.PageType) error {
	if err := v.AcquireExclusiveWithRetry(ctx); err != nil {
		return err
	}
	defer v.Unlock()

	h := &v.Header
	if npages <= 0 {
		return fmt.Errorf("diskalloc: dealloc %d pages", npages)
	}
	if pageid <= h.SysLastpage || pageid+npages > h.TotalPages {
		return fmt.Errorf("diskalloc: dealloc range [%d,%d) outside user pages (%d,%d) of volume %d",
			pageid, pageid+npages, h.SysLastpage, h.TotalPages, h.Volid)
	}
	return v.DeferDealloc(int(pageid), int(npages), ptype)
}

// CommitDeallocs applies every deallocation deferred on v since the last
// commit as one atomic bitmap + header update, the in-process equivalent
// of replaying the queued postpone records at transaction end, then pushes
// the volume's fresh free count into the cache.
func CommitDeallocs(ctx context.Context, v *diskvol.Volume, cache CacheUpdater) error {
	if err := v.AcquireExclusiveWithRetry(ctx); err != nil {
		return err
	}
	v.CommitPendingDeallocs()
	free, total, volid, purpose := v.Header.FreePages, v.Header.TotalPages, v.Header.Volid, v.Header.Purpose
	v.Unlock()

	if cache != nil {
		cache.UpdateHint(volid, purpose, free, total)
	}
	return nil
}

// DecodeDeallocRedo decodes an RVDK_IDDEALLOC_WITH_VOLHEADER (or
// RVDK_VHDR_PGALLOC/RVDK_IDALLOC) payload back into its {bit, num, kind,
// ptype} fields, the inverse of the encoding the allocator emits.
func DecodeDeallocRedo(b []byte) (logstub.PageAllocPayload, error) {
	if len(b) < 10 {
		return logstub.PageAllocPayload{}, fmt.Errorf("diskalloc: payload truncated (%d bytes)", len(b))
	}
	return logstub.PageAllocPayload{
		StartBit: int32(binary.BigEndian.Uint32(b[0:4])),
		Num:      int32(binary.BigEndian.Uint32(b[4:8])),
		Kind:     logstub.DeallocKind(b[8]),
		PageType: logstub.PageType(b[9]),
	}, nil
}

// ReplayDeallocRedo re-applies a logged IDDEALLOC_WITH_VOLHEADER redo
// payload against v, as crash recovery does when the transaction had
// committed but the bitmap update was lost. Bit clears are idempotent and
// the counters only move for bits found set, so replaying the same payload
// any number of times leaves the volume in the same state as one
// application. Both header and bitmap are updated under the one latch,
// the unified IDDEALLOC_WITH_VOLHEADER discipline that avoids cross-page
// deadlock.
func ReplayDeallocRedo(ctx context.Context, v *diskvol.Volume, payload []byte, cache CacheUpdater) error {
	p, err := DecodeDeallocRedo(payload)
	if err != nil {
		return err
	}
	if p.Kind != logstub.DeallocPage {
		return fmt.Errorf("diskalloc: replay of kind %d not supported", p.Kind)
	}
	num := p.Num
	if num < 0 {
		num = -num
	}

	if err := v.AcquireExclusiveWithRetry(ctx); err != nil {
		return err
	}
	v.ApplyDeallocRedo(int(p.StartBit), int(num), p.PageType)
	free, total, volid, purpose := v.Header.FreePages, v.Header.TotalPages, v.Header.Volid, v.Header.Purpose
	v.Unlock()

	if cache != nil {
		cache.UpdateHint(volid, purpose, free, total)
	}
	return nil
}
