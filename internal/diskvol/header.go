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
	"fmt"

	"github.com/ryedb/ryecore/internal/logstub"
)

// Magic identifies a Rye data volume.
const Magic = "RYE/Volume"

// PageSize is the fixed I/O/allocation unit. Chosen once at database
// creation in the real system; fixed here for the whole process.
const PageSize = 16 * 1024

// SectNpgs is the fixed sector size in pages.
const SectNpgs = 64

// BitsPerPage is how many allocation-table bits a single bitmap page holds.
const BitsPerPage = PageSize * 8

// DiskVolheaderPage is the page number of the header, always page 0.
const DiskVolheaderPage = 0

// SectAlloctbPage1 is the fixed first page of the sector allocation table,
// immediately after the header.
const SectAlloctbPage1 = DiskVolheaderPage + 1

// VolumeHeader is the on-disk, fixed-layout header occupying page 0 of
// every data volume. Field order here matches the order it is
// serialized in by (*VolumeHeader).encode.
type VolumeHeader struct {
	Magic   [16]byte
	Volid   int32
	Purpose Purpose

	SectNpgs int32

	TotalSects int32
	TotalPages int32
	MaxNpages  int32

	SectAlloctbPage1  int32
	SectAlloctbNpages int32
	PageAlloctbPage1  int32
	PageAlloctbNpages int32
	SysLastpage       int32

	FreePages int32
	FreeSects int32

	HintAllocsect int32

	UsedDataNpages int32
	UsedIndexNpages int32
	UsedTempNpages  int32

	ExtendNpages int32
	WriteRateCap int32

	Chkpt logstub.LSA
}

// bitsToPages returns how many PageSize-sized bitmap pages are needed to
// hold nbits allocation bits.
func bitsToPages(nbits int64) int32 {
	if nbits <= 0 {
		return 1
	}
	return int32((nbits + BitsPerPage - 1) / BitsPerPage)
}

// ceilDiv is the integer ceiling division used throughout the sizing
// formulas (total_sects = ceil(total_pages / sect_npgs), etc).
func ceilDiv(a, b int32) int32 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// layoutFor computes every header field derivable from purpose and
// max_npages alone, before any page has been allocated. The bitmap tables
// are always sized to cover max_npages, even for a GENERIC volume whose
// total_pages starts out smaller — that is what
// lets the volume grow in place later.
func layoutFor(purpose Purpose, maxNpages int32) (sectAlloctbNpages, pageAlloctbNpages, sysLastpage int32) {
	maxSects := ceilDiv(maxNpages, SectNpgs)
	sectAlloctbNpages = bitsToPages(int64(maxSects))
	pageAlloctbNpages = bitsToPages(int64(maxNpages))
	sysLastpage = SectAlloctbPage1 + sectAlloctbNpages + pageAlloctbNpages - 1
	return
}

// NewHeader builds the header for a freshly formatted volume, initializing
// it so every invariant holds immediately. totalPages is the
// volume's initial size: extendNpages for GENERIC, maxNpages for every
// other purpose (full-sized from creation).
func NewHeader(volid int32, purpose Purpose, maxNpages, extendNpages int32) (*VolumeHeader, error) {
	if purpose == PurposeUnknown {
		return nil, fmt.Errorf("%w: unknown purpose", ErrFormatBadParams)
	}
	if maxNpages <= 0 || extendNpages <= 0 || extendNpages > maxNpages {
		return nil, fmt.Errorf("%w: max_npages=%d extend_npages=%d", ErrFormatBadParams, maxNpages, extendNpages)
	}

	totalPages := maxNpages
	if purpose == PermGeneric {
		totalPages = extendNpages
	}

	sectAlloctbNpages, pageAlloctbNpages, sysLastpage := layoutFor(purpose, maxNpages)
	pageAlloctbPage1 := SectAlloctbPage1 + sectAlloctbNpages

	if sysLastpage >= totalPages {
		return nil, fmt.Errorf("%w: volume too small to hold its own allocation tables (need >%d pages, have %d)",
			ErrFormatBadParams, sysLastpage, totalPages)
	}

	totalSects := ceilDiv(totalPages, SectNpgs)

	h := &VolumeHeader{
		Volid:             volid,
		Purpose:           purpose,
		SectNpgs:          SectNpgs,
		TotalSects:        totalSects,
		TotalPages:        totalPages,
		MaxNpages:         maxNpages,
		SectAlloctbPage1:  SectAlloctbPage1,
		SectAlloctbNpages: sectAlloctbNpages,
		PageAlloctbPage1:  pageAlloctbPage1,
		PageAlloctbNpages: pageAlloctbNpages,
		SysLastpage:       sysLastpage,
		HintAllocsect:     1,
		ExtendNpages:      extendNpages,
		Chkpt:             logstub.NullLSA,
	}
	copy(h.Magic[:], Magic)

	// Bits 0..sys_lastpage of PAT are pre-allocated (header + both
	// bitmaps); free_pages/free_sects are derived once the in-memory
	// bitmap has those bits set, by Volume.initBitmaps.
	return h, nil
}

func (h *VolumeHeader) MagicString() string {
	n := 0
	for n < len(h.Magic) && h.Magic[n] != 0 {
		n++
	}
	return string(h.Magic[:n])
}
