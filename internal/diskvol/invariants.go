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

	"go.uber.org/multierr"
)

// CheckInvariants verifies every header and bitmap invariant against v's current
// in-memory state, collecting every violation (rather than stopping at the
// first) with multierr so a caller sees the whole picture in one error.
func (v *Volume) CheckInvariants() error {
	h := &v.Header
	var err error

	if h.MagicString() != Magic {
		err = multierr.Append(err, fmt.Errorf("%w: magic %q != %q", ErrInvariant, h.MagicString(), Magic))
	}
	if h.Purpose == PurposeUnknown {
		err = multierr.Append(err, fmt.Errorf("%w: purpose is UNKNOWN", ErrInvariant))
	}
	if h.SectNpgs != SectNpgs {
		err = multierr.Append(err, fmt.Errorf("%w: sect_npgs %d != fixed constant %d", ErrInvariant, h.SectNpgs, SectNpgs))
	}
	if want := ceilDiv(h.TotalPages, h.SectNpgs); h.TotalSects != want {
		err = multierr.Append(err, fmt.Errorf("%w: total_sects %d != ceil(total_pages/sect_npgs) %d", ErrInvariant, h.TotalSects, want))
	}
	if h.SectAlloctbPage1 != SectAlloctbPage1 {
		err = multierr.Append(err, fmt.Errorf("%w: sect_alloctb_page1 %d != 1", ErrInvariant, h.SectAlloctbPage1))
	}
	if h.PageAlloctbPage1 != h.SectAlloctbPage1+h.SectAlloctbNpages {
		err = multierr.Append(err, fmt.Errorf("%w: page_alloctb_page1 mismatch", ErrInvariant))
	}
	if h.SysLastpage != h.PageAlloctbPage1+h.PageAlloctbNpages-1 {
		err = multierr.Append(err, fmt.Errorf("%w: sys_lastpage mismatch", ErrInvariant))
	}
	if h.FreePages < 0 || h.FreePages > h.TotalPages {
		err = multierr.Append(err, fmt.Errorf("%w: free_pages %d out of [0,%d]", ErrInvariant, h.FreePages, h.TotalPages))
	}
	if h.FreeSects < 0 || h.FreeSects > h.TotalSects {
		err = multierr.Append(err, fmt.Errorf("%w: free_sects %d out of [0,%d]", ErrInvariant, h.FreeSects, h.TotalSects))
	}
	if h.Purpose.IsFullSized() && h.TotalPages != h.MaxNpages {
		err = multierr.Append(err, fmt.Errorf("%w: purpose %s requires total_pages==max_npages, got %d!=%d", ErrInvariant, h.Purpose, h.TotalPages, h.MaxNpages))
	}
	if h.Purpose == PermGeneric && h.TotalPages > h.MaxNpages {
		err = multierr.Append(err, fmt.Errorf("%w: GENERIC total_pages %d exceeds max_npages %d", ErrInvariant, h.TotalPages, h.MaxNpages))
	}

	if v.PAT != nil {
		for i := 0; i <= int(h.SysLastpage); i++ {
			if !v.PAT.Test(i) {
				err = multierr.Append(err, fmt.Errorf("%w: PAT bit %d (system page) must be set", ErrInvariant, i))
				break
			}
		}
		if got := v.PAT.PopCount(); got != int(h.TotalPages-h.FreePages) {
			err = multierr.Append(err, fmt.Errorf("%w: popcount(PAT)=%d != total_pages-free_pages=%d", ErrInvariant, got, h.TotalPages-h.FreePages))
		}
	}
	if v.SAT != nil {
		if got := v.SAT.PopCount(); got != int(h.TotalSects-h.FreeSects) {
			err = multierr.Append(err, fmt.Errorf("%w: popcount(SAT)=%d != total_sects-free_sects=%d", ErrInvariant, got, h.TotalSects-h.FreeSects))
		}
	}

	return err
}
