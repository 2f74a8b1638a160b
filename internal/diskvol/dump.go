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
	"io"
)

// DumpHeader writes a human-readable rendering of a volume header, one
// name/value pair per line, used by `ryevol inspect`.
func DumpHeader(w io.Writer, h *VolumeHeader) error {
	lines := []struct {
		name string
		val  interface{}
	}{
		{"magic", h.MagicString()},
		{"volid", h.Volid},
		{"purpose", h.Purpose.String()},
		{"sect_npgs", h.SectNpgs},
		{"total_sects", h.TotalSects},
		{"total_pages", h.TotalPages},
		{"max_npages", h.MaxNpages},
		{"sect_alloctb_page1", h.SectAlloctbPage1},
		{"sect_alloctb_npages", h.SectAlloctbNpages},
		{"page_alloctb_page1", h.PageAlloctbPage1},
		{"page_alloctb_npages", h.PageAlloctbNpages},
		{"sys_lastpage", h.SysLastpage},
		{"free_pages", h.FreePages},
		{"free_sects", h.FreeSects},
		{"hint_allocsect", h.HintAllocsect},
		{"used_data_npages", h.UsedDataNpages},
		{"used_index_npages", h.UsedIndexNpages},
		{"used_temp_npages", h.UsedTempNpages},
		{"chkpt_lsa", h.Chkpt.String()},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-24s %v\n", l.name, l.val); err != nil {
			return err
		}
	}
	return nil
}
