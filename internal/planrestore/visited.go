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

package planrestore

// VisitedTable deduplicates shared substructures during a single restore,
// keyed on the source byte offset of the sub-structure within the body.
// Before restoring a sub-structure at offset o, the unpack routines consult
// the table: if a previous restore at o is recorded, they return the cached
// pointer; otherwise they allocate the target struct, record (o -> pointer),
// then populate fields, so cycles resolve to a single node.
//
// A plain Go map already gives O(1) average lookup without hand-built
// hash buckets; freeing the table independently of the arena is just
// letting the map value go out of scope once the restore using it returns.
type VisitedTable struct {
	byOffset map[int]interface{}
}

func NewVisitedTable() *VisitedTable {
	return &VisitedTable{byOffset: make(map[int]interface{})}
}

// Lookup returns the previously restored pointer at offset, if any.
func (vt *VisitedTable) Lookup(offset int) (interface{}, bool) {
	v, ok := vt.byOffset[offset]
	return v, ok
}

// Record registers ptr as the restored value at offset, before that
// value's own fields are populated — so a cycle back to offset during
// field population resolves to the same pointer, keeping two references
// to the same offset pointer-equal in the restored graph.
func (vt *VisitedTable) Record(offset int, ptr interface{}) {
	vt.byOffset[offset] = ptr
}

// Len reports how many distinct offsets have been restored so far.
func (vt *VisitedTable) Len() int { return len(vt.byOffset) }
