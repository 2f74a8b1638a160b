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

package predicate

import "sort"

// ListFile models a materialized list-id: the in-memory slice of values a
// nested plan produced, plus the sorted flag the evaluator consults before
// an ALL/SOME-over-list comparison: the list must be sorted before use,
// and the evaluator triggers a sort if it is not.
type ListFile struct {
	Values []Value
	sorted bool

	// Materialized is set once the backing nested plan has been executed;
	// EXISTS checks this before testing Values. ALL/SOME over a list does
	// not read it and scans Values as they are.
	Materialized bool
}

// TupleCount is the EXISTS test's input (tuple_count > 0).
func (lf *ListFile) TupleCount() int {
	if lf == nil {
		return 0
	}
	return len(lf.Values)
}

// EnsureSorted sorts Values by the total order Compare defines, lazily and
// only once (not-comparable pairs sort as equal rather than panicking,
// since cross-kind comparability is a per-evaluation ERROR, not something
// a stable sort should fail on).
func (lf *ListFile) EnsureSorted() {
	if lf == nil || lf.sorted {
		return
	}
	sort.SliceStable(lf.Values, func(i, j int) bool {
		a, b := lf.Values[i], lf.Values[j]
		if a.IsNull() != b.IsNull() {
			return b.IsNull()
		}
		if a.IsNull() {
			return false
		}
		ord, err := Compare(a, b)
		if err != nil {
			return false
		}
		return ord == Less
	})
	lf.sorted = true
}

func (lf *ListFile) IsSorted() bool { return lf != nil && lf.sorted }
