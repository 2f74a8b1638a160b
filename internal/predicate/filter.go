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

import "fmt"

// AttrSource loads one attribute's value given its heap attribute id, the
// narrow slice of heap/buffer-pool access a data Filter needs.
type AttrSource func(attrID int32) (Value, error)

// Filter is the "(predicate, regu-list, attr-cache)" bundle,
// evaluated over either a tuple (data filter) or a decoded index-key array
// (key filter).
type Filter struct {
	Tree      *Tree
	ReguList  []*ReguVariable
	Evaluator *Evaluator

	cache map[int32]Value
}

// NewDataFilter builds a filter that loads attributes from the heap into
// the attr-cache before evaluation.
func NewDataFilter(tree *Tree, reguList []*ReguVariable, evaluator *Evaluator) *Filter {
	return &Filter{Tree: tree, ReguList: reguList, Evaluator: evaluator, cache: make(map[int32]Value)}
}

// EvalData loads every attribute id in attrIDs through source, then
// evaluates Tree against the resulting binding plus hostVars.
func (f *Filter) EvalData(attrIDs []int32, source AttrSource, hostVars []Value) (Result, error) {
	for _, id := range attrIDs {
		v, err := source(id)
		if err != nil {
			return Err, fmt.Errorf("predicate: load attribute %d: %w", id, err)
		}
		f.cache[id] = v
	}
	b := &Binding{Attrs: f.cache, HostVars: hostVars}
	return f.Evaluator.Evaluate(f.Tree, b), nil
}

// KeyColumn is one decoded index-key column, bound into the attr-cache by
// its index-attribute id mapping (no heap access on the key-filter path).
type KeyColumn struct {
	AttrID int32
	Value  Value
}

// EvalKey binds key's columns directly into the attr-cache (no heap access)
// and evaluates Tree against the result.
func (f *Filter) EvalKey(key []KeyColumn, hostVars []Value) Result {
	for _, col := range key {
		f.cache[col.AttrID] = col.Value
	}
	b := &Binding{Attrs: f.cache, HostVars: hostVars}
	return f.Evaluator.Evaluate(f.Tree, b)
}

// Reset clears the attr-cache between tuples/keys so a stale binding from a
// previous row can't leak into the next evaluation.
func (f *Filter) Reset() {
	for k := range f.cache {
		delete(f.cache, k)
	}
}
