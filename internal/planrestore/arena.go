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

// arenaSizeMultiplier is the "small multiple of the input stream length"
// the restore context's arena is sized to.
const arenaSizeMultiplier = 3

// Arena is a byte-budget allocator tied to one restore's lifetime. Go's
// garbage collector already owns the actual memory for restored nodes —
// there is no pointer arithmetic to do and no benefit to literally slicing
// a byte buffer into structs the way a C arena would — so Arena's job here
// is purely to enforce the sizing discipline: every allocation
// charges against a fixed budget derived from the input stream length, and
// a stream that would need more than arenaSizeMultiplier times its own
// size to restore is rejected as malformed (ErrArenaExhausted) rather than
// allowed to allocate without bound. The whole budget (and every node
// charged against it) is simply dropped wholesale at the end of a restore
// by letting the Arena value itself go out of scope.
type Arena struct {
	budget int
	used   int
}

// NewArena sizes a budget as a multiple of streamLen.
func NewArena(streamLen int) *Arena {
	return &Arena{budget: streamLen * arenaSizeMultiplier}
}

// Charge reserves n bytes against the arena's budget, returning
// ErrArenaExhausted if doing so would exceed it.
func (a *Arena) Charge(n int) error {
	if a.used+n > a.budget {
		return &ErrArenaExhausted{Requested: n, Remaining: a.budget - a.used}
	}
	a.used += n
	return nil
}

// Used reports how many bytes of the budget are currently charged, mostly
// useful for tests and diagnostics.
func (a *Arena) Used() int { return a.used }

// Cap reports the arena's total fixed budget.
func (a *Arena) Cap() int { return a.budget }
