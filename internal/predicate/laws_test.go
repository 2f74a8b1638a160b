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

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eqTree(l, r Value) *Tree {
	return EvalTerm(&CompareTerm{Op: RelEQ, L: inlineVar(l), R: inlineVar(r)})
}

// TestThreeValuedConnectivesOverNulls: (a = 1 AND
// b = 2) with a=NULL, b=3 is FALSE, since a FALSE operand decides AND even
// against UNKNOWN; (a = 1 OR b = 4) where the OR branch
// is FALSE collapses to FALSE only when neither side is UNKNOWN, so with
// a=NULL it stays UNKNOWN and with a=2 it is FALSE.
func TestThreeValuedConnectivesOverNulls(t *testing.T) {
	ev := NewEvaluator(100)
	b := &Binding{}

	and := Pred(OpAnd, eqTree(Null(), Int(1)), eqTree(Int(3), Int(2)))
	assert.Equal(t, False, ev.Evaluate(and, b))

	or := Pred(OpOr, eqTree(Int(2), Int(1)), eqTree(Int(3), Int(4)))
	assert.Equal(t, False, ev.Evaluate(or, b))

	orNull := Pred(OpOr, eqTree(Null(), Int(1)), eqTree(Int(3), Int(4)))
	assert.Equal(t, Unknown, ev.Evaluate(orNull, b))
}

var threeStates = []Result{True, False, Unknown}

// TestDoubleNegation checks NOT(NOT(p)) == p over {T,F,U}.
func TestDoubleNegation(t *testing.T) {
	for _, p := range threeStates {
		assert.Equal(t, p, not4(not4(p)), "NOT NOT %s", p)
	}
	assert.Equal(t, Err, not4(not4(Err)))
}

// TestConnectiveLaws checks commutativity and associativity of AND and OR
// over {T,F,U}.
func TestConnectiveLaws(t *testing.T) {
	ops := map[string]func(a, b Result) Result{
		"AND": and4,
		"OR":  or4,
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			for _, a := range threeStates {
				for _, b := range threeStates {
					require.Equal(t, op(a, b), op(b, a), "%s commutativity at (%s,%s)", name, a, b)
					for _, c := range threeStates {
						require.Equal(t, op(op(a, b), c), op(a, op(b, c)),
							"%s associativity at (%s,%s,%s)", name, a, b, c)
					}
				}
			}
		})
	}
}

// TestNullOperandLaws checks NULL op NULL across
// the ordinal and total-order operator families.
func TestNullOperandLaws(t *testing.T) {
	b := &Binding{}
	for _, op := range []RelOp{RelEQ, RelNE, RelLT, RelLE, RelGT, RelGE} {
		t.Run(fmt.Sprintf("ordinal_%s", op), func(t *testing.T) {
			ct := &CompareTerm{Op: op, L: inlineVar(Null()), R: inlineVar(Null())}
			assert.Equal(t, Unknown, ct.Eval(b))
		})
	}
	for _, op := range []RelOp{RelEQTorder, RelNullsafeEQ} {
		t.Run(op.String(), func(t *testing.T) {
			ct := &CompareTerm{Op: op, L: inlineVar(Null()), R: inlineVar(Null())}
			assert.Equal(t, True, ct.Eval(b))
		})
	}
}
