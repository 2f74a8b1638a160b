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
	"testing"

	"github.com/stretchr/testify/assert"
)

func inlineVar(v Value) *ReguVariable {
	return &ReguVariable{Kind: ReguInline, Value: v}
}

func TestCompareTermOrdinalNullRules(t *testing.T) {
	testCases := []struct {
		name     string
		op       RelOp
		l, r     Value
		expected Result
	}{
		{"eq_true", RelEQ, Int(5), Int(5), True},
		{"eq_false", RelEQ, Int(5), Int(6), False},
		{"lt_true", RelLT, Int(3), Int(5), True},
		{"gt_false", RelGT, Int(3), Int(5), False},
		{"le_equal", RelLE, Int(5), Int(5), True},
		{"ge_equal", RelGE, Int(5), Int(5), True},
		{"ne_true", RelNE, Int(3), Int(5), True},
		{"null_left_unknown", RelEQ, Null(), Int(5), Unknown},
		{"null_right_unknown", RelLT, Int(5), Null(), Unknown},
		{"both_null_unknown", RelEQ, Null(), Null(), Unknown},
		{"int_float_mixed", RelEQ, Int(5), Float(5.0), True},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ct := &CompareTerm{Op: tc.op, L: inlineVar(tc.l), R: inlineVar(tc.r)}
			assert.Equal(t, tc.expected, ct.Eval(nil))
		})
	}
}

func TestEQTorderAndNullsafe(t *testing.T) {
	testCases := []struct {
		name     string
		op       RelOp
		l, r     Value
		expected Result
	}{
		{"torder_null_null_true", RelEQTorder, Null(), Null(), True},
		{"torder_null_value_false", RelEQTorder, Null(), Int(5), False},
		{"torder_value_value", RelEQTorder, Int(5), Int(5), True},
		{"nullsafe_null_null_true", RelNullsafeEQ, Null(), Null(), True},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ct := &CompareTerm{Op: tc.op, L: inlineVar(tc.l), R: inlineVar(tc.r)}
			assert.Equal(t, tc.expected, ct.Eval(nil))
		})
	}
}

func TestNotComparableYieldsError(t *testing.T) {
	ct := &CompareTerm{Op: RelEQ, L: inlineVar(String("a")), R: inlineVar(Bool(true))}
	assert.Equal(t, Err, ct.Eval(nil))
}

func TestNullTestTerm(t *testing.T) {
	nt := &NullTestTerm{Operand: inlineVar(Null())}
	assert.Equal(t, True, nt.Eval(nil))

	nt2 := &NullTestTerm{Operand: inlineVar(Int(1))}
	assert.Equal(t, False, nt2.Eval(nil))
}

func TestAllSomeSetTerm(t *testing.T) {
	set := []*ReguVariable{inlineVar(Int(1)), inlineVar(Int(2)), inlineVar(Int(3))}

	some := &AllSomeSetTerm{Op: SetSome, Element: inlineVar(Int(2)), Set: set, Rel: RelEQ}
	assert.Equal(t, True, some.Eval(nil))

	all := &AllSomeSetTerm{Op: SetAll, Element: inlineVar(Int(2)), Set: set, Rel: RelLE}
	assert.Equal(t, False, all.Eval(nil)) // 2 <= 1 is false

	allTrue := &AllSomeSetTerm{Op: SetAll, Element: inlineVar(Int(0)), Set: set, Rel: RelLE}
	assert.Equal(t, True, allTrue.Eval(nil))

	empty := &AllSomeSetTerm{Op: SetSome, Element: inlineVar(Int(1)), Set: nil, Rel: RelEQ}
	assert.Equal(t, False, empty.Eval(nil))
}

func TestAllSomeListTermSortsLazily(t *testing.T) {
	lf := &ListFile{Values: []Value{Int(5), Int(1), Int(3)}}
	term := &AllSomeListTerm{Op: SetSome, Element: inlineVar(Int(1)), List: lf, Rel: RelEQ}
	assert.Equal(t, True, term.Eval(nil))
	assert.True(t, lf.IsSorted())
	assert.Equal(t, []Value{Int(1), Int(3), Int(5)}, lf.Values)
}

func TestExistsTerm(t *testing.T) {
	lf := &ListFile{}
	materialized := false
	term := &ExistsTerm{List: lf, Materialize: func() error {
		materialized = true
		lf.Values = []Value{Int(1)}
		return nil
	}}
	assert.Equal(t, True, term.Eval(nil))
	assert.True(t, materialized)

	lf2 := &ListFile{Materialized: true}
	term2 := &ExistsTerm{List: lf2}
	assert.Equal(t, False, term2.Eval(nil))
}

func TestLikeTerm(t *testing.T) {
	testCases := []struct {
		name     string
		source   string
		pattern  string
		expected Result
	}{
		{"prefix_match", "hello world", "hello%", True},
		{"single_char", "cat", "c_t", True},
		{"no_match", "dog", "c_t", False},
		{"exact", "abc", "abc", True},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lt := &LikeTerm{Source: inlineVar(String(tc.source)), Pattern: inlineVar(String(tc.pattern))}
			assert.Equal(t, tc.expected, lt.Eval(nil))
		})
	}

	nullCase := &LikeTerm{Source: inlineVar(Null()), Pattern: inlineVar(String("a%"))}
	assert.Equal(t, Unknown, nullCase.Eval(nil))
}

func TestLikeTermEscape(t *testing.T) {
	lt := &LikeTerm{
		Source:  inlineVar(String("50%")),
		Pattern: inlineVar(String("50\\%")),
		Escape:  inlineVar(String("\\")),
	}
	assert.Equal(t, True, lt.Eval(nil))
}

func TestRlikeTermCachesCompile(t *testing.T) {
	rt := &RlikeTerm{
		Source:  inlineVar(String("hello")),
		Pattern: inlineVar(String("^h.*o$")),
	}
	assert.Equal(t, True, rt.Eval(nil))
	first := rt.compiled
	assert.Equal(t, True, rt.Eval(nil))
	assert.Same(t, first, rt.compiled)
}

func TestRlikeTermRecompilesOnPatternChange(t *testing.T) {
	pattern := inlineVar(String("^a$"))
	rt := &RlikeTerm{Source: inlineVar(String("a")), Pattern: pattern}
	assert.Equal(t, True, rt.Eval(nil))

	pattern.Value = String("^b$")
	assert.Equal(t, False, rt.Eval(nil))
}
