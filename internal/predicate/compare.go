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

// RelOp is a comparison term's relational operator: the six ordinal
// operators that follow SQL NULL rules, plus the two explicit non-ordinal
// operators R_EQ_TORDER and R_NULLSAFE_EQ.
type RelOp int

const (
	RelEQ RelOp = iota
	RelNE
	RelLT
	RelLE
	RelGT
	RelGE
	RelEQTorder
	RelNullsafeEQ
)

// CompareTerm is a two-operand comparison.
type CompareTerm struct {
	Op   RelOp
	L, R *ReguVariable
}

// Eval implements the ordinal/total-order comparison rules: ordinal
// operators yield UNKNOWN on a NULL operand; R_EQ_TORDER/R_NULLSAFE_EQ use
// TotalOrderEqual instead. A "not comparable" result from Compare yields
// ERROR, matching "comparison is delegated to a value-compare primitive
// that may report not comparable (yields ERROR)".
func (t *CompareTerm) Eval(b *Binding) Result {
	lv, err := t.L.Fetch(b)
	if err != nil {
		return Err
	}
	rv, err := t.R.Fetch(b)
	if err != nil {
		return Err
	}

	if t.Op == RelEQTorder || t.Op == RelNullsafeEQ {
		return boolResult(TotalOrderEqual(lv, rv))
	}
	if lv.IsNull() || rv.IsNull() {
		return Unknown
	}
	ord, err := Compare(lv, rv)
	if err != nil {
		return Err
	}
	switch t.Op {
	case RelEQ:
		return boolResult(ord == Equal)
	case RelNE:
		return boolResult(ord != Equal)
	case RelLT:
		return boolResult(ord == Less)
	case RelLE:
		return boolResult(ord != Greater)
	case RelGT:
		return boolResult(ord == Greater)
	case RelGE:
		return boolResult(ord != Less)
	default:
		return Err
	}
}

func boolResult(b bool) Result {
	if b {
		return True
	}
	return False
}

// NullTestTerm is R_NULL, a unary null test. Always two-valued (T/F).
type NullTestTerm struct {
	Operand *ReguVariable
}

func (t *NullTestTerm) Eval(b *Binding) Result {
	v, err := t.Operand.Fetch(b)
	if err != nil {
		return Err
	}
	return boolResult(v.IsNull())
}

// SetOp distinguishes ALL from SOME.
type SetOp int

const (
	SetAll SetOp = iota
	SetSome
)

// AllSomeSetTerm evaluates an element against an explicit, already-fetched
// set of values: operand form (set).
type AllSomeSetTerm struct {
	Op      SetOp
	Element *ReguVariable
	Set     []*ReguVariable
	Rel     RelOp
}

// Eval implements "fetch the set; empty set yields FALSE regardless of the
// element value (ANSI semantics); otherwise scan the set applying the
// comparator, short-circuiting on a TRUE (SOME) or FALSE (ALL) result;
// UNKNOWN is sticky if no decisive answer is found."
func (t *AllSomeSetTerm) Eval(b *Binding) Result {
	if len(t.Set) == 0 {
		return False
	}
	sticky := False
	if t.Op == SetAll {
		sticky = True
	}
	for _, member := range t.Set {
		ct := &CompareTerm{Op: t.Rel, L: t.Element, R: member}
		r := ct.Eval(b)
		switch {
		case r == Err:
			return Err
		case t.Op == SetSome && r == True:
			return True
		case t.Op == SetAll && r == False:
			return False
		case r == Unknown:
			sticky = Unknown
		}
	}
	return sticky
}

// AllSomeListTerm is the list-id form: identical semantics to the set form
// but against a sorted list-id, sorted lazily on first use.
type AllSomeListTerm struct {
	Op      SetOp
	Element *ReguVariable
	List    *ListFile
	Rel     RelOp
}

func (t *AllSomeListTerm) Eval(b *Binding) Result {
	if t.List == nil || t.List.TupleCount() == 0 {
		return False
	}
	if !t.List.IsSorted() {
		t.List.EnsureSorted()
	}
	sticky := False
	if t.Op == SetAll {
		sticky = True
	}
	lv, err := t.Element.Fetch(b)
	if err != nil {
		return Err
	}
	for _, mv := range t.List.Values {
		r := compareScalar(t.Rel, lv, mv)
		switch {
		case r == Err:
			return Err
		case t.Op == SetSome && r == True:
			return True
		case t.Op == SetAll && r == False:
			return False
		case r == Unknown:
			sticky = Unknown
		}
	}
	return sticky
}

func compareScalar(op RelOp, lv, mv Value) Result {
	if op == RelEQTorder || op == RelNullsafeEQ {
		return boolResult(TotalOrderEqual(lv, mv))
	}
	if lv.IsNull() || mv.IsNull() {
		return Unknown
	}
	ord, err := Compare(lv, mv)
	if err != nil {
		return Err
	}
	switch op {
	case RelEQ:
		return boolResult(ord == Equal)
	case RelNE:
		return boolResult(ord != Equal)
	case RelLT:
		return boolResult(ord == Less)
	case RelLE:
		return boolResult(ord != Greater)
	case RelGT:
		return boolResult(ord == Greater)
	case RelGE:
		return boolResult(ord != Less)
	default:
		return Err
	}
}

// ExistsTerm evaluates EXISTS over a list-id: ensure
// materialization, then test tuple_count > 0.
type ExistsTerm struct {
	List *ListFile
	// Materialize runs the nested plan that populates List, if it hasn't
	// been materialized yet. Injected so this package never depends on
	// the plan-execution engine (out of scope, ).
	Materialize func() error
}

func (t *ExistsTerm) Eval(*Binding) Result {
	if t.List == nil {
		return Err
	}
	if !t.List.Materialized {
		if t.Materialize == nil {
			return Err
		}
		if err := t.Materialize(); err != nil {
			return Err
		}
		t.List.Materialized = true
	}
	return boolResult(t.List.TupleCount() > 0)
}

func (op RelOp) String() string {
	switch op {
	case RelEQ:
		return "="
	case RelNE:
		return "<>"
	case RelLT:
		return "<"
	case RelLE:
		return "<="
	case RelGT:
		return ">"
	case RelGE:
		return ">="
	case RelEQTorder:
		return "R_EQ_TORDER"
	case RelNullsafeEQ:
		return "R_NULLSAFE_EQ"
	default:
		return fmt.Sprintf("RelOp(%d)", int(op))
	}
}
