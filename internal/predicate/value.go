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

// Package predicate implements the three/four-valued predicate evaluator
// over a polymorphic value descriptor: comparison,
// ALL/SOME, LIKE/RLIKE terms, and the Boolean connective tree above them.
package predicate

import (
	"fmt"
	"math"
	"time"
)

// Kind tags which alternative of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	case KindBool:
		return "BOOL"
	case KindTime:
		return "TIME"
	default:
		return "UNKNOWN"
	}
}

// Value is the evaluator's db_value stand-in: a small closed set of
// concrete representations plus NULL, not a generic interface{}, so
// comparison stays a total function over a known type lattice instead of
// reflection.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	S    string
	B    bool
	T    time.Time
}

func Null() Value                 { return Value{Kind: KindNull} }
func Int(v int64) Value           { return Value{Kind: KindInt, I: v} }
func Float(v float64) Value       { return Value{Kind: KindFloat, F: v} }
func String(v string) Value       { return Value{Kind: KindString, S: v} }
func Bool(v bool) Value            { return Value{Kind: KindBool, B: v} }
func Time(v time.Time) Value      { return Value{Kind: KindTime, T: v} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindString:
		return v.S
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	case KindTime:
		return v.T.Format(time.RFC3339)
	default:
		return "?"
	}
}

// asFloat widens numeric kinds for ordinal comparison between INT and
// FLOAT. Returns ok=false for non-numeric kinds.
func (v Value) asFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	default:
		return 0, false
	}
}

// Ordering is the three-way result of comparing two non-NULL values.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
)

// ErrNotComparable marks two values whose kinds cannot be ordered against
// each other.
type ErrNotComparable struct {
	Left, Right Kind
}

func (e *ErrNotComparable) Error() string {
	return fmt.Sprintf("predicate: %s and %s are not comparable", e.Left, e.Right)
}

// Compare orders two non-NULL values, following the standard numeric/
// string/bool/time type lattice; INT and FLOAT compare numerically against
// each other. Callers handle NULL before calling Compare — comparison-term
// evaluation substitutes UNKNOWN for any NULL operand.
func Compare(a, b Value) (Ordering, error) {
	if a.Kind == KindNull || b.Kind == KindNull {
		return Equal, fmt.Errorf("predicate: Compare called with a NULL operand")
	}
	if af, aok := a.asFloat(); aok {
		if bf, bok := b.asFloat(); bok {
			return orderFloat(af, bf), nil
		}
	}
	if a.Kind != b.Kind {
		return Equal, &ErrNotComparable{Left: a.Kind, Right: b.Kind}
	}
	switch a.Kind {
	case KindString:
		switch {
		case a.S < b.S:
			return Less, nil
		case a.S > b.S:
			return Greater, nil
		default:
			return Equal, nil
		}
	case KindBool:
		switch {
		case a.B == b.B:
			return Equal, nil
		case !a.B && b.B:
			return Less, nil
		default:
			return Greater, nil
		}
	case KindTime:
		switch {
		case a.T.Before(b.T):
			return Less, nil
		case a.T.After(b.T):
			return Greater, nil
		default:
			return Equal, nil
		}
	default:
		return Equal, &ErrNotComparable{Left: a.Kind, Right: b.Kind}
	}
}

func orderFloat(a, b float64) Ordering {
	if math.IsNaN(a) || math.IsNaN(b) {
		return Equal
	}
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

// TotalOrderEqual implements R_EQ_TORDER / R_NULLSAFE_EQ: NULL = NULL is
// true, NULL = non-NULL is false, otherwise ordinary equality.
// Both operators share this definition; R_NULLSAFE_EQ behaves identically
// to R_EQ_TORDER here.
func TotalOrderEqual(a, b Value) bool {
	if a.IsNull() && b.IsNull() {
		return true
	}
	if a.IsNull() || b.IsNull() {
		return false
	}
	ord, err := Compare(a, b)
	return err == nil && ord == Equal
}
