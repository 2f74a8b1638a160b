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

import (
	"math"
	"time"

	"github.com/ryedb/ryecore/internal/predicate"
)

// Node type tags. Every offset-addressed structure in the body begins with
// one of these as its first byte, selecting which typed unpack routine
// restores it.
const (
	tagPredAnd byte = iota
	tagPredOr
	tagPredXor
	tagPredIs
	tagPredIsNot
	tagNotTerm
	tagEvalCompare
	tagEvalNullTest
	tagEvalAllSomeSet
	tagEvalAllSomeList
	tagEvalLike
	tagEvalRlike
	tagEvalExists
)

const (
	tagReguInline byte = iota
	tagReguPointer
	tagReguArith
	tagReguAggregate
	tagReguAttribute
	tagReguTuplePos
	tagReguListID
	tagReguHostVar
	tagReguFunction
	tagReguOID
)

const (
	tagDBNull byte = iota
	tagDBInt
	tagDBFloat
	tagDBString
	tagDBBool
	tagDBTime
)

const (
	tagAccessHeapScan byte = iota
	tagAccessIndexScan
)

// Per-node charges against the arena budget, standing in for a literal
// per-struct size; the exact
// numbers only need to be in the right ballpark since the budget itself is
// a generous 3x multiple of stream length.
const (
	chargeSmallNode = 32
	chargeMedNode   = 64
)

// unpackPred restores a predicate.Tree rooted at offset, recursing through
// PRED/NOT_TERM/EVAL_TERM shapes. The visited table is keyed on offset
// within the body so a shared subtree (e.g. a common having-clause reused
// by two branches of a UNION) restores to one shared *predicate.Tree.
func (rc *RestoreContext) unpackPred(offset int32) (*predicate.Tree, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*predicate.Tree), nil
	}
	if err := rc.arena.Charge(chargeSmallNode); err != nil {
		return nil, err
	}

	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	tag, err := c.byte()
	if err != nil {
		return nil, err
	}

	tree := &predicate.Tree{}
	rc.visited.Record(int(offset), tree)

	switch tag {
	case tagPredAnd, tagPredOr, tagPredXor, tagPredIs, tagPredIsNot:
		lhsOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		rhsOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		lhs, err := rc.unpackPred(lhsOff)
		if err != nil {
			return nil, err
		}
		rhs, err := rc.unpackPred(rhsOff)
		if err != nil {
			return nil, err
		}
		*tree = *predicate.Pred(predTagToOp(tag), lhs, rhs)

	case tagNotTerm:
		childOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		child, err := rc.unpackPred(childOff)
		if err != nil {
			return nil, err
		}
		*tree = *predicate.NotTerm(child)

	default:
		leaf, err := rc.unpackEvalTerm(c, tag)
		if err != nil {
			return nil, err
		}
		*tree = *predicate.EvalTerm(leaf)
	}
	return tree, nil
}

func predTagToOp(tag byte) predicate.BoolOp {
	switch tag {
	case tagPredAnd:
		return predicate.OpAnd
	case tagPredOr:
		return predicate.OpOr
	case tagPredXor:
		return predicate.OpXor
	case tagPredIs:
		return predicate.OpIs
	default:
		return predicate.OpIsNot
	}
}

// unpackEvalTerm restores one of the EVAL_TERM leaf shapes, the buffer
// already positioned just past the shared tag byte.
func (rc *RestoreContext) unpackEvalTerm(c *cursor, tag byte) (predicate.Term, error) {
	switch tag {
	case tagEvalCompare:
		op, err := c.byte()
		if err != nil {
			return nil, err
		}
		lOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		rOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		l, err := rc.unpackRegu(lOff)
		if err != nil {
			return nil, err
		}
		r, err := rc.unpackRegu(rOff)
		if err != nil {
			return nil, err
		}
		return &predicate.CompareTerm{Op: predicate.RelOp(op), L: l, R: r}, nil

	case tagEvalNullTest:
		opOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		operand, err := rc.unpackRegu(opOff)
		if err != nil {
			return nil, err
		}
		return &predicate.NullTestTerm{Operand: operand}, nil

	case tagEvalAllSomeSet:
		setOp, err := c.byte()
		if err != nil {
			return nil, err
		}
		rel, err := c.byte()
		if err != nil {
			return nil, err
		}
		elemOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		n, err := c.i32()
		if err != nil {
			return nil, err
		}
		elem, err := rc.unpackRegu(elemOff)
		if err != nil {
			return nil, err
		}
		members := make([]*predicate.ReguVariable, 0, n)
		for i := int32(0); i < n; i++ {
			mOff, err := c.i32()
			if err != nil {
				return nil, err
			}
			m, err := rc.unpackRegu(mOff)
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		return &predicate.AllSomeSetTerm{Op: predicate.SetOp(setOp), Element: elem, Set: members, Rel: predicate.RelOp(rel)}, nil

	case tagEvalAllSomeList:
		setOp, err := c.byte()
		if err != nil {
			return nil, err
		}
		rel, err := c.byte()
		if err != nil {
			return nil, err
		}
		elemOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		listOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		elem, err := rc.unpackRegu(elemOff)
		if err != nil {
			return nil, err
		}
		list, err := rc.unpackListFile(listOff)
		if err != nil {
			return nil, err
		}
		return &predicate.AllSomeListTerm{Op: predicate.SetOp(setOp), Element: elem, List: list, Rel: predicate.RelOp(rel)}, nil

	case tagEvalLike:
		srcOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		patOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		escOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		src, err := rc.unpackRegu(srcOff)
		if err != nil {
			return nil, err
		}
		pat, err := rc.unpackRegu(patOff)
		if err != nil {
			return nil, err
		}
		esc, err := rc.unpackRegu(escOff)
		if err != nil {
			return nil, err
		}
		return &predicate.LikeTerm{Source: src, Pattern: pat, Escape: esc}, nil

	case tagEvalRlike:
		srcOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		patOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		csOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		src, err := rc.unpackRegu(srcOff)
		if err != nil {
			return nil, err
		}
		pat, err := rc.unpackRegu(patOff)
		if err != nil {
			return nil, err
		}
		cs, err := rc.unpackRegu(csOff)
		if err != nil {
			return nil, err
		}
		return &predicate.RlikeTerm{Source: src, Pattern: pat, CaseSensitive: cs}, nil

	case tagEvalExists:
		listOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		list, err := rc.unpackListFile(listOff)
		if err != nil {
			return nil, err
		}
		return &predicate.ExistsTerm{List: list}, nil

	default:
		return nil, &ErrBadNodeType{Tag: int32(tag)}
	}
}

// unpackRegu restores a regu-variable at offset.
func (rc *RestoreContext) unpackRegu(offset int32) (*predicate.ReguVariable, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*predicate.ReguVariable), nil
	}
	if err := rc.arena.Charge(chargeSmallNode); err != nil {
		return nil, err
	}

	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	flags, err := c.byte()
	if err != nil {
		return nil, err
	}
	tag, err := c.byte()
	if err != nil {
		return nil, err
	}

	rv := &predicate.ReguVariable{Flags: predicate.ReguFlag(flags)}
	rc.visited.Record(int(offset), rv)

	switch tag {
	case tagReguInline, tagReguPointer:
		v, err := rc.unpackDBValueInline(c)
		if err != nil {
			return nil, err
		}
		rv.Kind = reguTagToKind(tag)
		rv.Value = v

	case tagReguArith:
		op, err := c.byte()
		if err != nil {
			return nil, err
		}
		lOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		rOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		l, err := rc.unpackRegu(lOff)
		if err != nil {
			return nil, err
		}
		r, err := rc.unpackRegu(rOff)
		if err != nil {
			return nil, err
		}
		rv.Kind = predicate.ReguArith
		rv.ArithOp = predicate.ArithOp(op)
		rv.ArithL, rv.ArithR = l, r

	case tagReguAggregate:
		fn, err := c.byte()
		if err != nil {
			return nil, err
		}
		operandOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		operand, err := rc.unpackRegu(operandOff)
		if err != nil {
			return nil, err
		}
		rv.Kind = predicate.ReguAggregate
		rv.Value = predicate.Int(int64(fn))
		rv.ArithL = operand

	case tagReguAttribute:
		attrID, err := c.i32()
		if err != nil {
			return nil, err
		}
		rv.Kind = predicate.ReguAttribute
		rv.AttrID = attrID

	case tagReguTuplePos:
		pos, err := c.i32()
		if err != nil {
			return nil, err
		}
		rv.Kind = predicate.ReguTuplePos
		rv.AttrID = pos

	case tagReguListID:
		listOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		rv.Kind = predicate.ReguListID
		rv.ListID = listOff

	case tagReguHostVar:
		idx, err := c.i32()
		if err != nil {
			return nil, err
		}
		rv.Kind = predicate.ReguHostVar
		rv.HostVarIndex = int(idx)

	case tagReguFunction:
		funcCode, err := c.i32()
		if err != nil {
			return nil, err
		}
		n, err := c.i32()
		if err != nil {
			return nil, err
		}
		rv.Kind = predicate.ReguFunction
		rv.AttrID = funcCode
		args := make([]*predicate.ReguVariable, 0, n)
		for i := int32(0); i < n; i++ {
			argOff, err := c.i32()
			if err != nil {
				return nil, err
			}
			arg, err := rc.unpackRegu(argOff)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		rv.Args = args

	case tagReguOID:
		oid, err := c.i64()
		if err != nil {
			return nil, err
		}
		rv.Kind = predicate.ReguOID
		rv.Value = predicate.Int(oid)

	default:
		return nil, &ErrBadNodeType{Tag: int32(tag)}
	}
	return rv, nil
}

func reguTagToKind(tag byte) predicate.ReguKind {
	if tag == tagReguPointer {
		return predicate.ReguPointer
	}
	return predicate.ReguInline
}

// unpackDBValueInline restores a db_value directly from c's current
// position.
func (rc *RestoreContext) unpackDBValueInline(c *cursor) (predicate.Value, error) {
	tag, err := c.byte()
	if err != nil {
		return predicate.Value{}, err
	}
	switch tag {
	case tagDBNull:
		return predicate.Null(), nil
	case tagDBInt:
		v, err := c.i64()
		if err != nil {
			return predicate.Value{}, err
		}
		return predicate.Int(v), nil
	case tagDBFloat:
		bits, err := c.u64()
		if err != nil {
			return predicate.Value{}, err
		}
		return predicate.Float(math.Float64frombits(bits)), nil
	case tagDBString:
		n, err := c.i32()
		if err != nil {
			return predicate.Value{}, err
		}
		s, err := c.str(int(n))
		if err != nil {
			return predicate.Value{}, err
		}
		return predicate.String(s), nil
	case tagDBBool:
		b, err := c.byte()
		if err != nil {
			return predicate.Value{}, err
		}
		return predicate.Bool(b != 0), nil
	case tagDBTime:
		// Timestamps travel as Unix nanoseconds in UTC.
		ns, err := c.i64()
		if err != nil {
			return predicate.Value{}, err
		}
		return predicate.Time(time.Unix(0, ns).UTC()), nil
	default:
		return predicate.Value{}, &ErrBadNodeType{Tag: int32(tag)}
	}
}

// unpackListFile restores a srlist_id as a
// predicate.ListFile: a count followed by that many inline db_values.
func (rc *RestoreContext) unpackListFile(offset int32) (*predicate.ListFile, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*predicate.ListFile), nil
	}
	if err := rc.arena.Charge(chargeMedNode); err != nil {
		return nil, err
	}
	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	n, err := c.i32()
	if err != nil {
		return nil, err
	}
	lf := &predicate.ListFile{Materialized: true}
	rc.visited.Record(int(offset), lf)
	for i := int32(0); i < n; i++ {
		v, err := rc.unpackDBValueInline(c)
		if err != nil {
			return nil, err
		}
		lf.Values = append(lf.Values, v)
	}
	return lf, nil
}

// unpackValList restores a val_list.
func (rc *RestoreContext) unpackValList(offset int32) (*ValList, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*ValList), nil
	}
	if err := rc.arena.Charge(chargeMedNode); err != nil {
		return nil, err
	}
	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	n, err := c.i32()
	if err != nil {
		return nil, err
	}
	vl := &ValList{}
	rc.visited.Record(int(offset), vl)
	for i := int32(0); i < n; i++ {
		varOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		rv, err := rc.unpackRegu(varOff)
		if err != nil {
			return nil, err
		}
		vl.Vars = append(vl.Vars, rv)
	}
	return vl, nil
}

// unpackAccessSpec restores an access-spec variant.
func (rc *RestoreContext) unpackAccessSpec(offset int32) (*AccessSpec, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*AccessSpec), nil
	}
	if err := rc.arena.Charge(chargeMedNode); err != nil {
		return nil, err
	}
	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	tag, err := c.byte()
	if err != nil {
		return nil, err
	}
	classOID, err := c.i64()
	if err != nil {
		return nil, err
	}
	filterOff, err := c.i32()
	if err != nil {
		return nil, err
	}

	as := &AccessSpec{ClassOID: classOID}
	rc.visited.Record(int(offset), as)

	filter, err := rc.unpackPred(filterOff)
	if err != nil {
		return nil, err
	}
	as.Filter = filter

	switch tag {
	case tagAccessHeapScan:
		as.Kind = AccessHeapScan
	case tagAccessIndexScan:
		as.Kind = AccessIndexScan
		idxOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		idx, err := rc.unpackIndxInfo(idxOff)
		if err != nil {
			return nil, err
		}
		as.Index = idx
	default:
		return nil, &ErrBadNodeType{Tag: int32(tag)}
	}
	return as, nil
}

func (rc *RestoreContext) unpackIndxInfo(offset int32) (*IndxInfo, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*IndxInfo), nil
	}
	if err := rc.arena.Charge(chargeSmallNode); err != nil {
		return nil, err
	}
	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	indexID, err := c.i32()
	if err != nil {
		return nil, err
	}
	keyOff, err := c.i32()
	if err != nil {
		return nil, err
	}
	ii := &IndxInfo{IndexID: indexID}
	rc.visited.Record(int(offset), ii)
	key, err := rc.unpackKeyInfo(keyOff)
	if err != nil {
		return nil, err
	}
	ii.Key = key
	return ii, nil
}

func (rc *RestoreContext) unpackKeyInfo(offset int32) (*KeyInfo, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*KeyInfo), nil
	}
	if err := rc.arena.Charge(chargeSmallNode); err != nil {
		return nil, err
	}
	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	op, err := c.byte()
	if err != nil {
		return nil, err
	}
	lowerOff, err := c.i32()
	if err != nil {
		return nil, err
	}
	upperOff, err := c.i32()
	if err != nil {
		return nil, err
	}
	ki := &KeyInfo{Op: KeyRangeOp(op)}
	rc.visited.Record(int(offset), ki)
	lower, err := rc.unpackRegu(lowerOff)
	if err != nil {
		return nil, err
	}
	upper, err := rc.unpackRegu(upperOff)
	if err != nil {
		return nil, err
	}
	ki.Lower, ki.Upper = lower, upper
	return ki, nil
}
