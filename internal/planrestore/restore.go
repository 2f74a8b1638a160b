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
	"fmt"

	"github.com/ryedb/ryecore/internal/predicate"
)

// Node tags for the XASL node family and its proc variants.
const (
	tagProcUnion byte = iota
	tagProcBuildlist
	tagProcBuildvalue
	tagProcUpdate
	tagProcDelete
	tagProcInsert
)

// chargeXASLNode is the per-node arena charge for an XASLNode, the largest
// of the restored shapes (it carries a proc union plus three shared
// pointers), so it gets its own named charge rather than reusing
// chargeMedNode.
const chargeXASLNode = 96

// RestoreContext is the single per-restore context: the arena, the
// visited-pointer table, and the plan-node byte stream every offset in the
// restored graph indexes into. Errors surface directly through each unpack
// call's return, so a caller that drives Restore as a single call doesn't
// need a separate error-storage type.
type RestoreContext struct {
	body    []byte
	arena   *Arena
	visited *VisitedTable
	header  *Header
}

// cursorAt returns a cursor positioned at offset within rc.body, after
// validating that the offset falls inside the body's bounds.
func (rc *RestoreContext) cursorAt(offset int32) (*cursor, error) {
	if offset < 0 || int(offset) >= len(rc.body) {
		return nil, &ErrOffsetOutOfRange{Offset: int(offset), BodySize: len(rc.body)}
	}
	return &cursor{buf: rc.body, pos: int(offset)}, nil
}

// Restore parses a packed plan stream and
// rehydrates it into a live *XASLNode graph plus the parsed stream Header.
// Any allocation or offset error is wrapped in ErrInvalidXASLNode
// (QPROC_INVALID_XASLNODE, ); the arena and visited table are local
// to this call and simply go out of scope on return, which is the Go
// equivalent of the "arena freed wholesale" / "visited-pointer
// table freed independently".
func Restore(raw []byte) (*XASLNode, *Header, error) {
	stream, err := ParseStream(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidXASLNode, err)
	}

	header, err := parseHeader(stream.Header)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidXASLNode, err)
	}

	rc := &RestoreContext{
		body:    stream.Body,
		arena:   NewArena(len(stream.Body)),
		visited: NewVisitedTable(),
		header:  header,
	}

	root, err := rc.restoreRoot()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidXASLNode, err)
	}
	return root, header, nil
}

// parseHeader unpacks the stream header: version, dbval count, creator oid,
// and the oid list of referenced classes with per-class cardinality hints
//.
func parseHeader(raw []byte) (*Header, error) {
	c := &cursor{buf: raw}

	version, err := c.i32()
	if err != nil {
		return nil, fmt.Errorf("planrestore: header version: %w", err)
	}
	dbValCount, err := c.i32()
	if err != nil {
		return nil, fmt.Errorf("planrestore: header dbval count: %w", err)
	}
	creatorOID, err := c.i64()
	if err != nil {
		return nil, fmt.Errorf("planrestore: header creator oid: %w", err)
	}
	n, err := c.i32()
	if err != nil {
		return nil, fmt.Errorf("planrestore: header class count: %w", err)
	}

	h := &Header{Version: version, DBValCount: dbValCount, CreatorOID: creatorOID}
	for i := int32(0); i < n; i++ {
		oid, err := c.i64()
		if err != nil {
			return nil, fmt.Errorf("planrestore: header class oid %d: %w", i, err)
		}
		card, err := c.i64()
		if err != nil {
			return nil, fmt.Errorf("planrestore: header cardinality %d: %w", i, err)
		}
		h.ClassOIDs = append(h.ClassOIDs, oid)
		h.Cardinality = append(h.Cardinality, card)
	}
	return h, nil
}

// restoreRoot restores the XASL_NODE at body offset 0 — the root is always
// present, unlike every other XASLNode-typed field (Union.Left/Right,
// Dptr), where offset 0 means "no such node".
func (rc *RestoreContext) restoreRoot() (*XASLNode, error) {
	return rc.unpackXASLNodeAt(0)
}

// unpackXASLNode restores the XASLNode at offset, or returns (nil, nil) for
// a null pointer field (offset 0).
func (rc *RestoreContext) unpackXASLNode(offset int32) (*XASLNode, error) {
	if offset == 0 {
		return nil, nil
	}
	return rc.unpackXASLNodeAt(offset)
}

// unpackXASLNodeAt does the actual restore work shared by restoreRoot and
// unpackXASLNode, deduplicating through the visited table exactly like
// every other shape in this package.
func (rc *RestoreContext) unpackXASLNodeAt(offset int32) (*XASLNode, error) {
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*XASLNode), nil
	}
	if err := rc.arena.Charge(chargeXASLNode); err != nil {
		return nil, err
	}

	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	procType, err := c.byte()
	if err != nil {
		return nil, err
	}
	scanOff, err := c.i32()
	if err != nil {
		return nil, err
	}
	whereOff, err := c.i32()
	if err != nil {
		return nil, err
	}
	outListOff, err := c.i32()
	if err != nil {
		return nil, err
	}
	dptrOff, err := c.i32()
	if err != nil {
		return nil, err
	}

	// Runtime fields: status INITIALIZED, query_in_progress false,
	// statistics zeroed. All already the zero value, set explicitly here
	// for clarity.
	node := &XASLNode{
		Status:          StatusInitialized,
		QueryInProgress: false,
		Stats:           Stats{},
		ProcType:        ProcType(procType),
	}
	rc.visited.Record(int(offset), node)

	scan, err := rc.unpackAccessSpec(scanOff)
	if err != nil {
		return nil, err
	}
	node.Scan = scan

	where, err := rc.unpackPred(whereOff)
	if err != nil {
		return nil, err
	}
	node.Where = where

	outList, err := rc.unpackValList(outListOff)
	if err != nil {
		return nil, err
	}
	node.OutList = outList

	if err := rc.unpackProc(c, node, procType); err != nil {
		return nil, err
	}

	dptr, err := rc.unpackXASLNode(dptrOff)
	if err != nil {
		return nil, err
	}
	node.Dptr = dptr

	return node, nil
}

// unpackProc restores the type-specific proc payload selected by procType:
// union, buildlist, buildvalue, or one of the update/delete/insert procs.
func (rc *RestoreContext) unpackProc(c *cursor, node *XASLNode, procType byte) error {
	switch procType {
	case tagProcUnion:
		op, err := c.byte()
		if err != nil {
			return err
		}
		leftOff, err := c.i32()
		if err != nil {
			return err
		}
		rightOff, err := c.i32()
		if err != nil {
			return err
		}
		left, err := rc.unpackXASLNode(leftOff)
		if err != nil {
			return err
		}
		right, err := rc.unpackXASLNode(rightOff)
		if err != nil {
			return err
		}
		node.Union = &UnionProc{Op: UnionSetOp(op), Left: left, Right: right}

	case tagProcBuildlist:
		havingOff, err := c.i32()
		if err != nil {
			return err
		}
		having, err := rc.unpackPred(havingOff)
		if err != nil {
			return err
		}
		node.Buildlist = &BuildlistProc{Having: having}

	case tagProcBuildvalue:
		valueOff, err := c.i32()
		if err != nil {
			return err
		}
		havingOff, err := c.i32()
		if err != nil {
			return err
		}
		value, err := rc.unpackRegu(valueOff)
		if err != nil {
			return err
		}
		having, err := rc.unpackPred(havingOff)
		if err != nil {
			return err
		}
		node.Buildvalue = &BuildvalueProc{Value: value, Having: having}

	case tagProcUpdate:
		classOID, err := c.i64()
		if err != nil {
			return err
		}
		nAttrs, err := c.i32()
		if err != nil {
			return err
		}
		attrIDs := make([]int32, 0, nAttrs)
		for i := int32(0); i < nAttrs; i++ {
			id, err := c.i32()
			if err != nil {
				return err
			}
			attrIDs = append(attrIDs, id)
		}
		nAssigns, err := c.i32()
		if err != nil {
			return err
		}
		assigns := make([]*predicate.ReguVariable, 0, nAssigns)
		for i := int32(0); i < nAssigns; i++ {
			off, err := c.i32()
			if err != nil {
				return err
			}
			rv, err := rc.unpackRegu(off)
			if err != nil {
				return err
			}
			assigns = append(assigns, rv)
		}
		node.Update = &UpdateProc{ClassOID: classOID, AttrIDs: attrIDs, Assigns: assigns}

	case tagProcDelete:
		classOID, err := c.i64()
		if err != nil {
			return err
		}
		node.Delete = &DeleteProc{ClassOID: classOID}

	case tagProcInsert:
		classOID, err := c.i64()
		if err != nil {
			return err
		}
		n, err := c.i32()
		if err != nil {
			return err
		}
		values := make([]*predicate.ReguVariable, 0, n)
		for i := int32(0); i < n; i++ {
			off, err := c.i32()
			if err != nil {
				return err
			}
			rv, err := rc.unpackRegu(off)
			if err != nil {
				return err
			}
			values = append(values, rv)
		}
		node.Insert = &InsertProc{ClassOID: classOID, Values: values}

	default:
		return &ErrBadNodeType{Tag: int32(procType)}
	}
	return nil
}

// unpackSortList restores a sort_list: a
// count followed by that many (position, ascending) pairs.
func (rc *RestoreContext) unpackSortList(offset int32) (*SortList, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*SortList), nil
	}
	if err := rc.arena.Charge(chargeSmallNode); err != nil {
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
	sl := &SortList{}
	rc.visited.Record(int(offset), sl)
	for i := int32(0); i < n; i++ {
		pos, err := c.i32()
		if err != nil {
			return nil, err
		}
		asc, err := c.byte()
		if err != nil {
			return nil, err
		}
		sl.Items = append(sl.Items, SortItem{Pos: pos, Asc: asc != 0})
	}
	return sl, nil
}

// unpackAggregateType restores an aggregate_type.
func (rc *RestoreContext) unpackAggregateType(offset int32) (*AggregateType, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*AggregateType), nil
	}
	if err := rc.arena.Charge(chargeSmallNode); err != nil {
		return nil, err
	}
	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	fn, err := c.byte()
	if err != nil {
		return nil, err
	}
	distinct, err := c.byte()
	if err != nil {
		return nil, err
	}
	operandOff, err := c.i32()
	if err != nil {
		return nil, err
	}
	at := &AggregateType{Func: AggFunc(fn), Distinct: distinct != 0}
	rc.visited.Record(int(offset), at)
	operand, err := rc.unpackRegu(operandOff)
	if err != nil {
		return nil, err
	}
	at.Operand = operand
	return at, nil
}

// unpackFunctionType restores a function_type.
func (rc *RestoreContext) unpackFunctionType(offset int32) (*FunctionType, error) {
	if offset == 0 {
		return nil, nil
	}
	if cached, ok := rc.visited.Lookup(int(offset)); ok {
		return cached.(*FunctionType), nil
	}
	if err := rc.arena.Charge(chargeMedNode); err != nil {
		return nil, err
	}
	c, err := rc.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	code, err := c.i32()
	if err != nil {
		return nil, err
	}
	n, err := c.i32()
	if err != nil {
		return nil, err
	}
	ft := &FunctionType{FuncCode: code}
	rc.visited.Record(int(offset), ft)
	for i := int32(0); i < n; i++ {
		argOff, err := c.i32()
		if err != nil {
			return nil, err
		}
		arg, err := rc.unpackRegu(argOff)
		if err != nil {
			return nil, err
		}
		ft.Args = append(ft.Args, arg)
	}
	return ft, nil
}
