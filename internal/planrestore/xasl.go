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
	"github.com/ryedb/ryecore/internal/predicate"
)

// XASLStatus is the restored plan's runtime execution status; a fresh
// restore always starts at StatusInitialized.
type XASLStatus int

const (
	StatusInitialized XASLStatus = iota
	StatusRunning
	StatusEnded
)

// ProcType tags which of XASLNode's proc fields (Union, Buildlist,
// Buildvalue, Update, Delete, Insert) is populated.
type ProcType int

const (
	ProcUnion ProcType = iota
	ProcBuildlist
	ProcBuildvalue
	ProcUpdate
	ProcDelete
	ProcInsert
)

// Stats is the zeroed-at-restore statistics block: statistics blocks zeroed.
type Stats struct {
	CardReturned int64
	CardEstimate int64
	ElapsedNanos int64
}

// XASLNode is the restored plan graph's node type — the root of a restore
// and, through Dptr/sub-plan fields, every internal node too. The proc
// field selected by ProcType carries the type-specific payload; Scan, Where,
// and OutList are shared across proc types, matching the union layout the
// typed unpack routines populate field-by-field.
type XASLNode struct {
	Status          XASLStatus
	QueryInProgress bool
	Stats           Stats

	ProcType ProcType
	Union    *UnionProc
	Buildlist *BuildlistProc
	Buildvalue *BuildvalueProc
	Update    *UpdateProc
	Delete    *DeleteProc
	Insert    *InsertProc

	Scan   *AccessSpec
	Where  *predicate.Tree
	OutList *ValList

	// Dptr is the next XASL node in a depth-first chain (e.g. a UNION's
	// sibling, or a nested subquery's outer plan); nil at a leaf.
	Dptr *XASLNode
}

// UnionProc: union/difference/intersection over two sub-plans.
type UnionSetOp int

const (
	SetOpUnion UnionSetOp = iota
	SetOpDifference
	SetOpIntersection
)

type UnionProc struct {
	Op          UnionSetOp
	Left, Right *XASLNode
}

// BuildlistProc materializes a list of output tuples (SELECT-shaped plan).
type BuildlistProc struct {
	Having *predicate.Tree
}

// BuildvalueProc materializes a single scalar (aggregate/scalar subquery).
type BuildvalueProc struct {
	Value  *predicate.ReguVariable
	Having *predicate.Tree
}

// UpdateProc/DeleteProc/InsertProc are the DML proc shapes; ClassOID
// stands in for the restored OID.
type UpdateProc struct {
	ClassOID int64
	AttrIDs  []int32
	Assigns  []*predicate.ReguVariable
}

type DeleteProc struct {
	ClassOID int64
}

type InsertProc struct {
	ClassOID int64
	Values   []*predicate.ReguVariable
}

// AccessSpecKind tags which scan strategy AccessSpec describes.
type AccessSpecKind int

const (
	AccessHeapScan AccessSpecKind = iota
	AccessIndexScan
)

// AccessSpec is the access-spec variant family: a heap scan needs nothing
// beyond ClassOID and
// an optional filter; an index scan additionally carries IndxInfo/KeyInfo.
type AccessSpec struct {
	Kind     AccessSpecKind
	ClassOID int64
	Filter   *predicate.Tree
	Index    *IndxInfo
}

// IndxInfo identifies the index used by an index scan and its key range.
type IndxInfo struct {
	IndexID int32
	Key     *KeyInfo
}

// KeyInfo is the decoded index-key range: one lower/upper bound pair plus
// the range search option.
type KeyRangeOp int

const (
	RangeGE KeyRangeOp = iota
	RangeGT
	RangeEQ
	RangeLE
	RangeLT
	RangeBetween
)

type KeyInfo struct {
	Op          KeyRangeOp
	Lower, Upper *predicate.ReguVariable
}

// ValList is the restored val_list: an ordered list of output
// regu-variables.
type ValList struct {
	Vars []*predicate.ReguVariable
}

// SortItem/SortList: an ORDER BY position plus direction.
type SortItem struct {
	Pos int32
	Asc bool
}

type SortList struct {
	Items []SortItem
}

// AggregateType is a restored aggregate expression.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

type AggregateType struct {
	Func     AggFunc
	Operand  *predicate.ReguVariable
	Distinct bool
}

// FunctionType is a restored scalar function call.
type FunctionType struct {
	FuncCode int32
	Args     []*predicate.ReguVariable
}

// Header is the parsed stream header: version and top-level counters
// (dbval count, creator oid, oid list of referenced classes with
// cardinality hints).
type Header struct {
	Version      int32
	DBValCount   int32
	CreatorOID   int64
	ClassOIDs    []int64
	Cardinality  []int64 // parallel to ClassOIDs
}
