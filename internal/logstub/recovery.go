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

package logstub

// RVDKVerb is one of the disk-manager recovery verbs The
// core only ever constructs these; replaying them is the recovery manager's
// job and lives outside this module.
type RVDKVerb int

const (
	RVDKFormat RVDKVerb = iota
	RVDKInitmap
	RVDKVhdrScalloc
	RVDKVhdrPgalloc
	RVDKIdalloc
	RVDKIddeallocWithVolheader
	RVDKNewvol
	RVDKLinkPermVolext
	RVDKInitPages
)

func (v RVDKVerb) String() string {
	switch v {
	case RVDKFormat:
		return "RVDK_FORMAT"
	case RVDKInitmap:
		return "RVDK_INITMAP"
	case RVDKVhdrScalloc:
		return "RVDK_VHDR_SCALLOC"
	case RVDKVhdrPgalloc:
		return "RVDK_VHDR_PGALLOC"
	case RVDKIdalloc:
		return "RVDK_IDALLOC"
	case RVDKIddeallocWithVolheader:
		return "RVDK_IDDEALLOC_WITH_VOLHEADER"
	case RVDKNewvol:
		return "RVDK_NEWVOL"
	case RVDKLinkPermVolext:
		return "RVDK_LINK_PERM_VOLEXT"
	case RVDKInitPages:
		return "RVDK_INIT_PAGES"
	default:
		return "RVDK_UNKNOWN"
	}
}

// PageAllocPayload is the undo/redo payload carried by RVDK_VHDR_PGALLOC,
// RVDK_IDALLOC, and RVDK_IDDEALLOC_WITH_VOLHEADER: a bit range plus the kind
// of bitmap it lives in and, for page allocations, the page type.
type PageAllocPayload struct {
	StartBit int32
	Num      int32
	Kind     DeallocKind
	PageType PageType
}

// DeallocKind distinguishes sector-table from page-table bit ranges.
type DeallocKind int

const (
	DeallocSector DeallocKind = iota
	DeallocPage
)

// PageType tags the purpose of a page allocation for the GENERIC
// used_data_npages / used_index_npages bookkeeping.
type PageType int

const (
	PageTypeData PageType = iota
	PageTypeIndex
	PageTypeTemp
)

// Record is a single logged operation: a verb plus opaque undo/redo byte
// payloads, the shape describes per verb.
type Record struct {
	Verb RVDKVerb
	Undo []byte
	Redo []byte
}

// Appender is the narrow slice of the transaction log the allocator depends
// on: append a record under the already-held header latch, and, for
// deferred page deallocation, append a postpone record that is replayed as
// a single atomic unit at commit.
type Appender interface {
	// Append writes an undo/redo record and returns its LSA. Called while
	// the affected header page is latched, so calls are inherently
	// serialized per volume.
	Append(rec Record) (LSA, error)

	// AppendPostpone writes a record whose effect is deferred to
	// transaction commit (used for RVDK_IDDEALLOC_WITH_VOLHEADER).
	AppendPostpone(rec Record) (LSA, error)
}

// NopAppender discards every record and returns NullLSA; useful for TEMP
// volumes, which says never emit log records.
type NopAppender struct{}

func (NopAppender) Append(Record) (LSA, error)         { return NullLSA, nil }
func (NopAppender) AppendPostpone(Record) (LSA, error) { return NullLSA, nil }
