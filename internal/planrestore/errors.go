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
	"errors"
	"fmt"
)

// ErrInvalidXASLNode is QPROC_INVALID_XASLNODE: any malformed
// offset, missing arena space, or unknown node tag encountered while
// restoring a plan stream is reported wrapped in this sentinel.
var ErrInvalidXASLNode = errors.New("planrestore: invalid XASL node stream")

// ErrOffsetOutOfRange is raised when a body offset falls outside
// [0, body_size).
type ErrOffsetOutOfRange struct {
	Offset, BodySize int
}

func (e *ErrOffsetOutOfRange) Error() string {
	return fmt.Sprintf("planrestore: offset %d out of range [0, %d)", e.Offset, e.BodySize)
}

// ErrArenaExhausted is raised when the arena's fixed allocation runs out
// before restore completes — a malformed or adversarial stream, since a
// well-formed one never needs more than the ~3x sizing budget.
type ErrArenaExhausted struct {
	Requested, Remaining int
}

func (e *ErrArenaExhausted) Error() string {
	return fmt.Sprintf("planrestore: arena exhausted: requested %d bytes, %d remaining", e.Requested, e.Remaining)
}

// ErrTruncatedStream is raised when a pack/unpack routine needs more bytes
// than remain in the buffer.
type ErrTruncatedStream struct {
	Need, Have int
}

func (e *ErrTruncatedStream) Error() string {
	return fmt.Sprintf("planrestore: truncated stream: need %d bytes, have %d", e.Need, e.Have)
}

// ErrBadNodeType is raised when a type tag doesn't match any known unpack
// routine.
type ErrBadNodeType struct {
	Tag int32
}

func (e *ErrBadNodeType) Error() string {
	return fmt.Sprintf("planrestore: unknown node type tag %d", e.Tag)
}
