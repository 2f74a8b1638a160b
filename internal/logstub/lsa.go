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

// Package logstub defines the narrow interfaces the storage and query core
// consumes from collaborators that are out of scope for this module: the
// transaction log / recovery manager, the page buffer pool, and the broker's
// ACL check. None of these are implemented here; they exist so the core can
// be built, tested, and type-checked against a realistic boundary.
package logstub

import "fmt"

// LSA is a log sequence address: a page within the log volume plus a byte
// offset within that page. NULL_LSA is NullLSA ({-1, -1}), not the zero
// value.
type LSA struct {
	Pageid int64
	Offset int32
}

// NullLSA is returned by appenders that decline to log (e.g. TEMP volume
// operations, which use TempLSA instead).
var NullLSA = LSA{Pageid: -1, Offset: -1}

// TempLSA is the sentinel written into TEMP-volume pages instead of a real
// log address; TEMP volumes are never recovered, so no real LSA is needed.
var TempLSA = LSA{Pageid: -2, Offset: -2}

func (l LSA) IsNull() bool { return l == NullLSA }

func (l LSA) String() string { return fmt.Sprintf("%d|%d", l.Pageid, l.Offset) }
