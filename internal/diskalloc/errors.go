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

// Package diskalloc implements sector and page allocation/deallocation over
// a diskvol.Volume's bitmaps.
package diskalloc

import "errors"

var (
	// ErrNoContiguousRange is returned by AllocPage when the requested
	// sector (or, for the special sector, the whole volume) has no run of
	// npages contiguous clear bits and the volume as a whole has fewer than
	// npages free pages. When enough free pages exist volume-wide, AllocPage
	// instead reports PageAllocResult.NoRangeInSector without an error.
	ErrNoContiguousRange = errors.New("diskalloc: no contiguous page range in requested sector")
)

// SpecialSector is the sentinel sector id permitting allocation from any
// free page range in the volume.
const SpecialSector int32 = -1
