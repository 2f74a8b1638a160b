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

package diskvol

import "errors"

// Error taxonomy for the volume layer.
var (
	ErrFormatBadParams = errors.New("diskvol: bad format parameters")
	ErrFormatIO        = errors.New("diskvol: format I/O error")
	ErrMediaRecovery   = errors.New("diskvol: volume I/O failure, media recovery may be needed")
	ErrInvariant       = errors.New("diskvol: header invariant violated")
	ErrLatchTimedOut   = errors.New("diskvol: page latch timed out")
	ErrLatchAborted    = errors.New("diskvol: page latch aborted after bounded retry")
)
