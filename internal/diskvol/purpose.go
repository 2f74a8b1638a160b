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

import "fmt"

// Purpose is the externally visible volume-purpose enumeration
type Purpose int

const (
	PermData Purpose = iota
	PermIndex
	PermGeneric
	PermTemp
	TempTemp
	EitherTemp
	PurposeUnknown
)

func (p Purpose) String() string {
	switch p {
	case PermData:
		return "PERM_DATA"
	case PermIndex:
		return "PERM_INDEX"
	case PermGeneric:
		return "PERM_GENERIC"
	case PermTemp:
		return "PERM_TEMP"
	case TempTemp:
		return "TEMP_TEMP"
	case EitherTemp:
		return "EITHER_TEMP"
	default:
		return "UNKNOWN"
	}
}

// ParsePurpose maps the config-file spelling onto a Purpose.
func ParsePurpose(s string) (Purpose, error) {
	switch s {
	case "PERM_DATA":
		return PermData, nil
	case "PERM_INDEX":
		return PermIndex, nil
	case "PERM_GENERIC":
		return PermGeneric, nil
	case "PERM_TEMP":
		return PermTemp, nil
	case "TEMP_TEMP":
		return TempTemp, nil
	case "EITHER_TEMP":
		return EitherTemp, nil
	default:
		return PurposeUnknown, fmt.Errorf("%w: unknown purpose %q", ErrFormatBadParams, s)
	}
}

// IsFullSized reports whether a volume of this purpose is created at
// max_npages and never auto-extended afterward.
func (p Purpose) IsFullSized() bool {
	return p != PermGeneric
}
