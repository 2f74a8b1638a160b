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

package diskalloc

import (
	"context"
	"errors"

	"github.com/ryedb/ryecore/internal/diskvol"
)

// Validity is the tri-state result of IsValid.
type Validity int

const (
	Valid Validity = iota
	Invalid
	ValidityError
)

// IsValid reports whether pageid is currently marked allocated in v's PAT,
// taking only the shared header latch.
func IsValid(ctx context.Context, v *diskvol.Volume, pageid int32) Validity {
	v.RLock()
	defer v.RUnlock()
	if pageid < 0 || pageid >= v.Header.TotalPages {
		return ValidityError
	}
	if v.PAT.Test(int(pageid)) {
		return Valid
	}
	return Invalid
}

// MaxContiguous returns the longest run of clear PAT bits, capped at cap
//, used by the router to verify a CONTIGUOUS
// request before committing to a volume.
func MaxContiguous(v *diskvol.Volume, cap int) int {
	v.RLock()
	defer v.RUnlock()
	lo := int(v.Header.SysLastpage) + 1
	hi := int(v.Header.TotalPages)
	return v.PAT.MaxContiguous(lo, hi, cap)
}

// SpaceInfo is the result of PurposeAndSpaceInfo.
type SpaceInfo struct {
	Purpose        diskvol.Purpose
	Total          int32
	Free           int32
	Max            int32
	UsedData       int32
	UsedIndex      int32
	UsedTemp       int32
}

var errNilVolume = errors.New("diskalloc: nil volume")

// PurposeAndSpaceInfo returns v's purpose plus its space accounting, taken
// under a shared latch on the header.
func PurposeAndSpaceInfo(v *diskvol.Volume) (SpaceInfo, error) {
	if v == nil {
		return SpaceInfo{}, errNilVolume
	}
	v.RLock()
	defer v.RUnlock()
	h := &v.Header
	return SpaceInfo{
		Purpose:   h.Purpose,
		Total:     h.TotalPages,
		Free:      h.FreePages,
		Max:       h.MaxNpages,
		UsedData:  h.UsedDataNpages,
		UsedIndex: h.UsedIndexNpages,
		UsedTemp:  h.UsedTempNpages,
	}, nil
}
