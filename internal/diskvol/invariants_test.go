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

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInvariantsPassesAfterFormat(t *testing.T) {
	dir := t.TempDir()
	v, err := Format(FormatParams{
		Volid:        1,
		Path:         filepath.Join(dir, "v"),
		Purpose:      PermData,
		MaxNpages:    256,
		ExtendNpages: 256,
	}, &recordingAppender{}, nil)
	require.NoError(t, err)
	assert.NoError(t, v.CheckInvariants())
}

func TestCheckInvariantsCollectsMultipleViolations(t *testing.T) {
	dir := t.TempDir()
	v, err := Format(FormatParams{
		Volid:        1,
		Path:         filepath.Join(dir, "v"),
		Purpose:      PermData,
		MaxNpages:    256,
		ExtendNpages: 256,
	}, &recordingAppender{}, nil)
	require.NoError(t, err)

	// Corrupt several independent invariants at once.
	v.Header.FreePages = -1
	v.Header.TotalSects = 999
	v.Header.TotalPages = v.Header.MaxNpages + 1

	err = v.CheckInvariants()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "free_pages")
	assert.Contains(t, msg, "total_sects")
}

func TestCheckInvariantsCatchesClearedSystemBit(t *testing.T) {
	dir := t.TempDir()
	v, err := Format(FormatParams{
		Volid:        1,
		Path:         filepath.Join(dir, "v"),
		Purpose:      PermData,
		MaxNpages:    256,
		ExtendNpages: 256,
	}, &recordingAppender{}, nil)
	require.NoError(t, err)

	v.PAT.Clear(0)
	err = v.CheckInvariants()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system page")
}
