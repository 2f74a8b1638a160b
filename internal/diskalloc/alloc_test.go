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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryedb/ryecore/internal/diskvol"
	"github.com/ryedb/ryecore/internal/logstub"
)

type recordingAppender struct {
	records   []logstub.Record
	postponed []logstub.Record
}

func (r *recordingAppender) Append(rec logstub.Record) (logstub.LSA, error) {
	r.records = append(r.records, rec)
	return logstub.LSA{}, nil
}

func (r *recordingAppender) AppendPostpone(rec logstub.Record) (logstub.LSA, error) {
	r.postponed = append(r.postponed, rec)
	return logstub.LSA{}, nil
}

type hintRecorder struct {
	volid      int32
	purpose    diskvol.Purpose
	free, total int32

	belowThreshold bool
}

func (h *hintRecorder) UpdateHint(volid int32, purpose diskvol.Purpose, free, total int32) {
	h.volid, h.purpose, h.free, h.total = volid, purpose, free, total
}

func (h *hintRecorder) CheckGenericThreshold(thresholdPages int64) bool {
	return h.belowThreshold
}

func formatTestVolume(t *testing.T, purpose diskvol.Purpose, max, extend int32) *diskvol.Volume {
	t.Helper()
	dir := t.TempDir()
	v, err := diskvol.Format(diskvol.FormatParams{
		Volid:        1,
		Path:         filepath.Join(dir, "v"),
		Purpose:      purpose,
		MaxNpages:    max,
		ExtendNpages: extend,
	}, &recordingAppender{}, nil)
	require.NoError(t, err)
	return v
}

// TestFormatAllocSpaceInfo drives format, allocation, and space info
// end to end:
// format, allocate a sector then 5 pages from it, then check space info.
func TestFormatAllocSpaceInfo(t *testing.T) {
	ctx := context.Background()
	v := formatTestVolume(t, diskvol.PermData, 1024, 1024)

	sectid, err := AllocSector(ctx, v, 1, 0, NopCacheUpdater{})
	require.NoError(t, err)
	require.NotEqual(t, SpecialSector, sectid)

	res, err := AllocPage(ctx, v, sectid, 5, -1, logstub.PageTypeData, NopCacheUpdater{}, 0, nil)
	require.NoError(t, err)
	require.False(t, res.NoRangeInSector)

	info, err := PurposeAndSpaceInfo(v)
	require.NoError(t, err)

	wantFree := v.Header.TotalPages - (v.Header.SysLastpage + 1) - 5
	assert.Equal(t, wantFree, info.Free)
	// used_data_npages is only tracked for GENERIC volumes
	assert.Equal(t, int32(0), info.UsedData)
}

func TestAllocPageTracksUsedDataOnGeneric(t *testing.T) {
	ctx := context.Background()
	v := formatTestVolume(t, diskvol.PermGeneric, 4096, 1024)

	sectid, err := AllocSector(ctx, v, 1, 0, NopCacheUpdater{})
	require.NoError(t, err)

	_, err = AllocPage(ctx, v, sectid, 5, -1, logstub.PageTypeData, NopCacheUpdater{}, 0, nil)
	require.NoError(t, err)

	info, err := PurposeAndSpaceInfo(v)
	require.NoError(t, err)
	assert.Equal(t, int32(5), info.UsedData)
}

func TestAllocPageUpdatesCache(t *testing.T) {
	ctx := context.Background()
	v := formatTestVolume(t, diskvol.PermData, 1024, 1024)
	rec := &hintRecorder{}

	sectid, err := AllocSector(ctx, v, 1, 0, rec)
	require.NoError(t, err)
	_, err = AllocPage(ctx, v, sectid, 3, -1, logstub.PageTypeData, rec, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, v.Header.Volid, rec.volid)
	assert.Equal(t, v.Header.FreePages, rec.free)
}

func TestAllocSectorFallsBackToSpecialSectorWhenTight(t *testing.T) {
	ctx := context.Background()
	v := formatTestVolume(t, diskvol.PermData, 256, 256)

	v.Header.FreeSects = 0 // force the "too tight" branch
	sectid, err := AllocSector(ctx, v, 1, 0, NopCacheUpdater{})
	require.NoError(t, err)
	assert.Equal(t, SpecialSector, sectid)
}

func TestAllocPageNoRangeInSectorButVolumeHasSpace(t *testing.T) {
	ctx := context.Background()
	v := formatTestVolume(t, diskvol.PermData, 4096, 4096)

	sectid, err := AllocSector(ctx, v, 1, 0, NopCacheUpdater{})
	require.NoError(t, err)

	lo, hi := pageRangeForSector(&v.Header, sectid)
	v.PAT.SetRange(lo, hi-lo) // fill the whole sector's page range

	res, err := AllocPage(ctx, v, sectid, 4, -1, logstub.PageTypeData, NopCacheUpdater{}, 0, nil)
	require.NoError(t, err)
	assert.True(t, res.NoRangeInSector)
}

func TestIsValid(t *testing.T) {
	ctx := context.Background()
	v := formatTestVolume(t, diskvol.PermData, 256, 256)

	assert.Equal(t, Valid, IsValid(ctx, v, 0))
	assert.Equal(t, Invalid, IsValid(ctx, v, v.Header.TotalPages-1))
	assert.Equal(t, ValidityError, IsValid(ctx, v, v.Header.TotalPages+10))
	assert.Equal(t, ValidityError, IsValid(ctx, v, -1))
}

func TestMaxContiguous(t *testing.T) {
	v := formatTestVolume(t, diskvol.PermData, 256, 256)
	got := MaxContiguous(v, 1000)
	want := int(v.Header.TotalPages - v.Header.SysLastpage - 1)
	assert.Equal(t, want, got)
}
