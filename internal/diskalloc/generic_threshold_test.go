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

package diskalloc_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryedb/ryecore/internal/diskalloc"
	"github.com/ryedb/ryecore/internal/diskvol"
	"github.com/ryedb/ryecore/internal/logstub"
	"github.com/ryedb/ryecore/internal/volcache"
)

type nopAppender struct{}

func (nopAppender) Append(rec logstub.Record) (logstub.LSA, error)          { return logstub.LSA{}, nil }
func (nopAppender) AppendPostpone(rec logstub.Record) (logstub.LSA, error) { return logstub.LSA{}, nil }

// TestGenericThresholdSignalsExtension: once the GENERIC aggregate sits
// at the configured threshold, allocating
// one more page must both latch need_add_generic_volume and drive an
// extension request through the notifier a router/auto-extender would wire
// in.
func TestGenericThresholdSignalsExtension(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v, err := diskvol.Format(diskvol.FormatParams{
		Volid:        7,
		Path:         filepath.Join(dir, "v"),
		Purpose:      diskvol.PermGeneric,
		MaxNpages:    4096,
		ExtendNpages: 1024,
	}, nopAppender{}, nil)
	require.NoError(t, err)

	sectid, err := diskalloc.AllocSector(ctx, v, 1, 0, diskalloc.NopCacheUpdater{})
	require.NoError(t, err)

	cache := volcache.New()
	// Seed the cache with the volume's exact current state, then set the
	// threshold to that same free-page count: the aggregate starts right
	// at the threshold, so the very next page allocation must push it
	// below.
	cache.UpdateHint(v.Header.Volid, v.Header.Purpose, v.Header.FreePages, v.Header.TotalPages)
	threshold := int64(v.Header.FreePages)

	assert.False(t, cache.NeedAddGenericVolume(), "flag must not be set before the triggering allocation")

	var extendCalls int
	notify := func(ctx context.Context) { extendCalls++ }

	_, err = diskalloc.AllocPage(ctx, v, sectid, 1, -1, logstub.PageTypeData, cache, threshold, notify)
	require.NoError(t, err)

	assert.True(t, cache.NeedAddGenericVolume(), "need_add_generic_volume must be set once the GENERIC aggregate falls below threshold")
	assert.Equal(t, 1, extendCalls, "the low-generic notifier must fire exactly once")
}

// TestAllocPageLeavesThresholdUnsetWhenAboveFloor is the mirror case: when
// the GENERIC aggregate stays comfortably above the configured threshold,
// neither the flag nor the notifier should fire.
func TestAllocPageLeavesThresholdUnsetWhenAboveFloor(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v, err := diskvol.Format(diskvol.FormatParams{
		Volid:        8,
		Path:         filepath.Join(dir, "v"),
		Purpose:      diskvol.PermGeneric,
		MaxNpages:    4096,
		ExtendNpages: 1024,
	}, nopAppender{}, nil)
	require.NoError(t, err)

	sectid, err := diskalloc.AllocSector(ctx, v, 1, 0, diskalloc.NopCacheUpdater{})
	require.NoError(t, err)

	cache := volcache.New()
	cache.UpdateHint(v.Header.Volid, v.Header.Purpose, v.Header.FreePages, v.Header.TotalPages)

	var extendCalls int
	notify := func(ctx context.Context) { extendCalls++ }

	_, err = diskalloc.AllocPage(ctx, v, sectid, 1, -1, logstub.PageTypeData, cache, 1, notify)
	require.NoError(t, err)

	assert.False(t, cache.NeedAddGenericVolume())
	assert.Equal(t, 0, extendCalls)
}
