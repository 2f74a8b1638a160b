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

package volcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryedb/ryecore/internal/diskvol"
)

type stubCreator struct {
	mu       sync.Mutex
	calls    int
	volid    int32
	purposes []diskvol.Purpose
}

func (s *stubCreator) CreateVolume(ctx context.Context, purpose diskvol.Purpose, hintVolid int32) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.purposes = append(s.purposes, purpose)
	return s.volid, nil
}

type stubGrower struct {
	mu      sync.Mutex
	calls   int
	failErr error

	// release, when non-nil, holds every Grow call until the test closes
	// it, so one extension stays in flight while other callers join it.
	release chan struct{}
}

func (s *stubGrower) Grow(ctx context.Context, volid int32, addPages int32) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	return s.failErr
}

// stubProbe reports a fixed space snapshot for every volid, standing in for
// a real diskalloc.PurposeAndSpaceInfo lookup over an open volume.
func stubProbe(purpose diskvol.Purpose, free, total int32) SpaceInfoProbe {
	return func(volid int32) (diskvol.Purpose, int32, int32, bool) {
		return purpose, free, total, true
	}
}

func TestAutoExtenderGrowsRegisteredVolume(t *testing.T) {
	c := New()
	c.SetAutoExtendVolid(5)
	grower := &stubGrower{}
	creator := &stubCreator{volid: 99}
	ext := NewAutoExtender(c, creator, grower, stubProbe(diskvol.PermGeneric, 5000, 8192), 4096)

	volid, err := ext.ExtendOrCreate(context.Background(), diskvol.PermGeneric, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(5), volid)
	assert.Equal(t, 1, grower.calls)
	assert.Equal(t, 0, creator.calls)

	free, ok := c.HintFreePages(5)
	require.True(t, ok, "a successful grow must register the volume's fresh space so the router's retry sees it")
	assert.Equal(t, int32(5000), free)
}

func TestAutoExtenderCreatesWhenGrowFailsAndClearsRegistration(t *testing.T) {
	c := New()
	c.SetAutoExtendVolid(5)
	grower := &stubGrower{failErr: errors.New("volume already at max_npages")}
	creator := &stubCreator{volid: 99}
	ext := NewAutoExtender(c, creator, grower, stubProbe(diskvol.PermGeneric, 4096, 4096), 4096)

	volid, err := ext.ExtendOrCreate(context.Background(), diskvol.PermGeneric, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(99), volid)
	assert.Equal(t, 1, creator.calls)

	registered, ok := c.AutoExtendVolid()
	assert.True(t, ok, "the freshly created GENERIC volume becomes the new auto-extend target")
	assert.Equal(t, int32(99), registered)

	free, ok := c.HintFreePages(99)
	require.True(t, ok, "the newly created volume's space must be registered in the cache")
	assert.Equal(t, int32(4096), free)
}

func TestAutoExtenderCreatesWhenNoneRegistered(t *testing.T) {
	c := New()
	grower := &stubGrower{}
	creator := &stubCreator{volid: 7}
	ext := NewAutoExtender(c, creator, grower, stubProbe(diskvol.TempTemp, 1000, 1000), 4096)

	volid, err := ext.ExtendOrCreate(context.Background(), diskvol.TempTemp, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(7), volid)
	assert.Equal(t, 0, grower.calls)

	free, ok := c.HintFreePages(7)
	require.True(t, ok)
	assert.Equal(t, int32(1000), free)
}

// TestAutoExtenderRoutesPermDataToGenericGrow: a PERM_DATA shortage grows
// the registered GENERIC volume; it must never format a brand-new
// PERM_DATA volume outside the router's search groups.
func TestAutoExtenderRoutesPermDataToGenericGrow(t *testing.T) {
	c := New()
	c.SetAutoExtendVolid(5)
	grower := &stubGrower{}
	creator := &stubCreator{volid: 99}
	ext := NewAutoExtender(c, creator, grower, stubProbe(diskvol.PermGeneric, 5000, 8192), 4096)

	volid, err := ext.ExtendOrCreate(context.Background(), diskvol.PermData, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(5), volid)
	assert.Equal(t, 1, grower.calls)
	assert.Equal(t, 0, creator.calls)
}

// TestAutoExtenderCreatesGenericForPermIndex: with no registered GENERIC
// volume, a PERM_INDEX shortage creates a GENERIC volume and registers it
// as the new auto-extend target.
func TestAutoExtenderCreatesGenericForPermIndex(t *testing.T) {
	c := New()
	grower := &stubGrower{}
	creator := &stubCreator{volid: 9}
	ext := NewAutoExtender(c, creator, grower, stubProbe(diskvol.PermGeneric, 4096, 8192), 4096)

	volid, err := ext.ExtendOrCreate(context.Background(), diskvol.PermIndex, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(9), volid)
	assert.Equal(t, 0, grower.calls)
	require.Equal(t, []diskvol.Purpose{diskvol.PermGeneric}, creator.purposes)

	registered, ok := c.AutoExtendVolid()
	assert.True(t, ok)
	assert.Equal(t, int32(9), registered)
}

func TestAutoExtenderEitherTempCreatesPermTemp(t *testing.T) {
	c := New()
	creator := &stubCreator{volid: 11}
	ext := NewAutoExtender(c, creator, &stubGrower{}, stubProbe(diskvol.PermTemp, 1000, 1000), 4096)

	volid, err := ext.ExtendOrCreate(context.Background(), diskvol.EitherTemp, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(11), volid)
	require.Equal(t, []diskvol.Purpose{diskvol.PermTemp}, creator.purposes)

	_, ok := c.AutoExtendVolid()
	assert.False(t, ok, "a TEMP creation must not claim the GENERIC auto-extend registration")
}

// TestAutoExtenderCollapsesConcurrentRequests: only one extension may be
// in flight at a time for the same purpose key.
func TestAutoExtenderCollapsesConcurrentRequests(t *testing.T) {
	c := New()
	c.SetAutoExtendVolid(5)
	release := make(chan struct{})
	grower := &stubGrower{release: release}
	creator := &stubCreator{volid: 99}
	ext := NewAutoExtender(c, creator, grower, stubProbe(diskvol.PermGeneric, 5000, 8192), 4096)

	const n = 20
	var wg sync.WaitGroup
	results := make([]int32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			volid, _ := ext.ExtendOrCreate(context.Background(), diskvol.PermGeneric, -1)
			results[i] = volid
		}(i)
	}

	// Wait until the first Grow call is in flight, give the remaining
	// goroutines time to join it, then release it for all of them.
	for {
		grower.mu.Lock()
		started := grower.calls > 0
		grower.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	grower.mu.Lock()
	calls := grower.calls
	grower.mu.Unlock()

	assert.Less(t, calls, n, "singleflight should collapse concurrent callers into fewer underlying Grow calls")
	for _, r := range results {
		assert.Equal(t, int32(5), r)
	}
}
