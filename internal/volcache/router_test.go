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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryedb/ryecore/internal/diskvol"
)

// TestRouterContiguousFallsBackToGeneric: cache has
// volume 2 (DATA, hint_free=100) and volume 3 (GENERIC, hint_free=10000).
// The router must pick volume 3 only when volume 2 cannot supply 64
// contiguous pages, verified through a max-contiguous probe.
func TestRouterContiguousFallsBackToGeneric(t *testing.T) {
	testCases := []struct {
		name        string
		vol2Contig  int
		wantVolid   int32
	}{
		{"volume 2 can supply 64 contiguous pages", 64, 2},
		{"volume 2 cannot supply 64 contiguous pages", 10, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			c.Rebuild([]VolumeInfo{
				{Volid: 2, Purpose: diskvol.PermData, Free: 100, Total: 1000},
				{Volid: 3, Purpose: diskvol.PermGeneric, Free: 10000, Total: 20000},
			})
			probe := func(volid int32, cap int) int {
				switch volid {
				case 2:
					return tc.vol2Contig
				case 3:
					return 10000
				}
				return 0
			}
			r := NewRouter(c, probe, nil)
			volid, err := r.FindVolumeFor(context.Background(), diskvol.PermData, -1, -1, 64, Contiguous)
			require.NoError(t, err)
			assert.Equal(t, tc.wantVolid, volid)
		})
	}
}

func TestFindVolumeForPicksMostFreeWithinGroup(t *testing.T) {
	c := New()
	c.Rebuild([]VolumeInfo{
		{Volid: 1, Purpose: diskvol.PermData, Free: 50, Total: 1000},
		{Volid: 2, Purpose: diskvol.PermData, Free: 200, Total: 1000},
	})
	r := NewRouter(c, nil, nil)
	volid, err := r.FindVolumeFor(context.Background(), diskvol.PermData, -1, -1, 0, NoncontiguousSameVol)
	require.NoError(t, err)
	assert.Equal(t, int32(2), volid)
}

func TestFindVolumeForTempHintShortCircuits(t *testing.T) {
	c := New()
	c.Rebuild([]VolumeInfo{
		{Volid: 9, Purpose: diskvol.TempTemp, Free: 5, Total: 100},
		{Volid: 10, Purpose: diskvol.TempTemp, Free: 500, Total: 1000},
	})
	r := NewRouter(c, nil, nil)
	volid, err := r.FindVolumeFor(context.Background(), diskvol.TempTemp, 9, -1, 0, NoncontiguousSameVol)
	require.NoError(t, err)
	assert.Equal(t, int32(9), volid, "the hint volume must be tried first for TEMP_TEMP")
}

type stubExtender struct {
	calls   int
	volid   int32
	onExtend func()
}

func (s *stubExtender) ExtendOrCreate(ctx context.Context, purpose diskvol.Purpose, hintVolid int32) (int32, error) {
	s.calls++
	if s.onExtend != nil {
		s.onExtend()
	}
	return s.volid, nil
}

func TestFindVolumeForExtendsAndRetriesOnce(t *testing.T) {
	c := New()
	ext := &stubExtender{volid: 42, onExtend: func() {
		c.Rebuild([]VolumeInfo{{Volid: 42, Purpose: diskvol.PermData, Free: 1000, Total: 1000}})
	}}
	r := NewRouter(c, nil, ext)

	volid, err := r.FindVolumeFor(context.Background(), diskvol.PermData, -1, -1, 0, NoncontiguousSameVol)
	require.NoError(t, err)
	assert.Equal(t, int32(42), volid)
	assert.Equal(t, 1, ext.calls, "extension must be requested exactly once")
}

func TestFindVolumeForReportsNotEnoughPages(t *testing.T) {
	c := New()
	r := NewRouter(c, nil, &stubExtender{volid: 0})
	_, err := r.FindVolumeFor(context.Background(), diskvol.PermData, -1, -1, 0, NoncontiguousSameVol)
	assert.ErrorIs(t, err, ErrNotEnoughPages)
}
