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

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ryedb/ryecore/internal/diskvol"
	"github.com/ryedb/ryecore/internal/volcache"
)

func TestCollectorReportsPerPurposeAggregates(t *testing.T) {
	cache := volcache.New()
	cache.Rebuild([]volcache.VolumeInfo{
		{Volid: 2, Purpose: diskvol.PermData, Free: 100, Total: 1000},
		{Volid: 3, Purpose: diskvol.PermGeneric, Free: 10000, Total: 20000},
	})
	cache.SetAutoExtendVolid(3)

	want := `
# HELP ryecore_purpose_free_pages Free-page hint aggregate for one volume purpose.
# TYPE ryecore_purpose_free_pages gauge
ryecore_purpose_free_pages{purpose="PERM_DATA"} 100
ryecore_purpose_free_pages{purpose="PERM_GENERIC"} 10000
`
	err := testutil.CollectAndCompare(NewCollector(cache), strings.NewReader(want), "ryecore_purpose_free_pages")
	require.NoError(t, err)
}

func TestCollectorReportsAutoExtendVolid(t *testing.T) {
	cache := volcache.New()
	cache.SetAutoExtendVolid(7)

	want := `
# HELP ryecore_auto_extend_volid The GENERIC volid currently registered for auto-extension, or 0 if none is registered.
# TYPE ryecore_auto_extend_volid gauge
ryecore_auto_extend_volid 7
`
	err := testutil.CollectAndCompare(NewCollector(cache), strings.NewReader(want), "ryecore_auto_extend_volid")
	require.NoError(t, err)
}

func TestCollectorReportsNeedAddGenericVolume(t *testing.T) {
	cache := volcache.New()
	cache.UpdateHint(3, diskvol.PermGeneric, 10, 1000)
	cache.CheckGenericThreshold(64)

	want := `
# HELP ryecore_need_add_generic_volume 1 if the most recent page allocation left the GENERIC free-page aggregate below the configured threshold, 0 otherwise.
# TYPE ryecore_need_add_generic_volume gauge
ryecore_need_add_generic_volume 1
`
	err := testutil.CollectAndCompare(NewCollector(cache), strings.NewReader(want), "ryecore_need_add_generic_volume")
	require.NoError(t, err)
}
