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

	"github.com/ryedb/ryecore/internal/diskvol"
)

// CacheUpdater is the narrow slice of the process-wide free-space cache
// (internal/volcache) the allocator pushes hints into after a successful
// mutation, once the header is unlatched. Kept as an interface here
// (rather than importing volcache directly) so volcache can depend on
// diskalloc/diskvol without a cycle.
type CacheUpdater interface {
	UpdateHint(volid int32, purpose diskvol.Purpose, freePages, totalPages int32)

	// CheckGenericThreshold compares the GENERIC purpose aggregate's
	// current free-page count against thresholdPages and latches the
	// need_add_generic_volume flag the router/auto-extender consults,
	// reporting the flag's new value.
	CheckGenericThreshold(thresholdPages int64) bool
}

// GenericLowNotifier is invoked when a page allocation drives the GENERIC
// purpose aggregate below the configured threshold, so a caller can request
// extension proactively instead of waiting for the next shortage. Kept as a
// function type rather than an Extender import so this package stays
// ignorant of volcache's internals, the same "inject a closure over the
// real collaborator" pattern as volcache.MaxContiguousProbe, e.g.:
//
//	notify := func(ctx context.Context) {
//	    _, _ = extender.ExtendOrCreate(ctx, diskvol.PermGeneric, -1)
//	}
type GenericLowNotifier func(ctx context.Context)

// NopCacheUpdater discards hints; used by callers (and tests) that don't
// need the router's cache kept warm.
type NopCacheUpdater struct{}

func (NopCacheUpdater) UpdateHint(int32, diskvol.Purpose, int32, int32) {}
func (NopCacheUpdater) CheckGenericThreshold(int64) bool                { return false }
