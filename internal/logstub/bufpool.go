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

package logstub

import "context"

// PageID identifies a page within a volume.
type PageID int32

// Page is the in-memory fixed representation of a page buffer slot. The
// real buffer pool owns replacement policy and I/O; this module only needs
// fix/unfix/dirty/invalidate.
type Page struct {
	Volid int32
	Pageid PageID
	Bytes  []byte
}

// BufferPool is the narrow page-buffer-pool interface the allocator and
// bitmap code depend on. Fix may suspend on I/O; callers pass a
// context so cancellation can interrupt the wait.
type BufferPool interface {
	Fix(ctx context.Context, volid int32, pageid PageID) (*Page, error)
	Unfix(p *Page)
	SetDirty(p *Page)
	Invalidate(ctx context.Context, volid int32, pageid PageID) error
}
