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

// ACLCheck is the IP/ACL predicate the broker front-end supplies; the core
// never evaluates ACLs itself, but components that accept remote requests
// (none in this module today) would be constructed with one.
type ACLCheck func(remoteAddr string) bool

// AllowAll is the trivial ACLCheck used in tests and single-process tools
// that never face the broker.
func AllowAll(string) bool { return true }

// WorkerPoolControlBlock mirrors the shared-memory control block the broker
// publishes describing its worker pools. The core only reads it (to size
// internal fan-out, e.g. errgroup concurrency); it never writes it.
type WorkerPoolControlBlock struct {
	NumWorkers   int
	NumAppl      int
	MaxResponses int
}
