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
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Latch is the header/bitmap latch every mutating volume operation takes
// exclusively, and every read-only lookup takes for shared read. The volume
// header is the single serialization point for volume-wide counters; hold
// it the minimum time.
type Latch struct {
	mu sync.RWMutex
}

func (l *Latch) Lock()    { l.mu.Lock() }
func (l *Latch) Unlock()  { l.mu.Unlock() }
func (l *Latch) RLock()   { l.mu.RLock() }
func (l *Latch) RUnlock() { l.mu.RUnlock() }

// LatchPollInterval is how often a blocked latch attempt is retried while
// waiting for LatchTimeout to elapse.
var LatchPollInterval = 2 * time.Millisecond

// LatchTimeout is the configurable per-attempt latch acquisition timeout.
var LatchTimeout = 50 * time.Millisecond

// MaxLatchRetries bounds the retry loop before PAGE_LATCH_ABORTED.
var MaxLatchRetries = 3

// AcquireExclusiveWithRetry attempts to take v's latch exclusively within
// LatchTimeout, retrying up to MaxLatchRetries times before giving up with
// ErrLatchAborted. It polls with TryLock rather than blocking on Lock so a
// timed-out attempt never leaves a goroutine waiting to acquire a latch the
// caller has abandoned. ctx is checked between retries so cooperative
// cancellation can interrupt the wait.
func (v *Volume) AcquireExclusiveWithRetry(ctx context.Context) error {
	attempts := 0
	op := func() error {
		attempts++
		deadline := time.Now().Add(LatchTimeout)
		for {
			if v.mu.mu.TryLock() {
				return nil
			}
			if time.Now().After(deadline) {
				return ErrLatchTimedOut
			}
			select {
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			case <-time.After(LatchPollInterval):
			}
		}
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(LatchPollInterval), uint64(MaxLatchRetries))
	err := backoff.Retry(op, b)
	if err == nil {
		return nil
	}
	if attempts > MaxLatchRetries {
		return ErrLatchAborted
	}
	return err
}
