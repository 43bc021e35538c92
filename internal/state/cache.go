// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package state

import (
	"time"

	"github.com/jacobsa/timeutil"
)

// DefaultTTL is the cache lifetime picked from the [500ms, 1s] range the
// source leaves as an open question; callers may override it through
// cfg.
const DefaultTTL = 750 * time.Millisecond

// Requester performs the single round trip the cache falls back to on a
// miss. *ipc.Channel satisfies this directly; tests substitute a fake.
type Requester interface {
	SendStateRequest(interest Interest) (*Snapshot, error)
}

// Cache holds the last game snapshot for a TTL and tracks the interest
// it was fetched with, re-fetching on expiry or on a strictly additive
// new interest. Grounded on the teacher's use of timeutil.Clock for
// testable time (fs/inode/dir.go's `clock timeutil.Clock` field) rather
// than calling time.Now directly.
type Cache struct {
	clock timeutil.Clock
	ttl   time.Duration

	snapshot     *Snapshot
	lastInterest Interest
	lastQuery    time.Time
	primed       bool
}

// NewCache constructs a Cache. A zero ttl selects DefaultTTL.
func NewCache(clock timeutil.Clock, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Cache{clock: clock, ttl: ttl}
}

// Get returns the cached snapshot, re-fetching through req first if the
// TTL has elapsed or interest is additive relative to the last fetch,
// per §4.C.
func (c *Cache) Get(req Requester, interest Interest) (*Snapshot, error) {
	now := c.clock.Now()

	stale := !c.primed || now.Sub(c.lastQuery) > c.ttl
	additive := c.primed && c.lastInterest.IsAdditive(interest)

	if !stale && !additive {
		return c.snapshot, nil
	}

	snap, err := req.SendStateRequest(interest)
	if err != nil {
		return nil, err
	}

	c.snapshot = snap
	c.lastInterest = interest
	c.lastQuery = now
	c.primed = true

	return c.snapshot, nil
}

// Peek returns the currently cached snapshot without considering
// staleness or additive interest, and without issuing a fetch. ok is
// false until Get has succeeded at least once.
func (c *Cache) Peek() (snap *Snapshot, ok bool) {
	return c.snapshot, c.primed
}
