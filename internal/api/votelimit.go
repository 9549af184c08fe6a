// SPDX-License-Identifier: MIT

package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// voteCleanupInterval bounds how long an idle student entry is kept.
const voteCleanupInterval = 5 * time.Minute

type voteEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// voteLimiter enforces a per-student vote rate across all polls. Keyed
// limiters are created lazily; entries idle past the cleanup interval
// are swept on the next Allow call.
type voteLimiter struct {
	mu          sync.Mutex
	entries     map[string]*voteEntry
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

func newVoteLimiter(responsesPerMin int) *voteLimiter {
	v := &voteLimiter{
		entries:     make(map[string]*voteEntry),
		lastCleanup: time.Now(),
	}
	v.setRate(responsesPerMin)
	return v
}

// setRate applies a new per-minute allowance. Existing entries are
// dropped so the new rate takes effect immediately.
func (v *voteLimiter) setRate(responsesPerMin int) {
	if responsesPerMin <= 0 {
		responsesPerMin = 20
	}
	v.mu.Lock()
	v.limit = rate.Limit(float64(responsesPerMin) / 60.0)
	v.burst = responsesPerMin
	v.entries = make(map[string]*voteEntry)
	v.mu.Unlock()
}

// Allow reports whether the student may cast another vote right now.
func (v *voteLimiter) Allow(studentID string) bool {
	now := time.Now()

	v.mu.Lock()
	e, ok := v.entries[studentID]
	if !ok {
		e = &voteEntry{lim: rate.NewLimiter(v.limit, v.burst)}
		v.entries[studentID] = e
	}
	e.lastSeen = now
	v.maybeCleanupLocked(now)
	v.mu.Unlock()

	return e.lim.Allow()
}

// maybeCleanupLocked removes entries not seen since the cleanup interval.
// Callers must hold v.mu.
func (v *voteLimiter) maybeCleanupLocked(now time.Time) {
	if now.Sub(v.lastCleanup) < voteCleanupInterval {
		return
	}
	for id, e := range v.entries {
		if now.Sub(e.lastSeen) >= voteCleanupInterval {
			delete(v.entries, id)
		}
	}
	v.lastCleanup = now
}
