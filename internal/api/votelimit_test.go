// SPDX-License-Identifier: MIT

package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteLimiter_PrunesIdleEntries(t *testing.T) {
	v := newVoteLimiter(5)
	require.True(t, v.Allow("s1"))
	require.True(t, v.Allow("s2"))

	// Age s1's entry and the last sweep past the cleanup interval.
	v.mu.Lock()
	v.entries["s1"].lastSeen = time.Now().Add(-2 * voteCleanupInterval)
	v.lastCleanup = time.Now().Add(-2 * voteCleanupInterval)
	v.mu.Unlock()

	require.True(t, v.Allow("s2"))

	v.mu.Lock()
	_, s1Alive := v.entries["s1"]
	_, s2Alive := v.entries["s2"]
	v.mu.Unlock()
	assert.False(t, s1Alive)
	assert.True(t, s2Alive)
}

func TestVoteLimiter_SetRateResetsEntries(t *testing.T) {
	v := newVoteLimiter(1)
	require.True(t, v.Allow("s1"))
	require.False(t, v.Allow("s1"))

	v.setRate(2)
	assert.True(t, v.Allow("s1"))
	assert.True(t, v.Allow("s1"))
	assert.False(t, v.Allow("s1"))
}
