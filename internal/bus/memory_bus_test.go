// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), TopicPollUpdated)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	require.NoError(t, b.Publish(context.Background(), TopicPollUpdated, "hello"))

	select {
	case msg := <-sub.C():
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestMemoryBus_TopicIsolation(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), TopicEngagementAlert)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	require.NoError(t, b.Publish(context.Background(), TopicPollUpdated, "other topic"))

	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected message on unrelated topic: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_DropOnBackpressure(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), TopicMasteryUpdated)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	// Overfill the subscriber buffer; publishes must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = b.Publish(context.Background(), TopicMasteryUpdated, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The buffer holds at most subscriberBuffer messages.
	received := 0
	for {
		select {
		case <-sub.C():
			received++
		default:
			assert.LessOrEqual(t, received, subscriberBuffer)
			return
		}
	}
}

func TestMemoryBus_ContextCancelDetaches(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, TopicPollUpdated)
	require.NoError(t, err)

	cancel()

	// The channel closes once the cancellation goroutine runs.
	select {
	case _, open := <-sub.C():
		assert.False(t, open, "channel should be closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("subscription not released after context cancel")
	}
}

func TestMemoryBus_CloseIsIdempotent(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), TopicPollUpdated)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	b.Close()
	b.Close()
}
