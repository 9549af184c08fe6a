// SPDX-License-Identifier: MIT

// Package bus provides the in-process event transport used to fan realtime
// classroom events (poll updates, engagement alerts, mastery changes) out
// to connected clients.
package bus

import "context"

// Message is an opaque event payload.
type Message interface{}

// Well-known topics.
const (
	TopicPollUpdated     = "poll.updated"
	TopicEngagementAlert = "engagement.alert"
	TopicMasteryUpdated  = "mastery.updated"
)

// Subscriber is a handle on a topic subscription.
type Subscriber interface {
	// C returns a read-only message channel.
	C() <-chan Message
	// Close unsubscribes and releases the channel.
	Close() error
}

// Bus is the event transport abstraction. Delivery is best-effort:
// slow subscribers lose messages rather than blocking publishers.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
