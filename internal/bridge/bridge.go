// Package bridge defines the host notification capability consumed by the
// status panel and ships an in-process implementation of it.
//
// A Bridge delivers string payloads published on a named topic to the
// handlers listening on that topic. Hosts that do not provide the capability
// expose it through Missing, whose Available reports false.
package bridge

import (
	"context"
	"errors"
)

// TopicProcessUpdate is the topic on which the host monitor publishes the PID
// of the target process, or "0" when it is not running.
const TopicProcessUpdate = "process-update"

var (
	// ErrUnavailable is returned by Listen on a bridge that does not exist in
	// the current host environment.
	ErrUnavailable = errors.New("bridge: notification bridge unavailable")
	// ErrClosed is returned by Listen after the bridge was closed.
	ErrClosed = errors.New("bridge: closed")
	// ErrEmptyTopic is returned by Listen when topic is blank.
	ErrEmptyTopic = errors.New("bridge: empty topic")
)

// Handler receives one delivered payload.
type Handler func(payload string)

// Unlisten stops delivery to the handler it was returned for. Once it returns,
// no new handler invocation begins. It is safe to call more than once.
// It must not be called from inside the handler it stops.
type Unlisten func()

// Bridge is the host-provided notification capability.
// Implementations must be safe for concurrent use and must deliver payloads
// of a topic to each handler one at a time, in publish order.
type Bridge interface {
	// Available reports whether the capability exists in this host.
	Available() bool
	// Listen registers h for topic. It may block until registration resolves
	// and should honor ctx cancellation.
	Listen(ctx context.Context, topic string, h Handler) (Unlisten, error)
}

// Publisher is the host-side half of a bridge.
type Publisher interface {
	Publish(topic, payload string) int
}
