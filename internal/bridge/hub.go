package bridge

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

// listener is one registered handler. Its mutex is held for the whole
// duration of a delivery, so closing it waits for an in-flight call.
type listener struct {
	id      uint64
	topic   string
	handler Handler

	mu     sync.Mutex
	closed bool
}

// Hub is an in-process Bridge. Publish delivers synchronously to every
// listener of the topic in registration order. Publishes are serialized, so
// each listener observes payloads in publish order.
//
// A handler must not call Publish on the same hub, nor the Unlisten returned
// for itself.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string][]*listener // topic -> listeners
	closed    bool
	nextID    atomic.Uint64

	pubMu  sync.Mutex
	logger *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger used to report recovered handler panics.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an open hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		listeners: make(map[string][]*listener),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Available always reports true: the hub is the capability.
func (h *Hub) Available() bool { return true }

// Listen registers handler for topic.
func (h *Hub) Listen(ctx context.Context, topic string, handler Handler) (Unlisten, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if handler == nil {
		return nil, errors.New("bridge: nil handler")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	l := &listener{id: h.nextID.Add(1), topic: topic, handler: handler}
	h.listeners[topic] = append(h.listeners[topic], l)

	var once sync.Once
	return func() { once.Do(func() { h.remove(l) }) }, nil
}

func (h *Hub) remove(l *listener) {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	ls := h.listeners[l.topic]
	for i, cur := range ls {
		if cur.id == l.id {
			h.listeners[l.topic] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(h.listeners[l.topic]) == 0 {
		delete(h.listeners, l.topic)
	}
}

// Publish delivers payload to all listeners of topic and returns how many
// handlers were invoked. topic is trimmed like in Listen. Publishing on a
// closed hub is a no-op.
func (h *Hub) Publish(topic, payload string) int {
	topic = strings.TrimSpace(topic)
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0
	}
	ls := make([]*listener, len(h.listeners[topic]))
	copy(ls, h.listeners[topic])
	h.mu.RUnlock()

	delivered := 0
	for _, l := range ls {
		if h.deliver(l, payload) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) deliver(l *listener, payload string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	h.safeCall(l, payload)
	return true
}

// safeCall invokes a handler and recovers from any panic so one broken
// listener cannot stop delivery to the others.
func (h *Hub) safeCall(l *listener, payload string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("bridge handler panicked",
				"topic", l.topic, "listener", l.id, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	l.handler(payload)
}

// ListenerCount returns the number of listeners on topic, or on all topics
// when topic is empty.
func (h *Hub) ListenerCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if topic != "" {
		return len(h.listeners[topic])
	}
	n := 0
	for _, ls := range h.listeners {
		n += len(ls)
	}
	return n
}

// Close stops all deliveries and rejects further Listen calls.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := h.listeners
	h.listeners = make(map[string][]*listener)
	h.mu.Unlock()

	for _, ls := range all {
		for _, l := range ls {
			l.mu.Lock()
			l.closed = true
			l.mu.Unlock()
		}
	}
}

var (
	_ Bridge    = (*Hub)(nil)
	_ Publisher = (*Hub)(nil)
	_ Bridge    = Missing{}
)
