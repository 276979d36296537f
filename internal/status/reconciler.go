// Package status turns the notification stream of the host bridge into the
// display status of the target panel.
//
// A Reconciler is activated once and deactivated once. Activation checks the
// bridge capability, registers a single listener on the process-update topic
// and then applies every delivered payload in delivery order. Bridge problems
// are kept as data (a *BridgeError in the Snapshot) rather than propagated.
package status

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Trygon117/ProjectCartesian/internal/bridge"
	"github.com/Trygon117/ProjectCartesian/internal/metrics"
)

// Reconciler owns the subscription to the bridge and the derived status.
//
// Lock order: dispatchMu before mu. Handlers run with dispatchMu held, so
// observers see snapshots in the order the state changed. Watch callbacks
// must not call Activate or Deactivate.
type Reconciler struct {
	bridge   bridge.Bridge
	topic    string
	sentinel ProcessID
	target   string
	logger   *slog.Logger
	now      func() time.Time

	dispatchMu sync.Mutex

	mu        sync.Mutex
	phase     Phase
	status    DisplayStatus
	err       *BridgeError
	received  uint64
	updatedAt time.Time
	sub       *Subscription
	cancel    context.CancelFunc

	watchMu   sync.Mutex
	watchers  map[uint64]func(Snapshot)
	nextWatch uint64
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTopic overrides the topic (default bridge.TopicProcessUpdate).
func WithTopic(topic string) Option {
	return func(r *Reconciler) {
		if t := strings.TrimSpace(topic); t != "" {
			r.topic = t
		}
	}
}

// WithSentinel overrides the "not running" payload (default NoProcess).
func WithSentinel(p ProcessID) Option {
	return func(r *Reconciler) {
		if p != "" {
			r.sentinel = p
		}
	}
}

// WithTarget sets the human readable name of the monitored target.
func WithTarget(name string) Option {
	return func(r *Reconciler) { r.target = name }
}

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReconciler creates an uninitialized reconciler for b. A nil bridge is
// treated as an unavailable one.
func NewReconciler(b bridge.Bridge, opts ...Option) *Reconciler {
	r := &Reconciler{
		bridge:   b,
		topic:    bridge.TopicProcessUpdate,
		sentinel: NoProcess,
		logger:   slog.Default(),
		now:      time.Now,
		watchers: make(map[uint64]func(Snapshot)),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("component", "reconciler", "topic", r.topic)
	return r
}

// Activate checks the bridge and registers the listener. It blocks until the
// registration resolves, ctx is cancelled or Deactivate is called.
//
// On bridge problems it returns a *BridgeError, which is also kept in the
// Snapshot. It returns ErrAlreadyActivated on a second call and
// ErrDeactivated when the reconciler was deactivated first or meanwhile; in
// the latter case a registration that still succeeds is released at once.
func (r *Reconciler) Activate(ctx context.Context) (*Subscription, error) {
	r.mu.Lock()
	switch r.phase {
	case Uninitialized:
	case Deactivated:
		r.mu.Unlock()
		return nil, ErrDeactivated
	default:
		r.mu.Unlock()
		return nil, ErrAlreadyActivated
	}
	actx, cancel := context.WithCancel(ctx)
	r.phase = Activating
	r.status = DisplayStatus{Kind: Searching}
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	if r.bridge == nil || !r.bridge.Available() {
		r.logger.Error("notification bridge not found")
		return nil, r.fail(&BridgeError{Kind: BridgeUnavailable, Cause: bridge.ErrUnavailable})
	}
	r.logger.Info("notification bridge found, registering listener")

	sub := &Subscription{topic: r.topic}
	unlisten, err := r.bridge.Listen(actx, r.topic, func(payload string) {
		r.handle(sub, ProcessID(payload))
	})

	r.dispatchMu.Lock()
	r.mu.Lock()
	r.cancel = nil
	if r.phase == Deactivated {
		r.mu.Unlock()
		r.dispatchMu.Unlock()
		if err == nil {
			sub.unlisten = unlisten
			sub.Release()
			r.logger.Info("released subscription resolved after deactivation")
		}
		return nil, ErrDeactivated
	}
	if err != nil {
		r.mu.Unlock()
		defer r.dispatchMu.Unlock()
		r.logger.Error("failed to register notification listener", "error", err)
		return nil, r.failLocked(&BridgeError{Kind: SubscriptionFailure, Cause: err})
	}
	sub.unlisten = unlisten
	r.sub = sub
	r.phase = Active
	snap := r.snapshotLocked()
	r.mu.Unlock()

	metrics.IncSubscriptions()
	if snap.Received == 0 {
		metrics.SetCurrentStatus(Searching.String())
	}
	r.logger.Info("listening for notifications")
	r.dispatch(snap)
	r.dispatchMu.Unlock()
	return sub, nil
}

// fail records a terminal bridge error.
func (r *Reconciler) fail(be *BridgeError) error {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	return r.failLocked(be)
}

// failLocked is fail with dispatchMu already held.
func (r *Reconciler) failLocked(be *BridgeError) error {
	r.mu.Lock()
	if r.phase == Deactivated {
		r.mu.Unlock()
		return ErrDeactivated
	}
	r.phase = Failed
	r.err = be
	r.updatedAt = r.now()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	metrics.IncBridgeError(be.Kind.String())
	metrics.SetCurrentStatus("error")
	r.dispatch(snap)
	return be
}

func (r *Reconciler) handle(sub *Subscription, pid ProcessID) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	if sub.Released() || (r.phase != Activating && r.phase != Active) {
		phase := r.phase
		r.mu.Unlock()
		r.logger.Debug("dropping notification", "payload", string(pid), "phase", phase.String())
		return
	}
	prev := r.status
	next := InterpretWith(pid, r.sentinel)
	r.status = next
	r.received++
	r.updatedAt = r.now()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Debug("notification received", "payload", string(pid), "status", next.Kind.String())
	metrics.IncNotification(r.topic)
	metrics.RecordStatusTransition(prev.Kind.String(), next.Kind.String())
	metrics.SetCurrentStatus(next.Kind.String())
	r.dispatch(snap)
}

// Deactivate releases the subscription. It may be called at any time, any
// number of times; only the first call has an effect. A pending Activate is
// cancelled and its registration released once it resolves.
func (r *Reconciler) Deactivate() {
	r.dispatchMu.Lock()
	r.mu.Lock()
	if r.phase == Deactivated {
		r.mu.Unlock()
		r.dispatchMu.Unlock()
		return
	}
	prev := r.phase
	r.phase = Deactivated
	sub := r.sub
	r.sub = nil
	cancel := r.cancel
	r.cancel = nil
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.dispatch(snap)
	r.dispatchMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Release()
		metrics.DecSubscriptions()
	}
	r.logger.Info("reconciler deactivated", "from", prev.String())
}

// Snapshot returns the current view.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) snapshotLocked() Snapshot {
	return Snapshot{
		Target:    r.target,
		Topic:     r.topic,
		Phase:     r.phase,
		Status:    r.status,
		Err:       r.err,
		Received:  r.received,
		UpdatedAt: r.updatedAt,
	}
}

// Watch registers fn to be called synchronously after every state change,
// in order. The returned function removes it.
func (r *Reconciler) Watch(fn func(Snapshot)) (cancel func()) {
	r.watchMu.Lock()
	r.nextWatch++
	id := r.nextWatch
	r.watchers[id] = fn
	r.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.watchMu.Lock()
			delete(r.watchers, id)
			r.watchMu.Unlock()
		})
	}
}

func (r *Reconciler) dispatch(s Snapshot) {
	r.watchMu.Lock()
	ids := make([]uint64, 0, len(r.watchers))
	for id := range r.watchers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.watchers[id])
	}
	r.watchMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
