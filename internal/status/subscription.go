package status

import (
	"sync"
	"sync/atomic"

	"github.com/Trygon117/ProjectCartesian/internal/bridge"
)

// Subscription is the registration handle held by a Reconciler for one
// activation. Release is idempotent; after it returns no notification is
// applied through this subscription.
type Subscription struct {
	topic    string
	unlisten bridge.Unlisten
	once     sync.Once
	released atomic.Bool
}

// Topic returns the topic the subscription listens on.
func (s *Subscription) Topic() string { return s.topic }

// Released reports whether Release has been called.
func (s *Subscription) Released() bool { return s.released.Load() }

// Release unregisters the listener from the bridge.
func (s *Subscription) Release() {
	s.once.Do(func() {
		s.released.Store(true)
		if s.unlisten != nil {
			s.unlisten()
		}
	})
}
