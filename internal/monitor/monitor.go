// Package monitor is the host side of the status panel: it polls a detector
// and publishes the target's PID, or the sentinel when it is not running.
package monitor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Trygon117/ProjectCartesian/internal/bridge"
	"github.com/Trygon117/ProjectCartesian/internal/detector"
	"github.com/Trygon117/ProjectCartesian/internal/metrics"
)

const (
	DefaultInterval = time.Second
	DefaultSentinel = "0"
)

const (
	outcomeDetected = "detected"
	outcomeAbsent   = "absent"
	outcomeError    = "error"
)

// Monitor publishes one notification per poll, changed or not.
type Monitor struct {
	det      detector.Detector
	pub      bridge.Publisher
	topic    string
	sentinel string
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	lastErr  error
	lastPID  int
	failures int
}

type Option func(*Monitor)

func WithTopic(topic string) Option {
	return func(m *Monitor) { m.topic = strings.TrimSpace(topic) }
}

func WithSentinel(s string) Option { return func(m *Monitor) { m.sentinel = s } }

func WithInterval(d time.Duration) Option { return func(m *Monitor) { m.interval = d } }

func WithLogger(l *slog.Logger) Option { return func(m *Monitor) { m.logger = l } }

func New(det detector.Detector, pub bridge.Publisher, opts ...Option) *Monitor {
	m := &Monitor{
		det:      det,
		pub:      pub,
		topic:    bridge.TopicProcessUpdate,
		sentinel: DefaultSentinel,
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(m)
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.topic == "" {
		m.topic = bridge.TopicProcessUpdate
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "monitor", "topic", m.topic)
	return m
}

// Poll runs the detector once and publishes the result. A detector error is
// published as the sentinel: the panel only knows "running" or "not running".
func (m *Monitor) Poll() string {
	begin := time.Now()
	pid, err := m.det.Detect()
	elapsed := time.Since(begin).Seconds()

	payload := m.sentinel
	outcome := outcomeAbsent
	switch {
	case err != nil:
		outcome = outcomeError
		pid = 0
	case pid > 0:
		outcome = outcomeDetected
		payload = strconv.Itoa(pid)
	}
	metrics.ObservePoll(outcome, elapsed)

	m.mu.Lock()
	prevErr, prevPID := m.lastErr, m.lastPID
	m.lastErr, m.lastPID = err, pid
	if err != nil {
		m.failures++
	} else {
		m.failures = 0
	}
	m.mu.Unlock()

	// log transitions only; the loop runs every second
	if err != nil && prevErr == nil {
		m.logger.Warn("detector failed", "detector", m.det.Describe(), "error", err)
	} else if err == nil && prevErr != nil {
		m.logger.Info("detector recovered", "detector", m.det.Describe())
	}
	if pid != prevPID {
		if pid > 0 {
			m.logger.Info("target detected", "pid", pid, "name", detector.ProcessName(pid))
		} else if prevPID > 0 {
			m.logger.Info("target gone", "pid", prevPID)
		}
	}

	n := m.pub.Publish(m.topic, payload)
	m.logger.Debug("published", "payload", payload, "listeners", n)
	return payload
}

// Run polls immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor started", "detector", m.det.Describe(), "interval", m.interval)
	defer m.logger.Info("monitor stopped")
	t := time.NewTicker(m.interval)
	defer t.Stop()
	m.Poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Poll()
		}
	}
}

// Start runs the loop in the background. It is a no-op while already running.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop, m.done = stop, done
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		cancel()
	}()
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
}

// Stop halts a loop started with Start and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Failures returns how many polls in a row failed and the latest error.
func (m *Monitor) Failures() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures, m.lastErr
}
