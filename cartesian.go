package cartesian

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Trygon117/ProjectCartesian/internal/bridge"
	cfg "github.com/Trygon117/ProjectCartesian/internal/config"
	"github.com/Trygon117/ProjectCartesian/internal/detector"
	"github.com/Trygon117/ProjectCartesian/internal/metrics"
	"github.com/Trygon117/ProjectCartesian/internal/monitor"
	iapi "github.com/Trygon117/ProjectCartesian/internal/server"
	"github.com/Trygon117/ProjectCartesian/internal/status"
	itls "github.com/Trygon117/ProjectCartesian/internal/tls"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Snapshot = status.Snapshot

type DisplayStatus = status.DisplayStatus

type ProcessID = status.ProcessID

type BridgeError = status.BridgeError

type Reconciler = status.Reconciler

type Bridge = bridge.Bridge

type Hub = bridge.Hub

type Detector = detector.Detector

const TopicProcessUpdate = bridge.TopicProcessUpdate

var (
	ErrAlreadyActivated    = status.ErrAlreadyActivated
	ErrDeactivated         = status.ErrDeactivated
	ErrBridgeUnavailable   = status.ErrBridgeUnavailable
	ErrSubscriptionFailure = status.ErrSubscriptionFailure
)

func NewHub() *Hub { return bridge.NewHub() }

type ReconcilerOption = status.Option

var (
	WithTopic            = status.WithTopic
	WithSentinel         = status.WithSentinel
	WithTarget           = status.WithTarget
	WithReconcilerLogger = status.WithLogger
)

// NewReconciler builds a reconciler listening on b.
func NewReconciler(b Bridge, opts ...ReconcilerOption) *Reconciler {
	return status.NewReconciler(b, opts...)
}

// Panel wires a bridge, the reconciler listening on it and, when enabled,
// the host monitor publishing into it.
type Panel struct {
	cfg    *Config
	logger *slog.Logger
	bridge Bridge
	hub    *Hub // owned hub, nil when the bridge was injected
	rec    *Reconciler
	mon    *monitor.Monitor
}

type PanelOption func(*Panel)

func WithLogger(l *slog.Logger) PanelOption { return func(p *Panel) { p.logger = l } }

// WithBridge replaces the in-process hub. The monitor only runs when b can
// also publish.
func WithBridge(b Bridge) PanelOption { return func(p *Panel) { p.bridge = b } }

// NewPanel builds a panel from c. A nil c loads the defaults with
// CARTESIAN_* environment overrides applied.
func NewPanel(c *Config, opts ...PanelOption) (*Panel, error) {
	if c == nil {
		loaded, err := cfg.LoadConfig("")
		if err != nil {
			return nil, err
		}
		c = loaded
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := &Panel{cfg: c}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.bridge == nil {
		p.hub = bridge.NewHub(bridge.WithLogger(p.logger))
		p.bridge = p.hub
	}
	p.rec = status.NewReconciler(p.bridge,
		status.WithTopic(c.Panel.Topic),
		status.WithSentinel(status.ProcessID(c.Panel.Sentinel)),
		status.WithTarget(c.Panel.Target),
		status.WithLogger(p.logger),
	)
	if c.Monitor.Enabled {
		pub, ok := p.bridge.(bridge.Publisher)
		if !ok {
			p.logger.Warn("monitor disabled: bridge cannot publish")
		} else {
			det, err := c.Monitor.BuildDetector()
			if err != nil {
				return nil, err
			}
			p.mon = monitor.New(det, pub,
				monitor.WithTopic(c.Panel.Topic),
				monitor.WithSentinel(c.Panel.Sentinel),
				monitor.WithInterval(c.Monitor.Interval),
				monitor.WithLogger(p.logger),
			)
		}
	}
	return p, nil
}

// Start activates the reconciler, then starts the monitor. A bridge error is
// returned but the panel stays usable: its snapshot carries the error.
func (p *Panel) Start(ctx context.Context) error {
	if _, err := p.rec.Activate(ctx); err != nil {
		return err
	}
	if p.mon != nil {
		p.mon.Start()
	}
	return nil
}

// Stop stops the monitor, deactivates the reconciler and closes an owned hub.
// It is idempotent.
func (p *Panel) Stop() {
	if p.mon != nil {
		p.mon.Stop()
	}
	p.rec.Deactivate()
	if p.hub != nil {
		p.hub.Close()
	}
}

func (p *Panel) Snapshot() Snapshot                      { return p.rec.Snapshot() }
func (p *Panel) Watch(fn func(Snapshot)) (cancel func()) { return p.rec.Watch(fn) }
func (p *Panel) Reconciler() *Reconciler                 { return p.rec }
func (p *Panel) Config() *Config                         { return p.cfg }
func (p *Panel) Handler(basePath string) http.Handler {
	return iapi.NewRouter(p.rec, basePath).Handler()
}
func (p *Panel) Router(basePath string) *iapi.Router { return iapi.NewRouter(p.rec, basePath) }

// AsBridgeError extracts the activation failure from err.
func AsBridgeError(err error) (*BridgeError, bool) {
	var be *BridgeError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func LoadConfig(path string) (*Config, error) { return cfg.LoadConfig(path) }

// DefaultConfig returns the built-in configuration without environment
// overrides.
func DefaultConfig() *Config { return cfg.Default() }

// NewHTTPServer starts an HTTP server exposing the panel status.
func NewHTTPServer(addr, basePath string, p *Panel) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, p.rec)
}

// NewTLSServer starts an HTTPS server for the panel from server config.
func NewTLSServer(sc cfg.ServerConfig, p *Panel) (*http.Server, error) {
	tc, err := itls.Setup(sc.TLS)
	if err != nil {
		return nil, err
	}
	if tc == nil {
		return nil, errors.New("server.tls is not enabled")
	}
	return iapi.NewTLSServer(sc.Listen, sc.BasePath, p.rec, tc)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// MetricsServer returns an unstarted server exposing /metrics from the default registry.
func MetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	return MetricsServer(addr).ListenAndServe()
}
