package server

import (
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Trygon117/ProjectCartesian/internal/status"
)

// Source is the read-only side of a status reconciler.
type Source interface {
	Snapshot() status.Snapshot
	Watch(fn func(status.Snapshot)) (cancel func())
}

// Router provides embeddable HTTP handlers exposing the panel status.
// Endpoints:
//
//	GET {basePath}/status   current snapshot with its display label
//	GET {basePath}/healthz  200 while listening, 503 after failure or shutdown
//	GET {basePath}/events   server-sent events, one "status" event per change
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      Source
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(src Source, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	r.Register(g.Group(r.basePath))
	return g
}

// Register mounts the endpoints on an existing gin router group.
func (r *Router) Register(group gin.IRoutes) {
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealth)
	group.GET("/events", r.handleEvents)
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, src Source) (*http.Server, error) {
	r := NewRouter(src, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: /events is long-lived
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// NewTLSServer is NewServer over HTTPS; certificates come from tlsCfg.
func NewTLSServer(addr, basePath string, src Source, tlsCfg *tls.Config) (*http.Server, error) {
	if tlsCfg == nil {
		return nil, errors.New("tls config required")
	}
	r := NewRouter(src, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServeTLS("", "") }()
	return server, nil
}

// --- Handlers ---

// StatusResponse is the body of GET /status and of each "status" event.
type StatusResponse struct {
	status.Snapshot
	Label string `json:"label"`
}

func newStatusResponse(s status.Snapshot) StatusResponse {
	return StatusResponse{Snapshot: s, Label: s.Label()}
}

type healthResp struct {
	OK    bool         `json:"ok"`
	Phase status.Phase `json:"phase"`
	Error string       `json:"error,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, newStatusResponse(r.src.Snapshot()))
}

func (r *Router) handleHealth(c *gin.Context) {
	s := r.src.Snapshot()
	resp := healthResp{Phase: s.Phase}
	switch {
	case s.Err != nil:
		resp.Error = s.Err.Message()
	case s.Phase == status.Activating || s.Phase == status.Active:
		resp.OK = true
	}
	code := http.StatusOK
	if !resp.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(c, code, resp)
}

// latest keeps only the newest snapshot; a slow client skips intermediate
// states but always ends on the current one.
type latest struct {
	mu     sync.Mutex
	snap   status.Snapshot
	seen   bool
	notify chan struct{}
}

func (l *latest) set(s status.Snapshot) {
	l.mu.Lock()
	l.snap = s
	l.seen = true
	l.mu.Unlock()
	l.wake()
}

// seed stores the initial snapshot unless a watched change already arrived;
// that change is at least as new.
func (l *latest) seed(s status.Snapshot) {
	l.mu.Lock()
	if !l.seen {
		l.snap = s
		l.seen = true
	}
	l.mu.Unlock()
	l.wake()
}

func (l *latest) wake() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latest) get() status.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

func (r *Router) handleEvents(c *gin.Context) {
	l := &latest{notify: make(chan struct{}, 1)}
	cancel := r.src.Watch(l.set)
	defer cancel()
	l.seed(r.src.Snapshot())

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	done := c.Request.Context().Done()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-done:
			return false
		case <-l.notify:
			c.SSEvent("status", newStatusResponse(l.get()))
			return true
		}
	})
}
