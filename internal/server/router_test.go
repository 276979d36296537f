package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trygon117/ProjectCartesian/internal/bridge"
	"github.com/Trygon117/ProjectCartesian/internal/status"
)

func setupPanel(t *testing.T) (*bridge.Hub, *status.Reconciler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := bridge.NewHub()
	t.Cleanup(hub.Close)
	rec := status.NewReconciler(hub, status.WithTarget("FIREFOX"))
	t.Cleanup(rec.Deactivate)
	_, err := rec.Activate(context.Background())
	require.NoError(t, err)
	return hub, rec
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeStatus(t *testing.T, body string) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	hub, rec := setupPanel(t)
	h := NewRouter(rec, "/api").Handler()

	w := doGet(t, h, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeStatus(t, w.Body.String())
	assert.Equal(t, "SEARCHING...", resp.Label)
	assert.Equal(t, status.Searching, resp.Status.Kind)
	assert.Equal(t, "FIREFOX", resp.Target)
	assert.Equal(t, status.Active, resp.Phase)

	hub.Publish(bridge.TopicProcessUpdate, "1234")
	resp = decodeStatus(t, doGet(t, h, "/api/status").Body.String())
	assert.Equal(t, "DETECTED [PID: 1234]", resp.Label)
	assert.Equal(t, status.ProcessID("1234"), resp.Status.PID)
	assert.Equal(t, uint64(1), resp.Received)

	hub.Publish(bridge.TopicProcessUpdate, "0")
	resp = decodeStatus(t, doGet(t, h, "/api/status").Body.String())
	assert.Equal(t, "SAFE", resp.Label)
}

func TestStatusEndpointBridgeError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := status.NewReconciler(bridge.Missing{})
	_, err := rec.Activate(context.Background())
	require.Error(t, err)

	h := NewRouter(rec, "").Handler()
	resp := decodeStatus(t, doGet(t, h, "/status").Body.String())
	require.NotNil(t, resp.Err)
	assert.Equal(t, status.BridgeUnavailable, resp.Err.Kind)
	assert.True(t, strings.HasPrefix(resp.Label, "API ERROR:"), resp.Label)
	assert.Equal(t, status.Failed, resp.Phase)

	w := doGet(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "API ERROR")
}

func TestHealthz(t *testing.T) {
	_, rec := setupPanel(t)
	h := NewRouter(rec, "/").Handler()

	w := doGet(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"phase":"active"}`, w.Body.String())

	rec.Deactivate()
	w = doGet(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"ok":false,"phase":"deactivated"}`, w.Body.String())
}

func TestUnknownPath(t *testing.T) {
	_, rec := setupPanel(t)
	h := NewRouter(rec, "/api").Handler()
	assert.Equal(t, http.StatusNotFound, doGet(t, h, "/status").Code)
}

func TestRegisterOnExistingGroup(t *testing.T) {
	_, rec := setupPanel(t)
	g := gin.New()
	NewRouter(rec, "").Register(g.Group("/panel"))
	assert.Equal(t, http.StatusOK, doGet(t, g, "/panel/status").Code)
}

func readEvent(t *testing.T, sc *bufio.Scanner) StatusResponse {
	t.Helper()
	for sc.Scan() {
		line := sc.Text()
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			return decodeStatus(t, strings.TrimSpace(data))
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return StatusResponse{}
}

func TestEventsStream(t *testing.T) {
	hub, rec := setupPanel(t)
	ts := httptest.NewServer(NewRouter(rec, "/api").Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := bufio.NewScanner(resp.Body)
	first := readEvent(t, sc)
	assert.Equal(t, "SEARCHING...", first.Label)

	hub.Publish(bridge.TopicProcessUpdate, "5678")
	var ev StatusResponse
	for i := 0; i < 5 && ev.Received == 0; i++ {
		ev = readEvent(t, sc)
	}
	assert.Equal(t, uint64(1), ev.Received)
	assert.Equal(t, "DETECTED [PID: 5678]", ev.Label)
}

// racingSource delivers a newer snapshot to its watcher while Snapshot is
// still returning the older one.
type racingSource struct {
	mu    sync.Mutex
	watch func(status.Snapshot)
	old   status.Snapshot
	newer status.Snapshot
}

func (s *racingSource) Snapshot() status.Snapshot {
	s.mu.Lock()
	fn := s.watch
	s.mu.Unlock()
	if fn != nil {
		fn(s.newer)
	}
	return s.old
}

func (s *racingSource) Watch(fn func(status.Snapshot)) func() {
	s.mu.Lock()
	s.watch = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.watch = nil
		s.mu.Unlock()
	}
}

func TestEventsStreamKeepsNewerSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := &racingSource{
		old: status.Snapshot{Phase: status.Active, Status: status.DisplayStatus{Kind: status.Searching}},
		newer: status.Snapshot{
			Phase:    status.Active,
			Status:   status.DisplayStatus{Kind: status.Detected, PID: "42"},
			Received: 1,
		},
	}
	ts := httptest.NewServer(NewRouter(src, "/api").Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	ev := readEvent(t, bufio.NewScanner(resp.Body))
	assert.Equal(t, uint64(1), ev.Received)
	assert.Equal(t, "DETECTED [PID: 42]", ev.Label)
}

func TestLatestSeedDoesNotOverwrite(t *testing.T) {
	l := &latest{notify: make(chan struct{}, 1)}
	l.set(status.Snapshot{Received: 2})
	l.seed(status.Snapshot{Received: 1})
	assert.Equal(t, uint64(2), l.get().Received)

	l = &latest{notify: make(chan struct{}, 1)}
	l.seed(status.Snapshot{Received: 1})
	assert.Equal(t, uint64(1), l.get().Received)
	l.set(status.Snapshot{Received: 3})
	assert.Equal(t, uint64(3), l.get().Received)
}
