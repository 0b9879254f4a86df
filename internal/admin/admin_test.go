package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/emberctl/internal/testutil/testlog"
	"github.com/danmuck/emberctl/internal/transport"
	"github.com/danmuck/emberctl/internal/tree"
)

type fakeBackend struct {
	ready  chan struct{}
	err    error
	calls  int
	view   tree.View
	conns  []transport.ConnInfo
	inside bool
}

func (f *fakeBackend) Do(ctx context.Context, fn func()) error {
	if f.err != nil {
		return f.err
	}
	f.calls++
	f.inside = true
	fn()
	f.inside = false
	return nil
}

func (f *fakeBackend) Ready() <-chan struct{} { return f.ready }

func (f *fakeBackend) Snapshot() tree.View {
	if !f.inside {
		panic("Snapshot outside Do")
	}
	return f.view
}

func (f *fakeBackend) Connections() []transport.ConnInfo {
	if !f.inside {
		panic("Connections outside Do")
	}
	return f.conns
}

func newTestServer(t *testing.T, b *fakeBackend) *Server {
	t.Helper()
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	return New(DefaultConfig(), b)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndReady(t *testing.T) {
	b := &fakeBackend{ready: make(chan struct{})}
	s := newTestServer(t, b)

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = get(t, s, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(b.ready)
	rec = get(t, s, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)
}

func TestTreeSnapshotRunsOnReactor(t *testing.T) {
	b := &fakeBackend{
		ready: make(chan struct{}),
		view: tree.View{Path: "", Kind: "node", Identifier: "root", Children: []tree.View{
			{Path: "1", Number: 1, Kind: "parameter", Identifier: "gain", Value: int64(-3)},
		}},
	}
	s := newTestServer(t, b)

	rec := get(t, s, "/tree")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, b.calls)

	var got tree.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Children, 1)
	assert.Equal(t, "gain", got.Children[0].Identifier)
	assert.EqualValues(t, -3, got.Children[0].Value)
}

func TestConnections(t *testing.T) {
	b := &fakeBackend{
		ready: make(chan struct{}),
		conns: []transport.ConnInfo{{ID: "01A", Serial: 1, Remote: "127.0.0.1:5000", FramesIn: 3}},
	}
	s := newTestServer(t, b)

	rec := get(t, s, "/connections")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count       int                  `json:"count"`
		Connections []transport.ConnInfo `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, uint64(3), body.Connections[0].FramesIn)
}

func TestReactorUnavailable(t *testing.T) {
	b := &fakeBackend{ready: make(chan struct{}), err: transport.ErrClosed}
	s := newTestServer(t, b)
	rec := get(t, s, "/tree")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	b.err = context.DeadlineExceeded
	rec = get(t, s, "/connections")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestMetricsAndCORS(t *testing.T) {
	s := newTestServer(t, &fakeBackend{ready: make(chan struct{})})
	get(t, s, "/health")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "emberctl_http_requests_total"))

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := New(cfg, &fakeBackend{ready: make(chan struct{})})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
