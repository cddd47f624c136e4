package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oakwood-commons/dumpx/internal/redact"
	"github.com/oakwood-commons/dumpx/pkg/inspect"
	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newServer(t *testing.T) *Server {
	t.Helper()
	o := inspect.DefaultOptions()
	o.RedactionRules = []redact.Spec{{Pattern: "password"}}
	s := New(inspect.New(inspect.WithCollector(nil)), o, logr.Discard())
	s.Set(ordered.FromPairs("user", "ada", "password", "hunter2"))
	return s
}

func TestRoutes(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		name        string
		target      string
		status      int
		contentType string
		contains    []string
		excludes    []string
	}{
		{
			name: "page", target: "/", status: http.StatusOK,
			contentType: "text/html; charset=utf-8",
			contains:    []string{"<!doctype html>", `class="dumpx"`, "ada", "[redacted]"},
			excludes:    []string{"hunter2"},
		},
		{
			name: "page query options", target: "/?theme=dark", status: http.StatusOK,
			contains: []string{`data-theme="dark"`},
		},
		{
			name: "bad option", target: "/?maxDepht=1", status: http.StatusBadRequest,
			contains: []string{`unknown option "maxDepht"`},
		},
		{
			name: "invalid option value", target: "/?maxItems=0", status: http.StatusBadRequest,
			contains: []string{"maxItems must be at least 1"},
		},
		{
			name: "raw", target: "/raw", status: http.StatusOK,
			contentType: "application/json",
			contains:    []string{"{\n  \"user\": \"ada\",\n  \"password\": \"[redacted]\"\n}"},
		},
		{name: "health", target: "/healthz", status: http.StatusOK, contains: []string{"ok"}},
		{name: "unknown", target: "/nope", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			}
			for _, c := range tt.contains {
				assert.Contains(t, rec.Body.String(), c)
			}
			for _, c := range tt.excludes {
				assert.NotContains(t, rec.Body.String(), c)
			}
		})
	}
}

func TestSetReplacesValue(t *testing.T) {
	s := newServer(t)
	s.Set([]any{"second"})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.JSONEq(t, `["second"]`, rec.Body.String())
}

func TestSetTitle(t *testing.T) {
	s := newServer(t)
	s.SetTitle("order.json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "<title>order.json</title>")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln, time.Second) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", strings.TrimSpace(string(body)))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenAndServeBadAddr(t *testing.T) {
	s := newServer(t)
	err := s.ListenAndServe(context.Background(), "256.0.0.1:bad", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}
