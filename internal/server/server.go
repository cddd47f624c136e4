// Package server serves a dumped value over HTTP: the rendered HTML page,
// the raw value as JSON and a health probe.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/oakwood-commons/dumpx/internal/redact"
	"github.com/oakwood-commons/dumpx/internal/render/html"
	"github.com/oakwood-commons/dumpx/pkg/inspect"
)

const shutdownTimeout = 5 * time.Second

// Server holds the value being shown. Set may be called while serving.
type Server struct {
	dumper *inspect.Dumper
	opts   inspect.Options
	log    logr.Logger
	router chi.Router

	mu      sync.RWMutex
	title   string
	value   any
	updated time.Time
}

// New returns a server rendering with d and o.
func New(d *inspect.Dumper, o inspect.Options, log logr.Logger) *Server {
	s := &Server{dumper: d, opts: o, log: log, title: "dumpx"}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/", s.handlePage)
	r.Get("/raw", s.handleRaw)
	r.Get("/healthz", s.handleHealth)
	s.router = r
	return s
}

// Set replaces the value shown.
func (s *Server) Set(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.updated = time.Now().UTC()
}

// SetTitle sets the page title.
func (s *Server) SetTitle(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = t
}

func (s *Server) current() (any, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.updated
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener, readTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("serving", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout time.Duration) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln, readTimeout)
}

// options overlays query parameters on the configured options, so
// /?theme=dark&maxDepth=2 works for any option key.
func (s *Server) options(r *http.Request) (inspect.Options, error) {
	q := r.URL.Query()
	if len(q) == 0 {
		return s.opts, nil
	}
	m := make(map[string]any, len(q))
	for k, v := range q {
		m[k] = v[len(v)-1]
	}
	o, err := s.opts.Merge(m)
	if err != nil {
		return o, err
	}
	return o, o.Validate()
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	o, err := s.options(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, updated := s.current()
	req, err := inspect.NewRequest(v, inspect.ChannelWeb, o, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, err := s.dumper.Render(r.Context(), req)
	if err != nil {
		s.log.Error(err, "render failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !updated.IsZero() {
		w.Header().Set("Last-Modified", updated.Format(http.TimeFormat))
	}
	s.mu.RLock()
	title := s.title
	s.mu.RUnlock()
	_, _ = w.Write([]byte(html.Document(title, body)))
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	rules, err := redact.Compile(s.opts.RedactionRules)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	v, _ := s.current()
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(redact.Apply(rules, v, redact.ScopePayload)); err != nil {
		s.log.Error(err, "encode raw value")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.V(1).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"requestID", middleware.GetReqID(r.Context()))
	})
}
