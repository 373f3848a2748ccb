// Package server exposes the dashboard over HTTP: JSON pages, PNG and CSV
// panels, RFM exports, a small HTML index and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spektr-org/ecomdash/dashboard"
	"github.com/spektr-org/ecomdash/render"
	"github.com/spektr-org/ecomdash/schema"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server. Zero values get defaults.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Width        int
	Height       int
	Logger       *zap.Logger
	Registry     *prometheus.Registry
	// Schema is served at /api/schema when set.
	Schema *schema.Config
}

// Server is the HTTP front end of a dashboard.Service.
type Server struct {
	svc      *dashboard.Service
	renderer *render.Renderer
	schema   *schema.Config
	log      *zap.Logger
	metrics  *metrics
	router   *mux.Router
	opts     Options
}

// New wires routes and middleware around svc.
func New(svc *dashboard.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		svc:      svc,
		renderer: render.New(opts.Width, opts.Height),
		schema:   opts.Schema,
		log:      opts.Logger.Named("http"),
		metrics:  newMetrics(opts.Registry),
		opts:     opts,
	}
	s.metrics.rows.Set(float64(svc.Dataset().Len()))
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.instrument)
	// mux skips Use middleware for these two handlers.
	r.NotFoundHandler = s.wrap(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, fmt.Errorf("%w: no route for %s", errNotFound, req.URL.Path))
	})
	r.MethodNotAllowedHandler = s.wrap(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pages", s.handlePages).Methods(http.MethodGet)
	api.HandleFunc("/pages/{key}", s.handlePage).Methods(http.MethodGet)
	api.HandleFunc("/pages/{key}/panels/{panel:[a-z0-9-]+}.png", s.handlePanelPNG).Methods(http.MethodGet)
	api.HandleFunc("/pages/{key}/panels/{panel:[a-z0-9-]+}.csv", s.handlePanelCSV).Methods(http.MethodGet)
	api.HandleFunc("/rfm", s.handleRFM).Methods(http.MethodGet)
	api.HandleFunc("/rfm/summary", s.handleRFMSummary).Methods(http.MethodGet)
	api.HandleFunc("/rfm/export.csv", s.handleRFMCSV).Methods(http.MethodGet)
	api.HandleFunc("/rfm/export.xlsx", s.handleRFMXLSX).Methods(http.MethodGet)
	api.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)
	return r
}

func (s *Server) wrap(fn http.HandlerFunc) http.Handler {
	return requestIDMiddleware(s.instrument(fn))
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server exited")
	return nil
}
