// Package server exposes the authoring core as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/llm"
	"github.com/ShayCichocki/cprwiz/internal/logging"
)

// DefaultRequestTimeout bounds a request that reaches the LLM.
const DefaultRequestTimeout = 90 * time.Second

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	// Usage reports LLM token usage on /api/usage. Optional.
	Usage          *llm.TokenTracker
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server serves the authoring API.
type Server struct {
	svc     *authoring.Service
	usage   *llm.TokenTracker
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Server over svc.
func New(svc *authoring.Service, opts Options) (*Server, error) {
	if svc == nil {
		return nil, errors.New("authoring service required")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Server{
		svc:     svc,
		usage:   opts.Usage,
		timeout: opts.RequestTimeout,
		logger:  logging.OrNop(opts.Logger),
	}, nil
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/usage", s.handleUsage)

	mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions", s.handleSessionList)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("PATCH /api/sessions/{id}", s.handleSessionUpdate)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleSessionDelete)
	mux.HandleFunc("POST /api/sessions/{id}/commit", s.handleCommit)

	mux.HandleFunc("POST /api/sessions/{id}/sections/{kind}/validate", s.handleValidate)
	mux.HandleFunc("POST /api/sessions/{id}/sections/{kind}/lock", s.handleLock)

	mux.HandleFunc("GET /api/sessions/{id}/draft", s.handleDraftGet)
	mux.HandleFunc("PUT /api/sessions/{id}/draft", s.handleDraftPut)
	mux.HandleFunc("DELETE /api/sessions/{id}/draft", s.handleDraftDelete)

	return s.logMiddleware(mux)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Validation of a full Results list can take several LLM calls.
		WriteTimeout: s.timeout + 10*time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
