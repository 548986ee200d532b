// Package server exposes the engraving filter over HTTP.
//
// POST / takes a JSON (or MessagePack) document describing the image and the
// filter parameters and answers with the engraved image as PNG:
//
//	{
//	  "file":       ["photo.jpg", "<base64 contents>"],
//	  "neighboors": "121202121",
//	  "add":        127,
//	  "mult":       0.5,
//	  "inv":        false,
//	  "gray":       false
//	}
//
// GET / serves a small upload page and GET /health reports liveness.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soypat/engrave/internal/config"
	"github.com/soypat/engrave/internal/logging"
)

// ShutdownTimeout bounds how long [Server.Serve] waits for in-flight requests
// once its context is cancelled.
const ShutdownTimeout = 5 * time.Second

//go:embed static
var static embed.FS

// Server is the engraving HTTP service.
type Server struct {
	cfg    config.Server
	logger *slog.Logger
	mux    *http.ServeMux
}

// New returns a server configured by cfg. A nil logger discards all output.
func New(cfg config.Server, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = config.DefaultMaxUploadMB
	}
	s := &Server{cfg: cfg, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /{$}", s.handleEngrave)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleNotFound)
	return s
}

// Handler returns the routes of the service wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			// Requests must outlive ctx to drain during shutdown.
			return logging.WithLogger(context.WithoutCancel(ctx), s.logger)
		},
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Engrave server starting", "address", "http://"+ln.Addr().String())
		errc <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down engrave server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Engrave server shutdown failed", "error", err)
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Debug("Engrave server shut down gracefully.")
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.serveStatic(w, "static/index.html", http.StatusOK)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.serveStatic(w, "static/404.html", http.StatusNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) serveStatic(w http.ResponseWriter, name string, status int) {
	page, err := static.ReadFile(name)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(page)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With("method", r.Method, "path", r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(logging.WithLogger(r.Context(), logger)))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logger.Info("Request served", "status", rec.status, "bytes", rec.bytes, "elapsed", time.Since(start))
	})
}
