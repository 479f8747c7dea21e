// Package httpapi exposes the ingestion service over HTTP.
//
//	POST /api/ocr   multipart form, single file field "image"
//	GET  /healthz   liveness and configured engine
//
// Every failure is converted to a JSON {"error": "..."} body at this boundary.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ocrpipe/internal/logger"
)

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	MaxImageBytes   int64
	ShutdownTimeout time.Duration
}

// Server serves the OCR API.
type Server struct {
	cfg     Config
	handler http.Handler
	log     zerolog.Logger
}

// NewServer wires the routes and middleware around processor.
func NewServer(cfg Config, processor ImageProcessor) *Server {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 20 * 1024 * 1024
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	h := &handler{processor: processor, maxImageBytes: cfg.MaxImageBytes}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ocr", h.handleOCR)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	return &Server{
		cfg:     cfg,
		handler: withRequestID(withAccessLog(withRecovery(mux))),
		log:     logger.WithComponent("http"),
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on cfg.Addr until ctx is canceled, then shuts down
// gracefully, letting in-flight requests finish their cleanup.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Dur("timeout", s.cfg.ShutdownTimeout).Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
