package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type HTTPServer struct {
	srv *http.Server
}

var _ Server = (*HTTPServer)(nil)

// NewHTTPServer wraps handler. WriteTimeout should stay zero when the handler
// serves event streams; streams bound each write themselves.
func NewHTTPServer(handler http.Handler, cfg Config) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

func (h *HTTPServer) Addr() string {
	return h.srv.Addr
}

// Start blocks serving until Stop is called.
func (h *HTTPServer) Start(_ context.Context) error {
	err := h.srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
