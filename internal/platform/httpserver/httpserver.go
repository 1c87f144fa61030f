package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	idleTimeout       = 120 * time.Second
	// defaultWriteTimeout covers a synchronous epoch transition, whose
	// distributing step may run for minutes.
	defaultWriteTimeout = 3 * time.Minute
)

type Option func(*http.Server)

// WithWriteTimeout overrides the response write deadline. Zero keeps the
// default.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *http.Server) {
		if d > 0 {
			s.WriteTimeout = d
		}
	}
}

func New(addr string, handler http.Handler, opts ...Option) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       idleTimeout,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}
