package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/httputil"
)

type Metrics struct {
	Rejected *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Rejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dividend_ratelimit_rejected_total",
			Help: "Requests refused by the ingestion rate limiter, by route class",
		}, []string{"class"}),
	}
}

// Middleware applies a Window to HTTP routes keyed by client IP.
type Middleware struct {
	window   *Window
	logger   *slog.Logger
	metrics  *Metrics
	disabled bool
}

type Option func(*Middleware)

func WithMetrics(m *Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// WithDisabled passes every request through untouched.
func WithDisabled(disabled bool) Option {
	return func(mw *Middleware) {
		mw.disabled = disabled
	}
}

func New(window *Window, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{window: window, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.window == nil {
		m.disabled = true
	}
	if m.disabled && m.logger != nil {
		m.logger.Info("ingestion rate limiting disabled")
	}
	return m
}

// Limit returns middleware that charges each request against the caller's
// budget. class labels the rejection metric.
func (m *Middleware) Limit(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			res := m.window.Allow(class + ":" + ip)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				if m.metrics != nil {
					m.metrics.Rejected.WithLabelValues(class).Inc()
				}
				if m.logger != nil {
					m.logger.WarnContext(r.Context(), "rate limit exceeded",
						"class", class,
						"client_ip", ip,
					)
				}
				seconds := int(math.Ceil(res.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
