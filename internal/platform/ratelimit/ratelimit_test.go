package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	dErrors "dividend/pkg/domain-errors"
	httptestutil "dividend/pkg/testutil"
)

const (
	testLimit  = 3
	testWindow = time.Minute
)

type WindowSuite struct {
	suite.Suite
	window *Window
	clock  time.Time
}

func TestWindowSuite(t *testing.T) {
	suite.Run(t, new(WindowSuite))
}

func (s *WindowSuite) SetupTest() {
	s.clock = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	s.window = NewWindow(testLimit, testWindow)
	s.window.now = func() time.Time { return s.clock }
}

func (s *WindowSuite) advance(d time.Duration) {
	s.clock = s.clock.Add(d)
}

// =============================================================================
// Allow
// =============================================================================

func (s *WindowSuite) TestAllow() {
	s.Run("requests up to the limit are allowed", func() {
		var res Result
		for i := range testLimit {
			res = s.window.Allow("a")
			s.True(res.Allowed)
			s.Equal(testLimit-i-1, res.Remaining)
		}
		s.Equal(s.clock.Add(testWindow), res.ResetAt)
	})

	s.Run("request over the limit is refused", func() {
		res := s.window.Allow("a")
		s.False(res.Allowed)
		s.Zero(res.Remaining)
		s.Equal(testWindow, res.RetryAfter)
	})

	s.Run("keys are independent", func() {
		s.True(s.window.Allow("b").Allowed)
	})
}

func (s *WindowSuite) TestWindowSlides() {
	s.window.Allow("a")
	s.advance(30 * time.Second)
	s.window.Allow("a")
	s.window.Allow("a")
	s.False(s.window.Allow("a").Allowed)

	s.advance(30 * time.Second)
	res := s.window.Allow("a")
	s.True(res.Allowed, "oldest request left the window")
	s.Zero(res.Remaining)

	refused := s.window.Allow("a")
	s.False(refused.Allowed)
	s.Equal(30*time.Second, refused.RetryAfter)
}

func (s *WindowSuite) TestSweep() {
	s.window.Allow("a")
	s.advance(45 * time.Second)
	s.window.Allow("b")
	s.advance(20 * time.Second)

	s.Equal(1, s.window.Sweep())
	s.Len(s.window.buckets, 1)
	s.Contains(s.window.buckets, "b")
}

func (s *WindowSuite) TestConcurrentCallersNeverExceedLimit() {
	window := NewWindow(50, time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if window.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(50, allowed)
}

// =============================================================================
// Middleware
// =============================================================================

type MiddlewareSuite struct {
	suite.Suite
	metrics *Metrics
	handler http.Handler
	served  int
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.served = 0
	s.metrics = NewMetrics(prometheus.NewRegistry())
	window := NewWindow(2, testWindow)
	mw := New(window, slog.New(slog.NewTextHandler(io.Discard, nil)), WithMetrics(s.metrics))
	s.handler = mw.Limit("samples")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.served++
		w.WriteHeader(http.StatusAccepted)
	}))
}

func (s *MiddlewareSuite) post(ip string) *http.Request {
	req := httptestutil.NewRequest(s.T(), http.MethodPost, "/v1/gi/samples")
	req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
	return req
}

func (s *MiddlewareSuite) TestLimit() {
	rr := httptestutil.DoRequest(s.handler, s.post("203.0.113.7"))
	s.Equal(http.StatusAccepted, rr.Code)
	s.Equal("2", rr.Header().Get("X-RateLimit-Limit"))
	s.Equal("1", rr.Header().Get("X-RateLimit-Remaining"))
	s.NotEmpty(rr.Header().Get("X-RateLimit-Reset"))

	httptestutil.DoRequest(s.handler, s.post("203.0.113.7"))

	rr = httptestutil.DoRequest(s.handler, s.post("203.0.113.7"))
	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal(string(dErrors.CodeRateLimited), httptestutil.ErrorCode(s.T(), rr))
	s.Equal("60", rr.Header().Get("Retry-After"))
	s.Equal(2, s.served)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Rejected.WithLabelValues("samples")))

	s.Run("other clients keep their budget", func() {
		rr := httptestutil.DoRequest(s.handler, s.post("198.51.100.2"))
		s.Equal(http.StatusAccepted, rr.Code)
	})
}

func (s *MiddlewareSuite) TestDisabled() {
	mw := New(nil, nil)
	h := mw.Limit("samples")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	for range 5 {
		rr := httptestutil.DoRequest(h, s.post("203.0.113.7"))
		s.Equal(http.StatusAccepted, rr.Code)
		s.Empty(rr.Header().Get("X-RateLimit-Limit"))
	}
}

func (s *MiddlewareSuite) TestClientIP() {
	cases := map[string]struct {
		header, value, remote, want string
	}{
		"forwarded chain": {"X-Forwarded-For", "203.0.113.7, 10.0.0.1", "10.0.0.1:80", "203.0.113.7"},
		"real ip":         {"X-Real-IP", " 198.51.100.2 ", "10.0.0.1:80", "198.51.100.2"},
		"remote ipv4":     {"", "", "192.0.2.10:5555", "192.0.2.10"},
		"remote ipv6":     {"", "", "[2001:db8::1]:5555", "2001:db8::1"},
		"bare remote":     {"", "", "192.0.2.10", "192.0.2.10"},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			req := httptestutil.NewRequest(s.T(), http.MethodGet, "/")
			req.RemoteAddr = tc.remote
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			s.Equal(tc.want, ClientIP(req))
		})
	}
}
