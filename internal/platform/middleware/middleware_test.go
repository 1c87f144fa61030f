package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"dividend/pkg/requestcontext"
)

type MiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
	auth   *OperatorAuth
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.auth = NewOperatorAuth("test-key", "dividend")
}

func (s *MiddlewareSuite) protected() http.Handler {
	return RequireRole(s.auth, s.logger, RoleOperator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.Operator(r.Context())))
	}))
}

// =============================================================================
// Operator auth
// =============================================================================

func (s *MiddlewareSuite) TestRequireRole() {
	s.Run("valid operator token passes and sets subject", func() {
		token, err := s.auth.Issue("alice", RoleOperator, time.Minute)
		s.Require().NoError(err)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		s.protected().ServeHTTP(rr, req)
		s.Equal(http.StatusOK, rr.Code)
		s.Equal("alice", rr.Body.String())
	})

	s.Run("missing token is unauthorized", func() {
		rr := httptest.NewRecorder()
		s.protected().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("wrong role is forbidden", func() {
		token, err := s.auth.Issue("bob", RoleAuditor, time.Minute)
		s.Require().NoError(err)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		s.protected().ServeHTTP(rr, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("token signed with another key is rejected", func() {
		other := NewOperatorAuth("other-key", "dividend")
		token, err := other.Issue("mallory", RoleOperator, time.Minute)
		s.Require().NoError(err)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		s.protected().ServeHTTP(rr, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("expired token is rejected", func() {
		token, err := s.auth.Issue("alice", RoleOperator, -time.Minute)
		s.Require().NoError(err)
		_, err = s.auth.Validate(token)
		s.ErrorContains(err, "expired")
	})
}

// =============================================================================
// Request plumbing
// =============================================================================

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rr.Header().Get(RequestIDHeader))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-123", seen)
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
