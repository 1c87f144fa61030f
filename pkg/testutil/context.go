package testutil

import (
	"net/http"
	"time"

	"dividend/pkg/requestcontext"
)

// WithOperator marks the request as coming from an authenticated operator,
// bypassing the bearer middleware in handler unit tests.
func WithOperator(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithOperator(req.Context(), subject))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
