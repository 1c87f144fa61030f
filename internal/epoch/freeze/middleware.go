package freeze

import (
	"context"
	"log/slog"
	"net/http"

	"dividend/pkg/platform/httputil"
	"dividend/pkg/requestcontext"
)

type tokenKey struct{}

// WithToken stores a write token in ctx.
func WithToken(ctx context.Context, token WriteToken) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token obtained by RequireWriteToken. The zero token is
// rejected by every guard.
func TokenFrom(ctx context.Context) WriteToken {
	token, _ := ctx.Value(tokenKey{}).(WriteToken)
	return token
}

// RequireWriteToken acquires a token when the request arrives and rejects the
// request with 503 while maintenance is in progress.
func RequireWriteToken(guard Guard, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, err := guard.Acquire(ctx)
			if err != nil {
				logger.WarnContext(ctx, "write rejected during maintenance",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithToken(ctx, token)))
		})
	}
}
