package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/httputil"
	"dividend/pkg/requestcontext"
)

const (
	RoleOperator = "operator"
	RoleAuditor  = "auditor"
)

// OperatorClaims are the bearer token claims accepted on admin routes.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OperatorAuth issues and validates HS256 operator tokens.
type OperatorAuth struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewOperatorAuth(signingKey, issuer string) *OperatorAuth {
	return &OperatorAuth{signingKey: []byte(signingKey), issuer: issuer, now: time.Now}
}

// Issue mints a token; used by the ops CLI and tests.
func (a *OperatorAuth) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(a.signingKey)
}

func (a *OperatorAuth) Validate(tokenString string) (*OperatorClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return a.signingKey, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*OperatorClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// RequireRole admits requests whose bearer token carries one of roles.
func RequireRole(auth *OperatorAuth, logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}
			claims, err := auth.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token", "request_id", requestID, "error", err)
				httputil.WriteError(w, err)
				return
			}
			if !slices.Contains(roles, claims.Role) {
				logger.WarnContext(ctx, "operator role rejected",
					"request_id", requestID,
					"subject", claims.Subject,
					"role", claims.Role,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithOperator(ctx, claims.Subject)))
		})
	}
}
