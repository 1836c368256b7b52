package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/shoploft/api/internal/platform/httpx"
	"github.com/shoploft/api/internal/platform/observability"
	"github.com/shoploft/api/internal/platform/requestctx"
)

type identityContextKey struct{}

// Identity describes the authenticated storefront customer attached to a
// request. Checkout works without one; when present it pre-fills customer
// details on the provider session.
type Identity struct {
	CustomerID string
	Email      string
	Name       string
}

// ErrInvalidToken indicates the bearer token failed validation.
var ErrInvalidToken = errors.New("auth: invalid customer token")

type customerClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 customer tokens issued by the storefront.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator constructs an Authenticator from the shared signing secret.
// An empty secret disables token verification entirely (anonymous-only).
func NewAuthenticator(secret string) *Authenticator {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return &Authenticator{}
	}
	return &Authenticator{secret: []byte(trimmed)}
}

// Verify parses and validates a customer token, returning its identity.
func (a *Authenticator) Verify(token string) (*Identity, error) {
	if a == nil || len(a.secret) == 0 {
		return nil, ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &customerClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		CustomerID: claims.Subject,
		Email:      strings.TrimSpace(claims.Email),
		Name:       strings.TrimSpace(claims.Name),
	}, nil
}

// OptionalCustomerAuth attaches the customer identity when a bearer token is
// supplied. Requests without an Authorization header pass through anonymous;
// requests with a bad token are rejected. Authenticated requests get the
// sanitized customer id on the request logger.
func (a *Authenticator) OptionalCustomerAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "malformed authorization header", http.StatusUnauthorized))
				return
			}

			identity, err := a.Verify(strings.TrimPrefix(header, prefix))
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "invalid customer token", http.StatusUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			ctx = requestctx.WithLogger(ctx, requestctx.Logger(ctx).With(
				zap.String("customer_id", observability.SanitizeCustomerID(identity.CustomerID)),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the customer identity when one was attached.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
