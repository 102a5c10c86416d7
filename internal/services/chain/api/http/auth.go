// Package httpapi exposes the chain custody engine as a JSON HTTP service.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/gravemark/ink/internal/platform/errors"
)

// Identity is the verified caller attached to every service call.
type Identity struct {
	UserID      string
	DisplayName string
}

type contextKey int

const identityContextKey contextKey = iota

// IdentityFromContext returns the verified caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// Claims is the JWT payload the platform's auth service issues.
type Claims struct {
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens from the auth collaborator.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates a token verifier over a shared signing secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token for the given identity. The chain service only
// verifies tokens in production; issuing is for tooling and tests.
func (a *Authenticator) IssueToken(identity Identity, expiresAt time.Time) (string, error) {
	claims := Claims{
		DisplayName: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate extracts and verifies the bearer token on a request.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is invalid")
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "bearer token has no subject")
	}
	return Identity{UserID: userID, DisplayName: claims.DisplayName}, nil
}

// requireIdentity wraps a handler with bearer authentication, attaching the
// verified caller to the request context.
func (h *Handler) requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.auth.Authenticate(r)
		if err != nil {
			respondError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityContextKey, identity)))
	}
}
