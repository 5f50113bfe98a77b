// Package middleware holds the HTTP middleware: Firebase token
// verification and CORS.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
)

type contextKey string

const (
	// UploaderKey is the context key for the uploader email
	UploaderKey contextKey = "uploader"
	// AuthKey is the context key for the full auth info
	AuthKey contextKey = "auth"
)

// AuthInfo contains authenticated user information
type AuthInfo struct {
	UserID string
	Email  string
}

// TokenVerifier validates bearer tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthMiddleware validates Firebase Auth tokens and records the uploader
// identity for the import audit trail
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid "Bearer <token>" header
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		decodedToken, err := m.verifier.VerifyIDToken(r.Context(), parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		authInfo := AuthInfo{UserID: decodedToken.UID}
		if email, ok := decodedToken.Claims["email"].(string); ok {
			authInfo.Email = email
		}

		ctx := context.WithValue(r.Context(), AuthKey, authInfo)
		ctx = context.WithValue(ctx, UploaderKey, authInfo.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUploader extracts the uploader email from context. Empty when the
// token carried no email claim.
func GetUploader(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UploaderKey).(string)
	return email, ok
}

// GetAuth retrieves auth info from the request context
func GetAuth(r *http.Request) (AuthInfo, bool) {
	if info, ok := r.Context().Value(AuthKey).(AuthInfo); ok {
		return info, true
	}
	return AuthInfo{}, false
}
