package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "tenauth/internal/api/context"
	"tenauth/internal/pkg/errors"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/repositories"
)

// AuthMiddleware verifies bearer session tokens: signature, expiry, and the
// revocation list all have to pass before the claims reach the context.
type AuthMiddleware struct {
	tokenSvc       *auth.TokenService
	revocationRepo *repositories.SessionRevocationRepository
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, revocationRepo *repositories.SessionRevocationRepository) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, revocationRepo: revocationRepo}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid authorization header format", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1])
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid or expired token", nil)
			return
		}

		revoked, err := m.revocationRepo.IsRevoked(claims.SubjectID, claims.IssuedAt.Unix())
		if err != nil {
			errors.WriteStoreError(w)
			return
		}
		if revoked {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Session has been revoked", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}
