package middleware

import (
	"context"
	"net/http"

	apiContext "tenauth/internal/api/context"
	"tenauth/internal/pkg/errors"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/repositories"
)

const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware resolves the tenant credential. A missing, malformed,
// revoked, or orphaned key fails identically with INVALID_CREDENTIAL, and a
// revoked key fails on the very next request; no verdict is cached outside
// the store.
type APIKeyMiddleware struct {
	keyRepo *repositories.APIKeyRepository
	appRepo *repositories.AppRepository
}

func NewAPIKeyMiddleware(keyRepo *repositories.APIKeyRepository, appRepo *repositories.AppRepository) *APIKeyMiddleware {
	return &APIKeyMiddleware{keyRepo: keyRepo, appRepo: appRepo}
}

func (m *APIKeyMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get(APIKeyHeader)
		if rawKey == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Missing API key", nil)
			return
		}

		key, err := m.keyRepo.GetActiveByHash(auth.DigestAPIKey(rawKey))
		if err != nil {
			errors.WriteStoreError(w)
			return
		}
		if key == nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid or revoked API key", nil)
			return
		}

		app, err := m.appRepo.GetByID(key.AppID)
		if err != nil {
			errors.WriteStoreError(w)
			return
		}
		if app == nil || app.DeletedAt != nil || !app.Active {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid or revoked API key", nil)
			return
		}

		go m.keyRepo.UpdateLastUsed(key.ID)

		ctx := context.WithValue(r.Context(), apiContext.App, app)
		next(w, r.WithContext(ctx))
	}
}
