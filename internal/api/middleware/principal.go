package middleware

import (
	"context"
	"net/http"

	apiContext "tenauth/internal/api/context"
	"tenauth/internal/pkg/errors"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/models"
	"tenauth/internal/platform/repositories"
)

// Principal is the resolved identity handlers act on. Nothing downstream
// re-derives identity from raw headers.
type Principal struct {
	AppID       string
	SubjectID   string
	SubjectKind string
}

// PrincipalMiddleware is the tenant-isolation chokepoint. For user sessions
// it requires the app id embedded in the token to equal the app resolved from
// the API key; a valid session from app A presented with app B's key is
// Forbidden no matter how fresh the signature is. It also re-validates that
// the subject still exists and is active, so deleted accounts cannot ride out
// a token's remaining lifetime.
type PrincipalMiddleware struct {
	adminRepo *repositories.AdminRepository
	userRepo  *repositories.UserRepository
}

func NewPrincipalMiddleware(adminRepo *repositories.AdminRepository, userRepo *repositories.UserRepository) *PrincipalMiddleware {
	return &PrincipalMiddleware{adminRepo: adminRepo, userRepo: userRepo}
}

// RequireAdmin gates admin-only routes.
func (m *PrincipalMiddleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "No authentication claims found", nil)
			return
		}
		if claims.SubjectKind != auth.SubjectKindAdmin {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Admin session required", nil)
			return
		}

		admin, err := m.adminRepo.GetByID(claims.SubjectID)
		if err != nil {
			errors.WriteStoreError(w)
			return
		}
		if admin == nil || admin.DeletedAt != nil || !admin.Active {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Account no longer active", nil)
			return
		}

		principal := &Principal{
			SubjectID:   admin.ID,
			SubjectKind: auth.SubjectKindAdmin,
		}
		ctx := context.WithValue(r.Context(), apiContext.Principal, principal)
		next(w, r.WithContext(ctx))
	}
}

// RequireUser gates user routes. Runs after APIKeyMiddleware and
// AuthMiddleware; both the resolved app and the verified claims must be
// present, and they must agree.
func (m *PrincipalMiddleware) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "No authentication claims found", nil)
			return
		}
		app, ok := r.Context().Value(apiContext.App).(*models.App)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "No API key context found", nil)
			return
		}

		if claims.SubjectKind != auth.SubjectKindUser {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "User session required", nil)
			return
		}
		if claims.AppID != app.ID {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Session does not belong to this app", nil)
			return
		}

		user, err := m.userRepo.GetByID(app.ID, claims.SubjectID)
		if err != nil {
			errors.WriteStoreError(w)
			return
		}
		if user == nil || user.DeletedAt != nil || !user.Active {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Account no longer active", nil)
			return
		}

		principal := &Principal{
			AppID:       app.ID,
			SubjectID:   user.ID,
			SubjectKind: auth.SubjectKindUser,
		}
		ctx := context.WithValue(r.Context(), apiContext.Principal, principal)
		next(w, r.WithContext(ctx))
	}
}
