package handlers

import (
	"encoding/json"
	"net/http"

	"tenauth/internal/pkg/errors"
	"tenauth/internal/platform/audit"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/models"
	"tenauth/internal/platform/repositories"
)

// UserHandler is the admin's view of an app's users. The app id in the path
// is a target, not an authorization input: it is checked against the caller's
// ownership chain before any user row is read, and user lookups are scoped by
// that verified app id in SQL.
type UserHandler struct {
	appRepo  *repositories.AppRepository
	userRepo *repositories.UserRepository
	auditLog *audit.Logger
}

func NewUserHandler(appRepo *repositories.AppRepository, userRepo *repositories.UserRepository, auditLog *audit.Logger) *UserHandler {
	return &UserHandler{appRepo: appRepo, userRepo: userRepo, auditLog: auditLog}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	users, err := h.userRepo.ListByApp(app.ID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	user, err := h.userRepo.GetByID(app.ID, paramFrom(r, "user_id"))
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if user == nil || user.DeletedAt != nil {
		// The scoped lookup cannot see users outside the verified app, so a
		// cross-tenant user id and a nonexistent one are the same case.
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "User not accessible", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type UpdateUserRequest struct {
	Verified *bool `json:"verified"`
}

// Update lets the owning admin flip moderation flags on a user. Profile
// fields stay under the user's own control via the end-user surface.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	userID := paramFrom(r, "user_id")
	user, err := h.userRepo.GetByID(app.ID, userID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if user == nil || user.DeletedAt != nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "User not accessible", nil)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Verified != nil {
		if err := h.userRepo.SetVerified(app.ID, user.ID, *req.Verified); err != nil {
			errors.WriteStoreError(w)
			return
		}
	}

	updated, err := h.userRepo.GetByID(app.ID, user.ID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}

	principal := principalFrom(r)
	h.auditLog.Record(r, app.ID, principal.SubjectID, auth.SubjectKindAdmin, "user.update", "user", user.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	userID := paramFrom(r, "user_id")
	user, err := h.userRepo.GetByID(app.ID, userID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if user == nil || user.DeletedAt != nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "User not accessible", nil)
		return
	}

	if err := h.userRepo.Delete(app.ID, user.ID); err != nil {
		errors.WriteStoreError(w)
		return
	}

	principal := principalFrom(r)
	h.auditLog.Record(r, app.ID, principal.SubjectID, auth.SubjectKindAdmin, "user.delete", "user", user.ID, nil)

	w.WriteHeader(http.StatusNoContent)
}
