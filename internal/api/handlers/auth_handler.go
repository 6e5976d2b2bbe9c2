package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apiContext "tenauth/internal/api/context"
	"tenauth/internal/pkg/errors"
	"tenauth/internal/pkg/validator"
	"tenauth/internal/platform/audit"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/models"
	"tenauth/internal/platform/repositories"
)

// AuthHandler is the end-user surface. Every route runs behind the API key
// middleware, so a valid app is always in context; signup and login act
// inside that app's user set and nowhere else.
type AuthHandler struct {
	userRepo       *repositories.UserRepository
	revocationRepo *repositories.SessionRevocationRepository
	tokenSvc       *auth.TokenService
	auditLog       *audit.Logger
}

func NewAuthHandler(userRepo *repositories.UserRepository, revocationRepo *repositories.SessionRevocationRepository, tokenSvc *auth.TokenService, auditLog *audit.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo:       userRepo,
		revocationRepo: revocationRepo,
		tokenSvc:       tokenSvc,
		auditLog:       auditLog,
	}
}

func appFrom(r *http.Request) *models.App {
	app, _ := r.Context().Value(apiContext.App).(*models.App)
	return app
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type UserSessionResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	app := appFrom(r)

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	email, err := validator.NormalizeEmail(req.Email)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to hash password", nil)
		return
	}

	now := time.Now().Unix()
	user := &models.User{
		ID:           "usr_" + uuid.NewString(),
		AppID:        app.ID,
		Email:        email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.userRepo.Create(user); err != nil {
		if repositories.IsUniqueViolation(err) {
			// Unique within this app only; the same address may exist in
			// another app.
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Email already registered for this app", nil)
			return
		}
		errors.WriteStoreError(w)
		return
	}

	token, err := h.tokenSvc.IssueUserSession(user.ID, app.ID, user.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue session", nil)
		return
	}

	h.auditLog.Record(r, app.ID, user.ID, auth.SubjectKindUser, "user.signup", "user", user.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(UserSessionResponse{User: user, AccessToken: token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	app := appFrom(r)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	email, err := validator.NormalizeEmail(req.Email)
	if err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid credentials", nil)
		return
	}

	user, err := h.userRepo.GetByEmail(app.ID, email)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if user == nil || user.DeletedAt != nil || !user.Active {
		auth.BurnPasswordCheck(req.Password)
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid credentials", nil)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid credentials", nil)
		return
	}

	token, err := h.tokenSvc.IssueUserSession(user.ID, app.ID, user.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue session", nil)
		return
	}

	h.auditLog.Record(r, app.ID, user.ID, auth.SubjectKindUser, "user.login", "user", user.ID, nil)
	log.Info().Str("app_id", app.ID).Str("user_id", user.ID).Msg("user login")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UserSessionResponse{User: user, AccessToken: token})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	user, err := h.userRepo.GetByID(principal.AppID, principal.SubjectID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if user == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := h.userRepo.UpdateProfile(principal.AppID, principal.SubjectID, req.FullName); err != nil {
		errors.WriteStoreError(w)
		return
	}

	user, err := h.userRepo.GetByID(principal.AppID, principal.SubjectID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// ChangePassword rotates the user's hash and invalidates every session issued
// before now.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := validator.ValidatePassword(req.NewPassword); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	user, err := h.userRepo.GetByID(principal.AppID, principal.SubjectID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid credentials", nil)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to hash password", nil)
		return
	}
	if err := h.userRepo.UpdatePassword(principal.AppID, user.ID, hash); err != nil {
		errors.WriteStoreError(w)
		return
	}
	if err := h.revocationRepo.RevokeAllForSubject(user.ID, time.Now().Unix()); err != nil {
		errors.WriteStoreError(w)
		return
	}

	h.auditLog.Record(r, principal.AppID, user.ID, auth.SubjectKindUser, "user.password_change", "user", user.ID, nil)

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	if err := h.userRepo.Delete(principal.AppID, principal.SubjectID); err != nil {
		errors.WriteStoreError(w)
		return
	}

	h.auditLog.Record(r, principal.AppID, principal.SubjectID, auth.SubjectKindUser, "user.delete", "user", principal.SubjectID, nil)

	w.WriteHeader(http.StatusNoContent)
}
