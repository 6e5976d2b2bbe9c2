package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tenauth/internal/pkg/errors"
	"tenauth/internal/pkg/validator"
	"tenauth/internal/platform/audit"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/models"
	"tenauth/internal/platform/repositories"
)

// AdminHandler covers the operator surface: signup, login, profile, password
// rotation, and account deletion. This is one of the two places plaintext
// passwords are accepted; they are hashed immediately and never logged.
type AdminHandler struct {
	adminRepo      *repositories.AdminRepository
	revocationRepo *repositories.SessionRevocationRepository
	tokenSvc       *auth.TokenService
	auditLog       *audit.Logger
}

func NewAdminHandler(adminRepo *repositories.AdminRepository, revocationRepo *repositories.SessionRevocationRepository, tokenSvc *auth.TokenService, auditLog *audit.Logger) *AdminHandler {
	return &AdminHandler{
		adminRepo:      adminRepo,
		revocationRepo: revocationRepo,
		tokenSvc:       tokenSvc,
		auditLog:       auditLog,
	}
}

type AdminSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type AdminSessionResponse struct {
	Admin       *models.Admin `json:"admin"`
	AccessToken string        `json:"access_token"`
}

func (h *AdminHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req AdminSignupRequest
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
	admin := &models.Admin{
		ID:           "adm_" + uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.adminRepo.Create(admin); err != nil {
		if repositories.IsUniqueViolation(err) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Email already registered", nil)
			return
		}
		errors.WriteStoreError(w)
		return
	}

	token, err := h.tokenSvc.IssueAdminSession(admin.ID, admin.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue session", nil)
		return
	}

	h.auditLog.Record(r, "", admin.ID, auth.SubjectKindAdmin, "admin.signup", "admin", admin.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AdminSessionResponse{Admin: admin, AccessToken: token})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
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

	admin, err := h.adminRepo.GetByEmail(email)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if admin == nil || admin.DeletedAt != nil || !admin.Active {
		// Lookup miss and bad password take the same path and the same time.
		auth.BurnPasswordCheck(req.Password)
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid credentials", nil)
		return
	}

	if !auth.CheckPassword(admin.PasswordHash, req.Password) {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid credentials", nil)
		return
	}

	token, err := h.tokenSvc.IssueAdminSession(admin.ID, admin.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue session", nil)
		return
	}

	h.auditLog.Record(r, "", admin.ID, auth.SubjectKindAdmin, "admin.login", "admin", admin.ID, nil)
	log.Info().Str("admin_id", admin.ID).Msg("admin login")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AdminSessionResponse{Admin: admin, AccessToken: token})
}

func (h *AdminHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	admin, err := h.adminRepo.GetByID(principal.SubjectID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if admin == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Admin not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(admin)
}

type UpdateProfileRequest struct {
	FullName string `json:"full_name"`
}

func (h *AdminHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := h.adminRepo.UpdateProfile(principal.SubjectID, req.FullName); err != nil {
		errors.WriteStoreError(w)
		return
	}

	admin, err := h.adminRepo.GetByID(principal.SubjectID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(admin)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword rotates the hash and revokes every session issued before
// now, including the one used to make this request.
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
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

	admin, err := h.adminRepo.GetByID(principal.SubjectID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if admin == nil || !auth.CheckPassword(admin.PasswordHash, req.CurrentPassword) {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid credentials", nil)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to hash password", nil)
		return
	}
	if err := h.adminRepo.UpdatePassword(admin.ID, hash); err != nil {
		errors.WriteStoreError(w)
		return
	}
	if err := h.revocationRepo.RevokeAllForSubject(admin.ID, time.Now().Unix()); err != nil {
		errors.WriteStoreError(w)
		return
	}

	h.auditLog.Record(r, "", admin.ID, auth.SubjectKindAdmin, "admin.password_change", "admin", admin.ID, nil)

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount removes the admin and cascades to apps, keys, and users.
func (h *AdminHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	if err := h.adminRepo.Delete(principal.SubjectID); err != nil {
		errors.WriteStoreError(w)
		return
	}

	h.auditLog.Record(r, "", principal.SubjectID, auth.SubjectKindAdmin, "admin.delete", "admin", principal.SubjectID, nil)
	log.Info().Str("admin_id", principal.SubjectID).Msg("admin account deleted")

	w.WriteHeader(http.StatusNoContent)
}
