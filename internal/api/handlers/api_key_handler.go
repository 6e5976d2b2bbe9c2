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

// APIKeyHandler issues and revokes the tenant credential. Generation rotates:
// the previous key dies in the same transaction that creates its replacement.
type APIKeyHandler struct {
	appRepo  *repositories.AppRepository
	keyRepo  *repositories.APIKeyRepository
	auditLog *audit.Logger
}

func NewAPIKeyHandler(appRepo *repositories.AppRepository, keyRepo *repositories.APIKeyRepository, auditLog *audit.Logger) *APIKeyHandler {
	return &APIKeyHandler{appRepo: appRepo, keyRepo: keyRepo, auditLog: auditLog}
}

type GenerateKeyResponse struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	KeyPrefix string `json:"key_prefix"`
	CreatedAt int64  `json:"created_at"`
}

func (h *APIKeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	rawKey, digest, displayPrefix, err := auth.GenerateAPIKey()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate key", nil)
		return
	}

	key := &models.APIKey{
		AppID:     app.ID,
		KeyHash:   digest,
		KeyPrefix: displayPrefix,
	}
	if err := h.keyRepo.Rotate(key); err != nil {
		errors.WriteStoreError(w)
		return
	}

	principal := principalFrom(r)
	h.auditLog.Record(r, app.ID, principal.SubjectID, auth.SubjectKindAdmin, "api_key.generate", "api_key", key.ID,
		map[string]interface{}{"key_prefix": key.KeyPrefix})

	// The raw key appears here and nowhere else.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(GenerateKeyResponse{
		ID:        key.ID,
		Key:       rawKey,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: key.CreatedAt,
	})
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	if err := h.keyRepo.Revoke(app.ID); err != nil {
		errors.WriteStoreError(w)
		return
	}

	principal := principalFrom(r)
	h.auditLog.Record(r, app.ID, principal.SubjectID, auth.SubjectKindAdmin, "api_key.revoke", "api_key", "", nil)

	w.WriteHeader(http.StatusNoContent)
}

func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	key, err := h.keyRepo.GetActiveByApp(app.ID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if key == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "No active key for this app", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}
