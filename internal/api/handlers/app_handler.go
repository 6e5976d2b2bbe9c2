package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenauth/internal/pkg/errors"
	"tenauth/internal/platform/audit"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/models"
	"tenauth/internal/platform/repositories"
)

type AppHandler struct {
	appRepo  *repositories.AppRepository
	auditLog *audit.Logger
}

func NewAppHandler(appRepo *repositories.AppRepository, auditLog *audit.Logger) *AppHandler {
	return &AppHandler{appRepo: appRepo, auditLog: auditLog}
}

// getOwnedApp loads the app named in the path and checks it against the
// caller's ownership chain. Unknown, deleted, and unowned apps all fail the
// same way so responses do not reveal which app ids exist.
func getOwnedApp(w http.ResponseWriter, r *http.Request, appRepo *repositories.AppRepository) *models.App {
	principal := principalFrom(r)
	appID := paramFrom(r, "app_id")

	app, err := appRepo.GetByID(appID)
	if err != nil {
		errors.WriteStoreError(w)
		return nil
	}
	if app == nil || app.DeletedAt != nil || app.AdminID != principal.SubjectID {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "App not accessible", nil)
		return nil
	}
	return app
}

type CreateAppRequest struct {
	Name string `json:"name"`
}

func (h *AppHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req CreateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "App name is required", nil)
		return
	}
	if len(req.Name) > 80 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "App name cannot be longer than 80 characters", nil)
		return
	}

	now := time.Now().Unix()
	app := &models.App{
		ID:        "app_" + uuid.NewString(),
		AdminID:   principal.SubjectID,
		Name:      req.Name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.appRepo.Create(app); err != nil {
		errors.WriteStoreError(w)
		return
	}

	h.auditLog.Record(r, app.ID, principal.SubjectID, auth.SubjectKindAdmin, "app.create", "app", app.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(app)
}

func (h *AppHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	apps, err := h.appRepo.ListByAdmin(principal.SubjectID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if apps == nil {
		apps = []*models.App{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apps)
}

func (h *AppHandler) Get(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(app)
}

type UpdateAppRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

func (h *AppHandler) Update(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	var req UpdateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	name := app.Name
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "App name is required", nil)
			return
		}
	}
	active := app.Active
	if req.Active != nil {
		active = *req.Active
	}

	if err := h.appRepo.Update(app.ID, name, active); err != nil {
		errors.WriteStoreError(w)
		return
	}

	updated, err := h.appRepo.GetByID(app.ID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}

	principal := principalFrom(r)
	h.auditLog.Record(r, app.ID, principal.SubjectID, auth.SubjectKindAdmin, "app.update", "app", app.ID,
		map[string]interface{}{"active": active})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *AppHandler) Delete(w http.ResponseWriter, r *http.Request) {
	app := getOwnedApp(w, r, h.appRepo)
	if app == nil {
		return
	}

	if err := h.appRepo.Delete(app.ID); err != nil {
		errors.WriteStoreError(w)
		return
	}

	principal := principalFrom(r)
	h.auditLog.Record(r, app.ID, principal.SubjectID, auth.SubjectKindAdmin, "app.delete", "app", app.ID, nil)

	w.WriteHeader(http.StatusNoContent)
}
