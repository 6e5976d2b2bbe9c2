package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tenauth/internal/pkg/errors"
	"tenauth/internal/platform/audit"
	"tenauth/internal/platform/repositories"
)

type AuditHandler struct {
	appRepo  *repositories.AppRepository
	auditLog *audit.Logger
}

func NewAuditHandler(appRepo *repositories.AppRepository, auditLog *audit.Logger) *AuditHandler {
	return &AuditHandler{appRepo: appRepo, auditLog: auditLog}
}

// List returns recent credential events across the caller's apps.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	apps, err := h.appRepo.ListByAdmin(principal.SubjectID)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}

	appIDs := make([]string, 0, len(apps))
	for _, app := range apps {
		appIDs = append(appIDs, app.ID)
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.auditLog.ListByApps(appIDs, principal.SubjectID, limit)
	if err != nil {
		errors.WriteStoreError(w)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
