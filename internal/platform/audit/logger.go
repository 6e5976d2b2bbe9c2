package audit

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Entry struct {
	ID           string                 `json:"id"`
	AppID        string                 `json:"app_id,omitempty"`
	SubjectID    string                 `json:"subject_id"`
	SubjectKind  string                 `json:"subject_kind"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	IPAddress    string                 `json:"ip_address"`
	UserAgent    string                 `json:"user_agent"`
	CreatedAt    int64                  `json:"created_at"`
}

// Logger records credential lifecycle events (key rotation, revocation,
// logins, deletions). Writes are fire-and-forget; an audit insert failure
// never fails the request that caused it.
type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

func (l *Logger) Record(r *http.Request, appID, subjectID, subjectKind, action, resourceType, resourceID string, metadata map[string]interface{}) {
	entry := &Entry{
		ID:           "audit_" + uuid.New().String(),
		AppID:        appID,
		SubjectID:    subjectID,
		SubjectKind:  subjectKind,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		CreatedAt:    time.Now().Unix(),
	}

	metaJSON, _ := json.Marshal(metadata)

	go func() {
		_, err := l.db.Exec(`
			INSERT INTO audit_logs (id, app_id, subject_id, subject_kind, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.AppID, entry.SubjectID, entry.SubjectKind, entry.Action, entry.ResourceType, entry.ResourceID, string(metaJSON), entry.IPAddress, entry.UserAgent, entry.CreatedAt)
		if err != nil {
			log.Error().Err(err).Str("action", entry.Action).Msg("audit write failed")
		}
	}()
}

// ListByApps returns the newest entries for the given apps, plus entries the
// admin produced directly (empty app id, matching subject).
func (l *Logger) ListByApps(appIDs []string, adminID string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, app_id, subject_id, subject_kind, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs WHERE subject_id = ?`
	args := []interface{}{adminID}
	if len(appIDs) > 0 {
		query += ` OR app_id IN (?` + strings.Repeat(",?", len(appIDs)-1) + `)`
		for _, id := range appIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var metaStr string
		if err := rows.Scan(&entry.ID, &entry.AppID, &entry.SubjectID, &entry.SubjectKind, &entry.Action, &entry.ResourceType, &entry.ResourceID, &metaStr, &entry.IPAddress, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(metaStr), &entry.Metadata)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PruneOlderThan enforces the configured audit retention window.
func (l *Logger) PruneOlderThan(cutoff int64) (int64, error) {
	res, err := l.db.Exec(`DELETE FROM audit_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
