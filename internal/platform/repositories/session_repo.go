package repositories

import (
	"database/sql"
)

// SessionRevocationRepository backs pre-expiry session invalidation. One row
// per subject holds the latest issued-before cutoff; tokens issued at or
// before it are dead regardless of their expiry.
type SessionRevocationRepository struct {
	db *sql.DB
}

func NewSessionRevocationRepository(db *sql.DB) *SessionRevocationRepository {
	return &SessionRevocationRepository{db: db}
}

func (r *SessionRevocationRepository) RevokeAllForSubject(subjectID string, before int64) error {
	_, err := r.db.Exec(`
		INSERT INTO session_revocations (subject_id, revoked_before) VALUES (?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET revoked_before = MAX(revoked_before, excluded.revoked_before)
	`, subjectID, before)
	return err
}

func (r *SessionRevocationRepository) IsRevoked(subjectID string, issuedAt int64) (bool, error) {
	var revokedBefore int64
	err := r.db.QueryRow(`SELECT revoked_before FROM session_revocations WHERE subject_id = ?`,
		subjectID).Scan(&revokedBefore)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return issuedAt <= revokedBefore, nil
}

// PruneOlderThan drops revocation rows whose cutoff predates every token that
// could still be alive. Safe once cutoff is older than the longest session TTL.
func (r *SessionRevocationRepository) PruneOlderThan(cutoff int64) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM session_revocations WHERE revoked_before < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
