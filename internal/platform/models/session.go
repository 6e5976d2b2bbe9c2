package models

// SessionRevocation invalidates every session for a subject issued at or
// before RevokedBefore. Written on password change and account deactivation;
// short token TTLs keep the table small.
type SessionRevocation struct {
	SubjectID     string `json:"subject_id"`
	RevokedBefore int64  `json:"revoked_before"`
}
