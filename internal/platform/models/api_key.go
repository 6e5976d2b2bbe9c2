package models

// APIKey is a pure lookup credential for an App. Only the sha256 digest of the
// raw key is stored; the raw value is returned to the caller exactly once at
// generation time. At most one key per App has RevokedAt == nil.
type APIKey struct {
	ID         string `json:"id"`
	AppID      string `json:"app_id"`
	KeyHash    string `json:"-"`
	KeyPrefix  string `json:"key_prefix"`
	CreatedAt  int64  `json:"created_at"`
	LastUsedAt *int64 `json:"last_used_at,omitempty"`
	RevokedAt  *int64 `json:"revoked_at,omitempty"`
}
