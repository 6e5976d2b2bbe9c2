package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"tenauth/internal/platform/models"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Rotate revokes the app's current active key (if any) and inserts the
// replacement in one transaction. Both transitions become visible together,
// so no instant exists where two keys are valid for the same app. The
// one-active-key invariant is additionally enforced by a partial unique index
// on (app_id) WHERE revoked_at IS NULL.
func (r *APIKeyRepository) Rotate(key *models.APIKey) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.New().String()
	}
	key.CreatedAt = time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE api_keys SET revoked_at = ? WHERE app_id = ? AND revoked_at IS NULL`,
		key.CreatedAt, key.AppID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO api_keys (id, app_id, key_hash, key_prefix, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, key.ID, key.AppID, key.KeyHash, key.KeyPrefix, key.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// Revoke marks the app's current key revoked without a replacement. Revoking
// when no active key exists is a no-op success.
func (r *APIKeyRepository) Revoke(appID string) error {
	_, err := r.db.Exec(`UPDATE api_keys SET revoked_at = ? WHERE app_id = ? AND revoked_at IS NULL`,
		time.Now().Unix(), appID)
	return err
}

// GetActiveByHash resolves a key digest to its row. Revoked keys and unknown
// digests both return (nil, nil); a revoked key is indistinguishable from one
// that never existed.
func (r *APIKeyRepository) GetActiveByHash(hash string) (*models.APIKey, error) {
	key := &models.APIKey{}
	err := r.db.QueryRow(`
		SELECT id, app_id, key_prefix, created_at, last_used_at, revoked_at
		FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL
	`, hash).Scan(&key.ID, &key.AppID, &key.KeyPrefix, &key.CreatedAt, &key.LastUsedAt, &key.RevokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	key.KeyHash = hash
	return key, nil
}

func (r *APIKeyRepository) GetActiveByApp(appID string) (*models.APIKey, error) {
	key := &models.APIKey{}
	err := r.db.QueryRow(`
		SELECT id, app_id, key_hash, key_prefix, created_at, last_used_at, revoked_at
		FROM api_keys WHERE app_id = ? AND revoked_at IS NULL
	`, appID).Scan(&key.ID, &key.AppID, &key.KeyHash, &key.KeyPrefix, &key.CreatedAt, &key.LastUsedAt, &key.RevokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return key, nil
}

func (r *APIKeyRepository) UpdateLastUsed(id string) error {
	_, err := r.db.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}
