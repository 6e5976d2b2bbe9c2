package repositories

import (
	"database/sql"
	"time"

	"tenauth/internal/platform/models"
)

// UserRepository scopes every query by app id. The app id argument always
// comes from the authenticated principal, never from a request payload, so a
// lookup can only ever see users inside the caller's tenant.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, app_id, email, password_hash, full_name, verified, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.AppID, user.Email, user.PasswordHash, user.FullName, user.Verified, user.Active, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(appID, id string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(`
		SELECT id, app_id, email, password_hash, full_name, verified, active, created_at, updated_at, deleted_at
		FROM users WHERE app_id = ? AND id = ?
	`, appID, id).Scan(&user.ID, &user.AppID, &user.Email, &user.PasswordHash, &user.FullName, &user.Verified, &user.Active, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetByEmail looks up by (app, email). Emails are unique per app only, so the
// app id is part of the identity, not an optional filter.
func (r *UserRepository) GetByEmail(appID, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(`
		SELECT id, app_id, email, password_hash, full_name, verified, active, created_at, updated_at, deleted_at
		FROM users WHERE app_id = ? AND email = ?
	`, appID, email).Scan(&user.ID, &user.AppID, &user.Email, &user.PasswordHash, &user.FullName, &user.Verified, &user.Active, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) ListByApp(appID string) ([]*models.User, error) {
	rows, err := r.db.Query(`
		SELECT id, app_id, email, full_name, verified, active, created_at, updated_at
		FROM users WHERE app_id = ? AND deleted_at IS NULL ORDER BY created_at DESC
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.AppID, &user.Email, &user.FullName, &user.Verified, &user.Active, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateProfile(appID, id, fullName string) error {
	_, err := r.db.Exec(`UPDATE users SET full_name = ?, updated_at = ? WHERE app_id = ? AND id = ?`,
		fullName, time.Now().Unix(), appID, id)
	return err
}

func (r *UserRepository) UpdatePassword(appID, id, passwordHash string) error {
	_, err := r.db.Exec(`UPDATE users SET password_hash = ?, updated_at = ? WHERE app_id = ? AND id = ?`,
		passwordHash, time.Now().Unix(), appID, id)
	return err
}

func (r *UserRepository) SetVerified(appID, id string, verified bool) error {
	_, err := r.db.Exec(`UPDATE users SET verified = ?, updated_at = ? WHERE app_id = ? AND id = ?`,
		verified, time.Now().Unix(), appID, id)
	return err
}

// Delete soft-deletes the user and revokes their outstanding sessions in one
// transaction.
func (r *UserRepository) Delete(appID, id string) error {
	now := time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO session_revocations (subject_id, revoked_before) VALUES (?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET revoked_before = MAX(revoked_before, excluded.revoked_before)
	`, id, now); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE users SET deleted_at = ?, active = 0, updated_at = ? WHERE app_id = ? AND id = ? AND deleted_at IS NULL
	`, now, now, appID, id); err != nil {
		return err
	}

	return tx.Commit()
}
