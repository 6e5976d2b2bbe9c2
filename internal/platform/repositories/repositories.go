package repositories

import (
	"database/sql"
	"time"

	"github.com/mattn/go-sqlite3"
	"tenauth/internal/platform/models"
)

// IsUniqueViolation reports whether err is a sqlite UNIQUE constraint failure,
// which the handlers surface as CONFLICT.
func IsUniqueViolation(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) Create(admin *models.Admin) error {
	_, err := r.db.Exec(`
		INSERT INTO admins (id, email, password_hash, full_name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, admin.ID, admin.Email, admin.PasswordHash, admin.FullName, admin.Active, admin.CreatedAt, admin.UpdatedAt)
	return err
}

func (r *AdminRepository) GetByID(id string) (*models.Admin, error) {
	admin := &models.Admin{}
	err := r.db.QueryRow(`
		SELECT id, email, password_hash, full_name, active, created_at, updated_at, deleted_at
		FROM admins WHERE id = ?
	`, id).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.FullName, &admin.Active, &admin.CreatedAt, &admin.UpdatedAt, &admin.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return admin, nil
}

func (r *AdminRepository) GetByEmail(email string) (*models.Admin, error) {
	admin := &models.Admin{}
	err := r.db.QueryRow(`
		SELECT id, email, password_hash, full_name, active, created_at, updated_at, deleted_at
		FROM admins WHERE email = ?
	`, email).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.FullName, &admin.Active, &admin.CreatedAt, &admin.UpdatedAt, &admin.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return admin, nil
}

func (r *AdminRepository) UpdateProfile(id, fullName string) error {
	_, err := r.db.Exec(`UPDATE admins SET full_name = ?, updated_at = ? WHERE id = ?`,
		fullName, time.Now().Unix(), id)
	return err
}

func (r *AdminRepository) UpdatePassword(id, passwordHash string) error {
	_, err := r.db.Exec(`UPDATE admins SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().Unix(), id)
	return err
}

// Delete soft-deletes the admin and cascades to every owned app, that app's
// API key, and that app's users in a single transaction. Sessions for all
// affected subjects are cut off via the revocation table. A partially applied
// cascade is never visible.
func (r *AdminRepository) Delete(id string) error {
	now := time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO session_revocations (subject_id, revoked_before)
		SELECT id, ? FROM users WHERE app_id IN (SELECT id FROM apps WHERE admin_id = ?)
		ON CONFLICT(subject_id) DO UPDATE SET revoked_before = MAX(revoked_before, excluded.revoked_before)
	`, now, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO session_revocations (subject_id, revoked_before) VALUES (?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET revoked_before = MAX(revoked_before, excluded.revoked_before)
	`, id, now); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		UPDATE api_keys SET revoked_at = ?
		WHERE revoked_at IS NULL AND app_id IN (SELECT id FROM apps WHERE admin_id = ?)
	`, now, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE users SET deleted_at = ?, active = 0, updated_at = ?
		WHERE deleted_at IS NULL AND app_id IN (SELECT id FROM apps WHERE admin_id = ?)
	`, now, now, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE apps SET deleted_at = ?, active = 0, updated_at = ? WHERE deleted_at IS NULL AND admin_id = ?
	`, now, now, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE admins SET deleted_at = ?, active = 0, updated_at = ? WHERE id = ?
	`, now, now, id); err != nil {
		return err
	}

	return tx.Commit()
}

type AppRepository struct {
	db *sql.DB
}

func NewAppRepository(db *sql.DB) *AppRepository {
	return &AppRepository{db: db}
}

func (r *AppRepository) Create(app *models.App) error {
	_, err := r.db.Exec(`
		INSERT INTO apps (id, admin_id, name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, app.ID, app.AdminID, app.Name, app.Active, app.CreatedAt, app.UpdatedAt)
	return err
}

func (r *AppRepository) GetByID(id string) (*models.App, error) {
	app := &models.App{}
	err := r.db.QueryRow(`
		SELECT id, admin_id, name, active, created_at, updated_at, deleted_at
		FROM apps WHERE id = ?
	`, id).Scan(&app.ID, &app.AdminID, &app.Name, &app.Active, &app.CreatedAt, &app.UpdatedAt, &app.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return app, nil
}

func (r *AppRepository) ListByAdmin(adminID string) ([]*models.App, error) {
	rows, err := r.db.Query(`
		SELECT id, admin_id, name, active, created_at, updated_at, deleted_at
		FROM apps WHERE admin_id = ? AND deleted_at IS NULL ORDER BY created_at DESC
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		app := &models.App{}
		if err := rows.Scan(&app.ID, &app.AdminID, &app.Name, &app.Active, &app.CreatedAt, &app.UpdatedAt, &app.DeletedAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *AppRepository) Update(id, name string, active bool) error {
	_, err := r.db.Exec(`UPDATE apps SET name = ?, active = ?, updated_at = ? WHERE id = ?`,
		name, active, time.Now().Unix(), id)
	return err
}

// Delete soft-deletes the app, revokes its current API key, soft-deletes its
// users, and cuts their sessions, atomically.
func (r *AppRepository) Delete(id string) error {
	now := time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO session_revocations (subject_id, revoked_before)
		SELECT id, ? FROM users WHERE app_id = ?
		ON CONFLICT(subject_id) DO UPDATE SET revoked_before = MAX(revoked_before, excluded.revoked_before)
	`, now, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE api_keys SET revoked_at = ? WHERE app_id = ? AND revoked_at IS NULL`, now, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE users SET deleted_at = ?, active = 0, updated_at = ? WHERE app_id = ? AND deleted_at IS NULL
	`, now, now, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE apps SET deleted_at = ?, active = 0, updated_at = ? WHERE id = ?
	`, now, now, id); err != nil {
		return err
	}

	return tx.Commit()
}
