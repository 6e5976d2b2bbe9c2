package repositories

import (
	"testing"
	"time"

	"tenauth/internal/platform/models"
)

func testUser(id, appID, email string) *models.User {
	now := time.Now().Unix()
	return &models.User{
		ID:           id,
		AppID:        appID,
		Email:        email,
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserEmailUniquePerAppOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	if err := repo.Create(testUser("usr_1", "app_a", "sam@example.com")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same email inside the same app conflicts
	err := repo.Create(testUser("usr_2", "app_a", "sam@example.com"))
	if err == nil {
		t.Fatal("expected duplicate email within app to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}

	// The same email in another app is a different identity
	if err := repo.Create(testUser("usr_3", "app_b", "sam@example.com")); err != nil {
		t.Errorf("expected same email in another app to succeed, got %v", err)
	}
}

func TestUserLookupsAreAppScoped(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	if err := repo.Create(testUser("usr_1", "app_a", "sam@example.com")); err != nil {
		t.Fatalf("create: %v", err)
	}

	user, err := repo.GetByID("app_b", "usr_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user != nil {
		t.Error("expected lookup under another app to miss")
	}

	user, err = repo.GetByEmail("app_b", "sam@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user != nil {
		t.Error("expected email lookup under another app to miss")
	}

	user, err = repo.GetByID("app_a", "usr_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user == nil {
		t.Fatal("expected lookup under owning app to hit")
	}
}

func TestUserDeleteRevokesSessions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	revocations := NewSessionRevocationRepository(db)

	if err := repo.Create(testUser("usr_1", "app_a", "sam@example.com")); err != nil {
		t.Fatalf("create: %v", err)
	}

	issuedAt := time.Now().Unix()
	if err := repo.Delete("app_a", "usr_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	user, err := repo.GetByID("app_a", "usr_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user == nil || user.DeletedAt == nil {
		t.Fatal("expected soft-deleted user row")
	}

	revoked, err := revocations.IsRevoked("usr_1", issuedAt)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Error("expected sessions issued before deletion to be revoked")
	}
}

func TestSessionRevocationCutoff(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRevocationRepository(db)

	if err := repo.RevokeAllForSubject("usr_1", 1000); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	for _, tc := range []struct {
		issuedAt int64
		want     bool
	}{
		{999, true},
		{1000, true},
		{1001, false},
	} {
		got, err := repo.IsRevoked("usr_1", tc.issuedAt)
		if err != nil {
			t.Fatalf("is revoked: %v", err)
		}
		if got != tc.want {
			t.Errorf("issuedAt=%d: expected %v, got %v", tc.issuedAt, tc.want, got)
		}
	}

	// A later cutoff wins; an earlier one never rolls it back
	if err := repo.RevokeAllForSubject("usr_1", 2000); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := repo.RevokeAllForSubject("usr_1", 500); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := repo.IsRevoked("usr_1", 1500)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Error("expected the later cutoff to stick")
	}

	// Pruning clears rows strictly older than the cutoff
	if _, err := repo.PruneOlderThan(3000); err != nil {
		t.Fatalf("prune: %v", err)
	}
	revoked, err = repo.IsRevoked("usr_1", 100)
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Error("expected pruned revocation to be gone")
	}
}

func TestAdminDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	adminRepo := NewAdminRepository(db)
	appRepo := NewAppRepository(db)
	userRepo := NewUserRepository(db)
	keyRepo := NewAPIKeyRepository(db)

	now := time.Now().Unix()
	if err := adminRepo.Create(&models.Admin{
		ID: "adm_1", Email: "owner@example.com", PasswordHash: "hash",
		Active: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if err := appRepo.Create(&models.App{
		ID: "app_1", AdminID: "adm_1", Name: "shop1", Active: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create app: %v", err)
	}
	if err := keyRepo.Rotate(&models.APIKey{AppID: "app_1", KeyHash: "hash1", KeyPrefix: "tak_aaaa..."}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := userRepo.Create(testUser("usr_1", "app_1", "sam@example.com")); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := adminRepo.Delete("adm_1"); err != nil {
		t.Fatalf("delete admin: %v", err)
	}

	admin, err := adminRepo.GetByID("adm_1")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if admin == nil || admin.DeletedAt == nil {
		t.Error("expected admin soft-deleted")
	}

	app, err := appRepo.GetByID("app_1")
	if err != nil {
		t.Fatalf("get app: %v", err)
	}
	if app == nil || app.DeletedAt == nil || app.Active {
		t.Error("expected app soft-deleted and inactive")
	}

	key, err := keyRepo.GetActiveByHash("hash1")
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if key != nil {
		t.Error("expected api key revoked by cascade")
	}

	user, err := userRepo.GetByID("app_1", "usr_1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user == nil || user.DeletedAt == nil {
		t.Error("expected user soft-deleted by cascade")
	}

	revocations := NewSessionRevocationRepository(db)
	for _, subject := range []string{"adm_1", "usr_1"} {
		revoked, err := revocations.IsRevoked(subject, now)
		if err != nil {
			t.Fatalf("is revoked: %v", err)
		}
		if !revoked {
			t.Errorf("expected sessions for %s revoked by cascade", subject)
		}
	}
}
