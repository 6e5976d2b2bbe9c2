package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	_ "github.com/mattn/go-sqlite3"

	"tenauth/internal/api/handlers"
	"tenauth/internal/api/middleware"
	"tenauth/internal/platform/audit"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/config"
	"tenauth/internal/platform/repositories"
)

func setupRouter(t *testing.T) *httprouter.Router {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	sessionsCfg := config.SessionsConfig{
		Secret:   "test-secret",
		Issuer:   "tenauth",
		AdminTTL: time.Hour,
		UserTTL:  time.Hour,
	}
	rateCfg := config.RateLimitConfig{
		LoginPerMinute:    1000,
		APIReadPerMinute:  1000,
		APIWritePerMinute: 1000,
	}

	adminRepo := repositories.NewAdminRepository(db)
	appRepo := repositories.NewAppRepository(db)
	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewAPIKeyRepository(db)
	revocationRepo := repositories.NewSessionRevocationRepository(db)

	tokenSvc := auth.NewTokenService(sessionsCfg)
	auditLog := audit.NewLogger(db)

	return NewRouter(&Dependencies{
		AdminHandler:        handlers.NewAdminHandler(adminRepo, revocationRepo, tokenSvc, auditLog),
		AuthHandler:         handlers.NewAuthHandler(userRepo, revocationRepo, tokenSvc, auditLog),
		AppHandler:          handlers.NewAppHandler(appRepo, auditLog),
		APIKeyHandler:       handlers.NewAPIKeyHandler(appRepo, keyRepo, auditLog),
		UserHandler:         handlers.NewUserHandler(appRepo, userRepo, auditLog),
		AuditHandler:        handlers.NewAuditHandler(appRepo, auditLog),
		HealthHandler:       handlers.NewHealthHandler(db),
		MetricsHandler:      handlers.NewMetricsHandler(),
		APIKeyMiddleware:    middleware.NewAPIKeyMiddleware(keyRepo, appRepo),
		AuthMiddleware:      middleware.NewAuthMiddleware(tokenSvc, revocationRepo),
		PrincipalMiddleware: middleware.NewPrincipalMiddleware(adminRepo, userRepo),
		RateLimiter:         middleware.NewRateLimiter(),
		RateLimits:          rateCfg,
	})
}

type header struct {
	key   string
	value string
}

func doJSON(t *testing.T, router *httprouter.Router, method, path string, body interface{}, headers ...header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, h := range headers {
		req.Header.Set(h.key, h.value)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func bearer(token string) header {
	return header{"Authorization", "Bearer " + token}
}

func apiKey(key string) header {
	return header{"X-API-Key", key}
}

func signupAdmin(t *testing.T, router *httprouter.Router, email string) string {
	rr := doJSON(t, router, "POST", "/api/v1/admin/signup", map[string]string{
		"email":     email,
		"password":  "correct-horse",
		"full_name": "Operator",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("admin signup: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rr, &resp)
	return resp.AccessToken
}

func createApp(t *testing.T, router *httprouter.Router, adminToken, name string) string {
	rr := doJSON(t, router, "POST", "/api/v1/apps", map[string]string{"name": name}, bearer(adminToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create app: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var app struct {
		ID string `json:"id"`
	}
	decode(t, rr, &app)
	return app.ID
}

func generateKey(t *testing.T, router *httprouter.Router, adminToken, appID string) string {
	rr := doJSON(t, router, "POST", "/api/v1/apps/"+appID+"/key", nil, bearer(adminToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate key: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Key string `json:"key"`
	}
	decode(t, rr, &resp)
	return resp.Key
}

func TestKeyRotationScenario(t *testing.T) {
	router := setupRouter(t)

	adminToken := signupAdmin(t, router, "owner@example.com")
	appID := createApp(t, router, adminToken, "shop1")
	k1 := generateKey(t, router, adminToken, appID)

	// User signs up under shop1 with k1
	rr := doJSON(t, router, "POST", "/api/v1/auth/signup", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(k1))
	if rr.Code != http.StatusCreated {
		t.Fatalf("user signup: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	// Rotation: k2 replaces k1 atomically
	k2 := generateKey(t, router, adminToken, appID)

	rr = doJSON(t, router, "POST", "/api/v1/auth/login", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(k1))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("old key: expected 401, got %d", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/api/v1/auth/login", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(k2))
	if rr.Code != http.StatusOK {
		t.Errorf("new key: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Explicit revoke, then the key fails on any endpoint
	rr = doJSON(t, router, "DELETE", "/api/v1/apps/"+appID+"/key", nil, bearer(adminToken))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", rr.Code)
	}
	rr = doJSON(t, router, "POST", "/api/v1/auth/login", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(k2))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("revoked key: expected 401, got %d", rr.Code)
	}
}

func TestCrossTenantSessionRejected(t *testing.T) {
	router := setupRouter(t)

	adminToken := signupAdmin(t, router, "owner@example.com")
	appA := createApp(t, router, adminToken, "app-a")
	appB := createApp(t, router, adminToken, "app-b")
	keyA := generateKey(t, router, adminToken, appA)
	keyB := generateKey(t, router, adminToken, appB)

	rr := doJSON(t, router, "POST", "/api/v1/auth/signup", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(keyA))
	if rr.Code != http.StatusCreated {
		t.Fatalf("user signup: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var session struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rr, &session)

	// Valid session from app A with app B's key is Forbidden, never a
	// cross-tenant success.
	rr = doJSON(t, router, "GET", "/api/v1/auth/me", nil, apiKey(keyB), bearer(session.AccessToken))
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}

	// The matching pairing works
	rr = doJSON(t, router, "GET", "/api/v1/auth/me", nil, apiKey(keyA), bearer(session.AccessToken))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestEmailUniquePerApp(t *testing.T) {
	router := setupRouter(t)

	adminToken := signupAdmin(t, router, "owner@example.com")
	appA := createApp(t, router, adminToken, "app-a")
	appB := createApp(t, router, adminToken, "app-b")
	keyA := generateKey(t, router, adminToken, appA)
	keyB := generateKey(t, router, adminToken, appB)

	body := map[string]string{"email": "sam@example.com", "password": "hunter22-long"}

	rr := doJSON(t, router, "POST", "/api/v1/auth/signup", body, apiKey(keyA))
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, router, "POST", "/api/v1/auth/signup", body, apiKey(keyA))
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate in same app: expected 409, got %d", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/api/v1/auth/signup", body, apiKey(keyB))
	if rr.Code != http.StatusCreated {
		t.Errorf("same email in other app: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestKeyGenerationForUnownedAppForbidden(t *testing.T) {
	router := setupRouter(t)

	ownerToken := signupAdmin(t, router, "owner@example.com")
	otherToken := signupAdmin(t, router, "other@example.com")
	appID := createApp(t, router, ownerToken, "shop1")

	// Not NotFound: existence must not leak
	rr := doJSON(t, router, "POST", "/api/v1/apps/"+appID+"/key", nil, bearer(otherToken))
	if rr.Code != http.StatusForbidden {
		t.Errorf("unowned app: expected 403, got %d", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/api/v1/apps/app_does_not_exist/key", nil, bearer(otherToken))
	if rr.Code != http.StatusForbidden {
		t.Errorf("unknown app: expected 403, got %d", rr.Code)
	}
}

func TestInactiveAppLocksOutSignupAndLogin(t *testing.T) {
	router := setupRouter(t)

	adminToken := signupAdmin(t, router, "owner@example.com")
	appID := createApp(t, router, adminToken, "shop1")
	key := generateKey(t, router, adminToken, appID)

	rr := doJSON(t, router, "POST", "/api/v1/auth/signup", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(key))
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", rr.Code)
	}

	active := false
	rr = doJSON(t, router, "PATCH", "/api/v1/apps/"+appID, map[string]interface{}{"active": &active}, bearer(adminToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Both signup and login die at the API key chokepoint
	rr = doJSON(t, router, "POST", "/api/v1/auth/signup", map[string]string{
		"email":    "new@example.com",
		"password": "hunter22-long",
	}, apiKey(key))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("signup under inactive app: expected 401, got %d", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/api/v1/auth/login", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(key))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("login under inactive app: expected 401, got %d", rr.Code)
	}
}

func TestPasswordChangeInvalidatesPriorSessions(t *testing.T) {
	router := setupRouter(t)

	adminToken := signupAdmin(t, router, "owner@example.com")
	appID := createApp(t, router, adminToken, "shop1")
	key := generateKey(t, router, adminToken, appID)

	rr := doJSON(t, router, "POST", "/api/v1/auth/signup", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(key))
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", rr.Code)
	}
	var session struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rr, &session)

	rr = doJSON(t, router, "POST", "/api/v1/auth/password", map[string]string{
		"current_password": "hunter22-long",
		"new_password":     "even-longer-horse",
	}, apiKey(key), bearer(session.AccessToken))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("password change: expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, router, "GET", "/api/v1/auth/me", nil, apiKey(key), bearer(session.AccessToken))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("old session after password change: expected 401, got %d", rr.Code)
	}
}

func TestAdminUserManagementScopedToOwnedApps(t *testing.T) {
	router := setupRouter(t)

	ownerToken := signupAdmin(t, router, "owner@example.com")
	otherToken := signupAdmin(t, router, "other@example.com")
	appID := createApp(t, router, ownerToken, "shop1")
	key := generateKey(t, router, ownerToken, appID)

	rr := doJSON(t, router, "POST", "/api/v1/auth/signup", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter22-long",
	}, apiKey(key))
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", rr.Code)
	}
	var session struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, rr, &session)

	rr = doJSON(t, router, "GET", "/api/v1/apps/"+appID+"/users", nil, bearer(ownerToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", rr.Code)
	}

	rr = doJSON(t, router, "GET", "/api/v1/apps/"+appID+"/users", nil, bearer(otherToken))
	if rr.Code != http.StatusForbidden {
		t.Errorf("list users of unowned app: expected 403, got %d", rr.Code)
	}

	verified := true
	rr = doJSON(t, router, "PATCH", "/api/v1/apps/"+appID+"/users/"+session.User.ID,
		map[string]interface{}{"verified": &verified}, bearer(ownerToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("verify user: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated struct {
		Verified bool `json:"verified"`
	}
	decode(t, rr, &updated)
	if !updated.Verified {
		t.Error("user should be verified after update")
	}

	rr = doJSON(t, router, "DELETE", "/api/v1/apps/"+appID+"/users/"+session.User.ID, nil, bearer(otherToken))
	if rr.Code != http.StatusForbidden {
		t.Errorf("delete user of unowned app: expected 403, got %d", rr.Code)
	}

	rr = doJSON(t, router, "DELETE", "/api/v1/apps/"+appID+"/users/"+session.User.ID, nil, bearer(ownerToken))
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete user: expected 204, got %d", rr.Code)
	}
}
