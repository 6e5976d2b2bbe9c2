package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "tenauth/internal/api/context"
	"tenauth/internal/api/handlers"
	"tenauth/internal/api/middleware"
	"tenauth/internal/platform/config"
)

type Dependencies struct {
	AdminHandler   *handlers.AdminHandler
	AuthHandler    *handlers.AuthHandler
	AppHandler     *handlers.AppHandler
	APIKeyHandler  *handlers.APIKeyHandler
	UserHandler    *handlers.UserHandler
	AuditHandler   *handlers.AuditHandler
	HealthHandler  *handlers.HealthHandler
	MetricsHandler *handlers.MetricsHandler

	APIKeyMiddleware    *middleware.APIKeyMiddleware
	AuthMiddleware      *middleware.AuthMiddleware
	PrincipalMiddleware *middleware.PrincipalMiddleware
	RateLimiter         *middleware.RateLimiter
	RateLimits          config.RateLimitConfig
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	keyMid := deps.APIKeyMiddleware
	authMid := deps.AuthMiddleware
	prinMid := deps.PrincipalMiddleware
	loginLimit := deps.RateLimiter.Limit("login", deps.RateLimits.LoginPerMinute)
	readLimit := deps.RateLimiter.Limit("read", deps.RateLimits.APIReadPerMinute)
	writeLimit := deps.RateLimiter.Limit("write", deps.RateLimits.APIWritePerMinute)

	// Admin authentication (no API key; these are operator routes)
	router.POST("/api/v1/admin/signup", chain(deps.AdminHandler.Signup, loginLimit))
	router.POST("/api/v1/admin/login", chain(deps.AdminHandler.Login, loginLimit))

	// Admin account
	router.GET("/api/v1/admin/profile",
		chain(deps.AdminHandler.GetProfile, authMid.Handle, prinMid.RequireAdmin, readLimit))
	router.PATCH("/api/v1/admin/profile",
		chain(deps.AdminHandler.UpdateProfile, authMid.Handle, prinMid.RequireAdmin, writeLimit))
	router.POST("/api/v1/admin/password",
		chain(deps.AdminHandler.ChangePassword, authMid.Handle, prinMid.RequireAdmin, writeLimit))
	router.DELETE("/api/v1/admin/account",
		chain(deps.AdminHandler.DeleteAccount, authMid.Handle, prinMid.RequireAdmin, writeLimit))
	router.GET("/api/v1/admin/audit",
		chain(deps.AuditHandler.List, authMid.Handle, prinMid.RequireAdmin, readLimit))

	// App management (admin-owned)
	router.POST("/api/v1/apps",
		chain(deps.AppHandler.Create, authMid.Handle, prinMid.RequireAdmin, writeLimit))
	router.GET("/api/v1/apps",
		chain(deps.AppHandler.List, authMid.Handle, prinMid.RequireAdmin, readLimit))
	router.GET("/api/v1/apps/:app_id",
		chain(deps.AppHandler.Get, authMid.Handle, prinMid.RequireAdmin, readLimit))
	router.PATCH("/api/v1/apps/:app_id",
		chain(deps.AppHandler.Update, authMid.Handle, prinMid.RequireAdmin, writeLimit))
	router.DELETE("/api/v1/apps/:app_id",
		chain(deps.AppHandler.Delete, authMid.Handle, prinMid.RequireAdmin, writeLimit))

	// Key issuance and revocation
	router.POST("/api/v1/apps/:app_id/key",
		chain(deps.APIKeyHandler.Generate, authMid.Handle, prinMid.RequireAdmin, writeLimit))
	router.GET("/api/v1/apps/:app_id/key",
		chain(deps.APIKeyHandler.Get, authMid.Handle, prinMid.RequireAdmin, readLimit))
	router.DELETE("/api/v1/apps/:app_id/key",
		chain(deps.APIKeyHandler.Revoke, authMid.Handle, prinMid.RequireAdmin, writeLimit))

	// Admin view of an app's users
	router.GET("/api/v1/apps/:app_id/users",
		chain(deps.UserHandler.List, authMid.Handle, prinMid.RequireAdmin, readLimit))
	router.GET("/api/v1/apps/:app_id/users/:user_id",
		chain(deps.UserHandler.Get, authMid.Handle, prinMid.RequireAdmin, readLimit))
	router.PATCH("/api/v1/apps/:app_id/users/:user_id",
		chain(deps.UserHandler.Update, authMid.Handle, prinMid.RequireAdmin, writeLimit))
	router.DELETE("/api/v1/apps/:app_id/users/:user_id",
		chain(deps.UserHandler.Delete, authMid.Handle, prinMid.RequireAdmin, writeLimit))

	// End-user routes: API key resolves the app first, always. The key
	// middleware rejects inactive apps, so deactivating an app cuts off both
	// signups and logins at the same chokepoint.
	router.POST("/api/v1/auth/signup",
		chain(deps.AuthHandler.Signup, keyMid.Handle, loginLimit))
	router.POST("/api/v1/auth/login",
		chain(deps.AuthHandler.Login, keyMid.Handle, loginLimit))
	router.GET("/api/v1/auth/me",
		chain(deps.AuthHandler.Me, keyMid.Handle, authMid.Handle, prinMid.RequireUser, readLimit))
	router.PATCH("/api/v1/auth/me",
		chain(deps.AuthHandler.UpdateMe, keyMid.Handle, authMid.Handle, prinMid.RequireUser, writeLimit))
	router.POST("/api/v1/auth/password",
		chain(deps.AuthHandler.ChangePassword, keyMid.Handle, authMid.Handle, prinMid.RequireUser, writeLimit))
	router.DELETE("/api/v1/auth/me",
		chain(deps.AuthHandler.DeleteMe, keyMid.Handle, authMid.Handle, prinMid.RequireUser, writeLimit))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
