package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "tenauth/internal/api/context"
	"tenauth/internal/api/middleware"
)

func principalFrom(r *http.Request) *middleware.Principal {
	principal, _ := r.Context().Value(apiContext.Principal).(*middleware.Principal)
	return principal
}

func paramFrom(r *http.Request, name string) string {
	params, ok := r.Context().Value(apiContext.Params).(httprouter.Params)
	if !ok {
		return ""
	}
	return params.ByName(name)
}
