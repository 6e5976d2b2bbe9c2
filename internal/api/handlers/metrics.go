package handlers

import (
	"fmt"
	"net/http"
)

// MetricsHandler exposes a minimal plaintext exposition endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "# HELP tenauth_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE tenauth_up gauge\n")
	fmt.Fprintf(w, "tenauth_up 1\n")
}
