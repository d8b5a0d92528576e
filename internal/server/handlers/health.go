package handlers

import "net/http"

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
