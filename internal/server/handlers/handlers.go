// Package handlers implements the JSON HTTP API over the registry and the
// synchronization subsystem.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/compendio/pkg/api"
)

// contextKey is the private type for request context values.
type contextKey string

// AdminKey marks a request authenticated as administrator.
const AdminKey contextKey = "admin"

// actorFromContext returns the authenticated principal the auth middleware
// stored on the request, falling back to the instance operator for callers
// outside the authenticated chain.
func actorFromContext(ctx context.Context, fallback string) string {
	if principal, ok := ctx.Value(AdminKey).(string); ok && principal != "" {
		return principal
	}
	return fallback
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", msg)
	}
	sendJSON(w, status, api.ErrorResponse{Error: msg})
}
