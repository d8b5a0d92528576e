package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/compendio/internal/conflicts"
	"github.com/iudanet/compendio/internal/localstate"
	"github.com/iudanet/compendio/internal/policy"
	"github.com/iudanet/compendio/internal/registry"
	"github.com/iudanet/compendio/pkg/api"
)

// ConflictsHandler serves the pending-conflict queue. A resolution rewrites
// the registry, so it is a mutation like any other: it runs through the
// write-access guard, lands in the audit trail and moves the edit watermark
// so the next pull diffs it instead of silently overwriting it.
type ConflictsHandler struct {
	logger *slog.Logger
	ledger *conflicts.Ledger
	store  *registry.Store
	guard  *policy.Guard
	state  *localstate.Store
	actor  string
}

// NewConflictsHandler creates the handler.
func NewConflictsHandler(
	logger *slog.Logger,
	ledger *conflicts.Ledger,
	store *registry.Store,
	guard *policy.Guard,
	state *localstate.Store,
	actor string,
) *ConflictsHandler {
	return &ConflictsHandler{
		logger: logger,
		ledger: ledger,
		store:  store,
		guard:  guard,
		state:  state,
		actor:  actor,
	}
}

// List handles GET /api/v1/conflicts. Entries are addressed by their
// current index, which shifts after every resolution.
func (h *ConflictsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.ledger.Load()

	resp := api.ConflictsResponse{Conflicts: make([]api.Conflict, 0, len(entries))}
	for i, e := range entries {
		resp.Conflicts = append(resp.Conflicts, api.Conflict{
			Index:   i,
			Key:     e.Key,
			Local:   e.Local,
			Network: e.Network,
		})
	}
	sendJSON(w, http.StatusOK, resp)
}

// Resolve handles POST /api/v1/conflicts/{index}/resolve.
func (h *ConflictsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid conflict index")
		return
	}

	var req api.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if d := h.guard.Check(); !d.Writable() {
		sendError(w, h.logger, http.StatusConflict,
			"dataset is locked by another session, read-only access")
		return
	}

	// The key rides along in the audit entry; capture it before the
	// resolution shifts the indices.
	var key string
	if entries := h.ledger.Load(); index >= 0 && index < len(entries) {
		key = entries[index].Key
	}

	err = h.ledger.Resolve(r.Context(), h.store, index, req.Choice)
	switch {
	case err == nil:
		h.audit(r.Context(), key, req.Choice)
		h.markEdited()
		sendJSON(w, http.StatusOK, api.SyncResponse{OK: true})
	case errors.Is(err, conflicts.ErrMergeNotImplemented):
		sendError(w, h.logger, http.StatusNotImplemented, "manual merge is not implemented")
	case errors.Is(err, conflicts.ErrInvalidIndex):
		sendError(w, h.logger, http.StatusNotFound, err.Error())
	case errors.Is(err, conflicts.ErrInvalidChoice):
		sendError(w, h.logger, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("resolution failed", "index", index, "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "resolution failed")
	}
}

func (h *ConflictsHandler) audit(ctx context.Context, key, choice string) {
	details := map[string]string{"key": key, "choice": choice}
	if err := h.store.LogEvent(ctx, "resolve_conflict", 0, actorFromContext(ctx, h.actor), details); err != nil {
		h.logger.Warn("cannot write audit event", "action", "resolve_conflict", "error", err)
	}
}

func (h *ConflictsHandler) markEdited() {
	if err := h.state.SaveLastLocalEdit(time.Now()); err != nil {
		h.logger.Warn("cannot record edit time", "error", err)
	}
}
