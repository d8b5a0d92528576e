package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/compendio/internal/conflicts"
	"github.com/iudanet/compendio/internal/locking"
	"github.com/iudanet/compendio/internal/netshare"
	"github.com/iudanet/compendio/internal/registry"
	"github.com/iudanet/compendio/internal/syncer"
	"github.com/iudanet/compendio/pkg/api"
)

// SyncHandler serves manual pull/push and the status report.
type SyncHandler struct {
	logger *slog.Logger
	sync   *syncer.Syncer
	store  *registry.Store
	probe  *netshare.Probe
	locks  *locking.Manager
	ledger *conflicts.Ledger
}

// NewSyncHandler creates the handler.
func NewSyncHandler(
	logger *slog.Logger,
	sync *syncer.Syncer,
	store *registry.Store,
	probe *netshare.Probe,
	locks *locking.Manager,
	ledger *conflicts.Ledger,
) *SyncHandler {
	return &SyncHandler{
		logger: logger,
		sync:   sync,
		store:  store,
		probe:  probe,
		locks:  locks,
		ledger: ledger,
	}
}

// Pull handles POST /api/v1/sync/pull. The pull replaces the local
// database file underneath the open registry connection, so the connection
// is reopened afterwards.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ok := h.sync.PullFromNetwork(r.Context())
	if ok {
		if err := h.store.Reopen(r.Context()); err != nil {
			h.logger.Error("cannot reopen registry after pull", "error", err)
			sendError(w, h.logger, http.StatusInternalServerError, "registry reopen failed")
			return
		}
	}
	sendJSON(w, http.StatusOK, api.SyncResponse{OK: ok})
}

// Push handles POST /api/v1/sync/push. The WAL is checkpointed first so
// the whole-file copy of the database is complete.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Checkpoint(r.Context()); err != nil {
		h.logger.Error("cannot checkpoint registry before push", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "registry checkpoint failed")
		return
	}
	ok := h.sync.PushToNetwork(r.Context())
	sendJSON(w, http.StatusOK, api.SyncResponse{OK: ok})
}

// Status handles GET /api/v1/status. The write-access field reflects the
// current state without acquiring anything.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := api.StatusResponse{
		Online:           h.probe.Online(),
		HoldsGlobalLock:  h.locks.HoldsGlobal(),
		PendingConflicts: len(h.ledger.Load()),
	}

	switch {
	case resp.HoldsGlobalLock:
		resp.WriteAccess = "allow"
	case !resp.Online:
		resp.WriteAccess = "allow-local-only"
	default:
		if info := h.locks.GlobalLockInfo(); info != nil {
			resp.WriteAccess = "deny"
			resp.LockOwner = &api.LockOwner{
				Host:      info.Host,
				User:      info.User,
				Timestamp: info.Timestamp,
			}
		} else {
			resp.WriteAccess = "allow"
		}
	}

	total, withoutPDF, err := h.store.Counts(r.Context())
	if err != nil {
		h.logger.Warn("cannot count atti for status", "error", err)
	} else {
		resp.TotalAtti = total
		resp.AttiWithoutPDF = withoutPDF
	}

	issues, err := h.store.IntegrityIssues(r.Context())
	if err != nil {
		h.logger.Warn("cannot run integrity checks", "error", err)
	} else {
		resp.IntegrityIssues = issues
	}

	sendJSON(w, http.StatusOK, resp)
}
