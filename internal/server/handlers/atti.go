package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/compendio/internal/localstate"
	"github.com/iudanet/compendio/internal/locking"
	"github.com/iudanet/compendio/internal/mirror"
	"github.com/iudanet/compendio/internal/models"
	"github.com/iudanet/compendio/internal/netshare"
	"github.com/iudanet/compendio/internal/policy"
	"github.com/iudanet/compendio/internal/registry"
	"github.com/iudanet/compendio/pkg/api"
)

// maxPDFSize caps an uploaded attachment at 64 MiB.
const maxPDFSize = 64 << 20

// AttiHandler serves the act CRUD endpoints. Every mutation goes through
// the write-access guard first and is written through to the spreadsheet
// mirror and the audit trail afterwards.
type AttiHandler struct {
	logger *slog.Logger
	store  *registry.Store
	mirror *mirror.Mirror
	guard  *policy.Guard
	locks  *locking.Manager
	state  *localstate.Store
	local  netshare.Layout
	actor  string
}

// NewAttiHandler creates the handler. actor identifies this instance's
// operator in the audit trail.
func NewAttiHandler(
	logger *slog.Logger,
	store *registry.Store,
	mir *mirror.Mirror,
	guard *policy.Guard,
	locks *locking.Manager,
	state *localstate.Store,
	local netshare.Layout,
	actor string,
) *AttiHandler {
	return &AttiHandler{
		logger: logger,
		store:  store,
		mirror: mir,
		guard:  guard,
		locks:  locks,
		state:  state,
		local:  local,
		actor:  actor,
	}
}

// List handles GET /api/v1/atti. Filter fields come from query parameters;
// empty ones are ignored.
func (h *AttiHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := registry.SearchFilter{
		Anno:      q.Get("anno"),
		Numero:    q.Get("numero"),
		Tipologia: q.Get("tipologia"),
		Fonte:     q.Get("fonte"),
	}

	atti, err := h.store.Search(r.Context(), filter)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "search failed")
		return
	}

	resp := api.AttiResponse{Atti: make([]api.Atto, 0, len(atti))}
	for _, a := range atti {
		resp.Atti = append(resp.Atti, toAPI(a))
	}
	sendJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/atti/{id}.
func (h *AttiHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	a, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrAttoNotFound) {
			sendError(w, h.logger, http.StatusNotFound, "atto not found")
			return
		}
		sendError(w, h.logger, http.StatusInternalServerError, "cannot load atto")
		return
	}
	sendJSON(w, http.StatusOK, toAPI(a))
}

// Create handles POST /api/v1/atti.
func (h *AttiHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.checkWritable(w) {
		return
	}

	var req api.Atto
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	a := fromAPI(&req)
	if a.Anno == "" || a.Numero == "" || a.Oggetto == "" {
		sendError(w, h.logger, http.StatusBadRequest, "anno, numero and oggetto are required")
		return
	}

	id, err := h.store.Create(r.Context(), a)
	if err != nil {
		h.logger.Error("create failed", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot create atto")
		return
	}

	h.exportMirror(r.Context())
	h.audit(r.Context(), "create", id, a.Row())
	h.markEdited()

	sendJSON(w, http.StatusCreated, toAPI(a))
}

// Update handles PUT /api/v1/atti/{id}. The record edit lock is taken for
// the duration of the write; a contended lock degrades the request to 409
// so the caller can show the record read-only.
func (h *AttiHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	if !h.checkWritable(w) {
		return
	}

	if !h.locks.AcquireRecord(id) {
		sendError(w, h.logger, http.StatusConflict, "record is being edited by another user")
		return
	}
	defer h.locks.ReleaseRecord(id)

	var req api.Atto
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	a := fromAPI(&req)
	a.ID = id

	if err := h.store.Update(r.Context(), a); err != nil {
		if errors.Is(err, registry.ErrAttoNotFound) {
			sendError(w, h.logger, http.StatusNotFound, "atto not found")
			return
		}
		h.logger.Error("update failed", "atto_id", id, "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot update atto")
		return
	}

	if err := h.mirror.UpdateRow(a); err != nil {
		h.logger.Warn("mirror write-through failed", "atto_id", id, "error", err)
	}
	h.audit(r.Context(), "update", id, a.Row())
	h.markEdited()

	sendJSON(w, http.StatusOK, toAPI(a))
}

// Delete handles DELETE /api/v1/atti/{id}. The attached PDF, when present,
// is removed from the local copy along with the row.
func (h *AttiHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	if !h.checkWritable(w) {
		return
	}

	a, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrAttoNotFound) {
			sendError(w, h.logger, http.StatusNotFound, "atto not found")
			return
		}
		sendError(w, h.logger, http.StatusInternalServerError, "cannot load atto")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete failed", "atto_id", id, "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot delete atto")
		return
	}

	if a.FilePDF != "" {
		pdfPath := h.local.PDFFile(a.FilePDF)
		if err := os.Remove(pdfPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("cannot remove attached pdf", "path", pdfPath, "error", err)
		}
	}

	h.exportMirror(r.Context())
	h.audit(r.Context(), "delete", id, a.Row())
	h.markEdited()

	w.WriteHeader(http.StatusNoContent)
}

// Lock handles POST /api/v1/atti/{id}/lock: take the edit lock before
// opening a long-lived edit form.
func (h *AttiHandler) Lock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	if !h.locks.AcquireRecord(id) {
		sendError(w, h.logger, http.StatusConflict, "record is being edited by another user")
		return
	}
	sendJSON(w, http.StatusOK, api.SyncResponse{OK: true})
}

// Unlock handles DELETE /api/v1/atti/{id}/lock.
func (h *AttiHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	h.locks.ReleaseRecord(id)
	w.WriteHeader(http.StatusNoContent)
}

// UploadPDF handles PUT /api/v1/atti/{id}/pdf. The body is the raw PDF;
// the attachment is stored in the local pdf directory under a name derived
// from the record id and the act is updated to reference it. The record
// edit lock covers the write, same as Update.
func (h *AttiHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	if !h.checkWritable(w) {
		return
	}

	if !h.locks.AcquireRecord(id) {
		sendError(w, h.logger, http.StatusConflict, "record is being edited by another user")
		return
	}
	defer h.locks.ReleaseRecord(id)

	a, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrAttoNotFound) {
			sendError(w, h.logger, http.StatusNotFound, "atto not found")
			return
		}
		sendError(w, h.logger, http.StatusInternalServerError, "cannot load atto")
		return
	}

	if err := os.MkdirAll(h.local.PDFDir(), 0o755); err != nil {
		h.logger.Error("cannot create pdf directory", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot store pdf")
		return
	}

	name := fmt.Sprintf("atto_%d.pdf", id)
	f, err := os.Create(h.local.PDFFile(name))
	if err != nil {
		h.logger.Error("cannot create pdf file", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot store pdf")
		return
	}
	if _, err := io.Copy(f, http.MaxBytesReader(w, r.Body, maxPDFSize)); err != nil {
		f.Close()
		os.Remove(f.Name())
		sendError(w, h.logger, http.StatusBadRequest, "cannot read pdf body")
		return
	}
	if err := f.Close(); err != nil {
		sendError(w, h.logger, http.StatusInternalServerError, "cannot store pdf")
		return
	}

	a.FilePDF = name
	if err := h.store.Update(r.Context(), a); err != nil {
		h.logger.Error("cannot record pdf attachment", "atto_id", id, "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot update atto")
		return
	}

	if err := h.mirror.UpdateRow(a); err != nil {
		h.logger.Warn("mirror write-through failed", "atto_id", id, "error", err)
	}
	h.audit(r.Context(), "attach_pdf", id, map[string]string{"filepdf": name})
	h.markEdited()

	sendJSON(w, http.StatusOK, toAPI(a))
}

// DownloadPDF handles GET /api/v1/atti/{id}/pdf, serving the attachment
// from the local copy.
func (h *AttiHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	a, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrAttoNotFound) {
			sendError(w, h.logger, http.StatusNotFound, "atto not found")
			return
		}
		sendError(w, h.logger, http.StatusInternalServerError, "cannot load atto")
		return
	}
	if a.FilePDF == "" {
		sendError(w, h.logger, http.StatusNotFound, "atto has no attached pdf")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, h.local.PDFFile(a.FilePDF))
}

// FilterValues handles GET /api/v1/filters/{column}: the distinct values
// offered in search dropdowns.
func (h *AttiHandler) FilterValues(w http.ResponseWriter, r *http.Request) {
	column := r.PathValue("column")
	values, err := h.store.DistinctValues(r.Context(), column)
	if err != nil {
		sendError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, api.FilterValuesResponse{Column: column, Values: values})
}

// PDFDiagnostics handles GET /api/v1/diagnostics/pdf. It cross-checks the
// registry against the local pdf directory: acts without an attachment,
// referenced files that are gone, and leftover files no act references.
func (h *AttiHandler) PDFDiagnostics(w http.ResponseWriter, r *http.Request) {
	atti, err := h.store.Search(r.Context(), registry.SearchFilter{})
	if err != nil {
		h.logger.Error("diagnostics failed", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot list atti")
		return
	}

	resp := api.PDFDiagnosticsResponse{}
	referenced := make(map[string]bool)
	for _, a := range atti {
		if a.FilePDF == "" {
			resp.WithoutPDF++
			continue
		}
		referenced[a.FilePDF] = true
		if _, err := os.Stat(h.local.PDFFile(a.FilePDF)); err != nil {
			resp.MissingFiles = append(resp.MissingFiles, a.FilePDF)
		}
	}

	entries, err := os.ReadDir(h.local.PDFDir())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("cannot read pdf directory", "error", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		if !referenced[entry.Name()] {
			resp.OrphanFiles = append(resp.OrphanFiles, entry.Name())
		}
	}

	sendJSON(w, http.StatusOK, resp)
}

// Audit handles GET /api/v1/audit.
func (h *AttiHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.store.ListEvents(r.Context(), limit)
	if err != nil {
		h.logger.Error("cannot list audit events", "error", err)
		sendError(w, h.logger, http.StatusInternalServerError, "cannot list audit events")
		return
	}

	resp := api.AuditResponse{Events: make([]api.AuditEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, api.AuditEvent{
			ID:      e.ID,
			TS:      e.TS,
			Action:  e.Action,
			AttoID:  e.AttoID,
			Actor:   e.Actor,
			Details: e.Details,
		})
	}
	sendJSON(w, http.StatusOK, resp)
}

// checkWritable evaluates the write-access policy and answers 409 when
// another instance holds the global lock.
func (h *AttiHandler) checkWritable(w http.ResponseWriter) bool {
	if d := h.guard.Check(); !d.Writable() {
		sendError(w, h.logger, http.StatusConflict,
			"dataset is locked by another session, read-only access")
		return false
	}
	return true
}

func (h *AttiHandler) exportMirror(ctx context.Context) {
	atti, err := h.store.Search(ctx, registry.SearchFilter{})
	if err != nil {
		h.logger.Warn("mirror export skipped, cannot list atti", "error", err)
		return
	}
	if err := h.mirror.Export(atti); err != nil {
		h.logger.Warn("mirror export failed", "error", err)
	}
}

func (h *AttiHandler) audit(ctx context.Context, action string, attoID int64, details any) {
	if err := h.store.LogEvent(ctx, action, attoID, actorFromContext(ctx, h.actor), details); err != nil {
		h.logger.Warn("cannot write audit event", "action", action, "error", err)
	}
}

func (h *AttiHandler) markEdited() {
	if err := h.state.SaveLastLocalEdit(time.Now()); err != nil {
		h.logger.Warn("cannot record edit time", "error", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(w, logger, http.StatusBadRequest, "invalid atto id")
		return 0, false
	}
	return id, true
}

func toAPI(a *models.Atto) api.Atto {
	return api.Atto{
		ID:          a.ID,
		Anno:        a.Anno,
		Numero:      a.Numero,
		Tipologia:   a.Tipologia,
		Categoria:   a.Categoria,
		Argomento:   a.Argomento,
		Oggetto:     a.Oggetto,
		Fonte:       a.Fonte,
		FilePDF:     a.FilePDF,
		Descrizione: a.Descrizione,
		Stato:       a.Stato,
		Note:        a.Note,
	}
}

func fromAPI(a *api.Atto) *models.Atto {
	return &models.Atto{
		ID:          a.ID,
		Anno:        a.Anno,
		Numero:      a.Numero,
		Tipologia:   a.Tipologia,
		Categoria:   a.Categoria,
		Argomento:   a.Argomento,
		Oggetto:     a.Oggetto,
		Fonte:       a.Fonte,
		FilePDF:     a.FilePDF,
		Descrizione: a.Descrizione,
		Stato:       a.Stato,
		Note:        a.Note,
	}
}
