package api

// Atto is the wire representation of one act.
type Atto struct {
	ID          int64  `json:"id,omitempty"`
	Anno        string `json:"anno"`
	Numero      string `json:"numero"`
	Tipologia   string `json:"tipologia"`
	Categoria   string `json:"categoria"`
	Argomento   string `json:"argomento"`
	Oggetto     string `json:"oggetto"`
	Fonte       string `json:"fonte"`
	FilePDF     string `json:"filepdf"`
	Descrizione string `json:"descrizione"`
	Stato       string `json:"stato"`
	Note        string `json:"note"`
}

// AttiResponse is the result of a search.
type AttiResponse struct {
	Atti []Atto `json:"atti"`
}

// Conflict is one queued divergence, addressed by its current index.
type Conflict struct {
	Index   int               `json:"index"`
	Key     string            `json:"key"`
	Local   map[string]string `json:"local"`
	Network map[string]string `json:"network"`
}

// ConflictsResponse lists the pending conflicts. Indices shift after every
// resolution; clients must re-fetch before resolving again.
type ConflictsResponse struct {
	Conflicts []Conflict `json:"conflicts"`
}

// ResolveRequest picks a resolution for one conflict.
// Choice is "keep-local", "keep-network" or "merge".
type ResolveRequest struct {
	Choice string `json:"choice"`
}

// FilterValuesResponse lists the distinct values of one filterable column.
type FilterValuesResponse struct {
	Column string   `json:"column"`
	Values []string `json:"values"`
}

// AuditEvent is one entry of the mutation audit trail.
type AuditEvent struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts"`
	Action  string `json:"action"`
	AttoID  int64  `json:"atto_id,omitempty"`
	Actor   string `json:"actor"`
	Details string `json:"details,omitempty"`
}

// PDFDiagnosticsResponse reports attachment problems: acts with no PDF at
// all, referenced files missing from the pdf directory, and files nothing
// references.
type PDFDiagnosticsResponse struct {
	WithoutPDF   int      `json:"without_pdf"`
	MissingFiles []string `json:"missing_files,omitempty"`
	OrphanFiles  []string `json:"orphan_files,omitempty"`
}

// AuditResponse lists audit events, newest first.
type AuditResponse struct {
	Events []AuditEvent `json:"events"`
}

// SyncResponse reports whether a pull or push completed fully.
type SyncResponse struct {
	OK bool `json:"ok"`
}

// LockOwner is the ownership metadata of the current global lock marker.
type LockOwner struct {
	Host      string `json:"host"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse summarizes the instance's view of the shared dataset.
type StatusResponse struct {
	Online           bool       `json:"online"`
	WriteAccess      string     `json:"write_access"` // allow, allow-local-only or deny
	HoldsGlobalLock  bool       `json:"holds_global_lock"`
	LockOwner        *LockOwner `json:"lock_owner,omitempty"`
	PendingConflicts int        `json:"pending_conflicts"`
	TotalAtti        int        `json:"total_atti"`
	AttiWithoutPDF   int        `json:"atti_without_pdf"`
	IntegrityIssues  []string   `json:"integrity_issues,omitempty"`
}
