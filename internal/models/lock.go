package models

// LockInfo is the ownership metadata carried by a lock marker file,
// serialized as "PC=<host>; USER=<user>; TS=<timestamp>".
type LockInfo struct {
	Host      string `json:"host"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"` // "2006-01-02 15:04:05", local time of the creating instance
}

// AuditEvent is one entry of the mutation audit trail kept in the local
// registry database.
type AuditEvent struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts"`
	Action  string `json:"action"`
	AttoID  int64  `json:"atto_id,omitempty"`
	Actor   string `json:"actor"`
	Details string `json:"details,omitempty"` // JSON-encoded free-form detail
}

// RefreshSession is an issued admin refresh token, persisted in the
// instance-local state store.
type RefreshSession struct {
	ID        string `json:"id"`         // session UUID, doubles as the refresh token
	ExpiresAt int64  `json:"expires_at"` // unix seconds
}
