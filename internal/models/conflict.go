package models

// ConflictEntry records one divergence between the locally edited and the
// network-stored version of the same act, pending manual resolution.
// Both snapshots are preserved verbatim, surrogate ids included.
type ConflictEntry struct {
	Key     string `json:"key"` // natural key in "anno::numero::tipologia::fonte" form
	Local   Row    `json:"local"`
	Network Row    `json:"network"`
}
