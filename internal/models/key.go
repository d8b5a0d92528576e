package models

import (
	"fmt"
	"strings"
)

// keySeparator joins the natural key components in ledger keys and lock
// metadata. The components themselves never contain "::" in practice;
// free-form legacy values are trimmed on import.
const keySeparator = "::"

// NaturalKey identifies an act across instances, independently of the
// locally assigned surrogate id.
type NaturalKey struct {
	Anno      string
	Numero    string
	Tipologia string
	Fonte     string
}

// String renders the key in the "anno::numero::tipologia::fonte" wire form
// used by the conflict ledger.
func (k NaturalKey) String() string {
	return strings.Join([]string{k.Anno, k.Numero, k.Tipologia, k.Fonte}, keySeparator)
}

// ParseNaturalKey parses the "anno::numero::tipologia::fonte" form.
func ParseNaturalKey(s string) (NaturalKey, error) {
	parts := strings.Split(s, keySeparator)
	if len(parts) != 4 {
		return NaturalKey{}, fmt.Errorf("invalid natural key %q: want 4 components, got %d", s, len(parts))
	}
	return NaturalKey{
		Anno:      parts[0],
		Numero:    parts[1],
		Tipologia: parts[2],
		Fonte:     parts[3],
	}, nil
}
