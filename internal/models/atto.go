package models

import "strconv"

// Atto represents one managed administrative act. The surrogate ID is
// assigned by the local registry; (Anno, Numero, Tipologia, Fonte) is the
// natural key used for cross-instance identification.
type Atto struct {
	ID          int64  `json:"id"`
	Anno        string `json:"anno"`        // year, stored as text (legacy data carries free-form values)
	Numero      string `json:"numero"`      // act number within the year
	Tipologia   string `json:"tipologia"`   // act type (delibera, determina, ...)
	Categoria   string `json:"categoria"`   // category
	Argomento   string `json:"argomento"`   // subject
	Oggetto     string `json:"oggetto"`     // title/object of the act
	Fonte       string `json:"fonte"`       // issuing source (giunta, consiglio, ...)
	FilePDF     string `json:"filepdf"`     // attached PDF file name, may be empty
	Descrizione string `json:"descrizione"` // free-text description
	Stato       string `json:"stato"`       // status
	Note        string `json:"note"`        // notes
}

// Row is a flat field map snapshot of an Atto, as persisted in the conflict
// ledger and exchanged with the spreadsheet mirror.
type Row map[string]string

// RowFields lists the business fields of an Atto in canonical order.
// The surrogate "id" is deliberately not part of this list; it rides along
// in snapshots but never participates in field comparison.
var RowFields = []string{
	"anno", "numero", "tipologia", "categoria", "argomento",
	"oggetto", "fonte", "filepdf", "descrizione", "stato", "note",
}

// Key returns the natural key of the act.
func (a *Atto) Key() NaturalKey {
	return NaturalKey{
		Anno:      a.Anno,
		Numero:    a.Numero,
		Tipologia: a.Tipologia,
		Fonte:     a.Fonte,
	}
}

// Row converts the act into a snapshot field map, including the surrogate id.
func (a *Atto) Row() Row {
	return Row{
		"id":          strconv.FormatInt(a.ID, 10),
		"anno":        a.Anno,
		"numero":      a.Numero,
		"tipologia":   a.Tipologia,
		"categoria":   a.Categoria,
		"argomento":   a.Argomento,
		"oggetto":     a.Oggetto,
		"fonte":       a.Fonte,
		"filepdf":     a.FilePDF,
		"descrizione": a.Descrizione,
		"stato":       a.Stato,
		"note":        a.Note,
	}
}

// Equal reports whether two snapshots carry the same business fields.
// The surrogate id is ignored: the same act synced through two instances
// may have been assigned different local ids.
func (r Row) Equal(other Row) bool {
	for _, f := range RowFields {
		if r[f] != other[f] {
			return false
		}
	}
	return true
}
