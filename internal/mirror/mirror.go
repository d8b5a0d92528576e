// Package mirror maintains the spreadsheet mirror of the registry: a CSV
// file kept eventually consistent with the database by explicit
// write-through after each mutation. The mirror is a best-effort
// denormalized copy for office consumption; the database rows stay
// canonical.
package mirror

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/iudanet/compendio/internal/models"
)

// header is the fixed column order of the mirror file.
var header = models.RowFields

// Mirror writes the CSV mirror at a fixed path.
type Mirror struct {
	path   string
	logger *slog.Logger
}

// New creates a mirror bound to path.
func New(path string, logger *slog.Logger) *Mirror {
	return &Mirror{path: path, logger: logger}
}

// Export rewrites the whole mirror file from the given acts.
func (m *Mirror) Export(atti []*models.Atto) error {
	records := make([][]string, 0, len(atti)+1)
	records = append(records, header)
	for _, a := range atti {
		records = append(records, rowValues(a.Row()))
	}
	return m.write(records)
}

// UpdateRow rewrites the mirror line matching the act on anno, numero and
// fonte. When no line matches, the mirror is left untouched: the next full
// Export reconciles it. A missing mirror file is also left alone.
func (m *Mirror) UpdateRow(a *models.Atto) error {
	records, err := m.read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(records) < 2 {
		return nil
	}

	cols := columnIndex(records[0])
	anno, okA := cols["anno"]
	numero, okN := cols["numero"]
	fonte, okF := cols["fonte"]
	if !okA || !okN || !okF {
		return fmt.Errorf("mirror file lacks key columns")
	}

	matched := false
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if len(rec) <= anno || len(rec) <= numero || len(rec) <= fonte {
			continue
		}
		if rec[anno] != a.Anno || rec[numero] != a.Numero || rec[fonte] != a.Fonte {
			continue
		}

		row := a.Row()
		for name, idx := range cols {
			if idx < len(rec) {
				if v, ok := row[name]; ok {
					rec[idx] = v
				}
			}
		}
		matched = true
		break
	}

	if !matched {
		m.logger.Debug("mirror row not found, leaving file unchanged",
			"anno", a.Anno, "numero", a.Numero, "fonte", a.Fonte)
		return nil
	}
	return m.write(records)
}

func (m *Mirror) read() ([][]string, error) {
	f, err := os.Open(m.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror: %w", err)
	}
	return records, nil
}

func (m *Mirror) write(records [][]string) error {
	f, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("failed to create mirror: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write mirror: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush mirror: %w", err)
	}
	return f.Close()
}

func rowValues(row models.Row) []string {
	values := make([]string, len(header))
	for i, name := range header {
		values[i] = row[name]
	}
	return values
}

func columnIndex(headerRec []string) map[string]int {
	cols := make(map[string]int, len(headerRec))
	for i, name := range headerRec {
		cols[name] = i
	}
	return cols
}
