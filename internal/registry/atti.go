package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/compendio/internal/models"
)

const attoColumns = `id, anno, numero, tipologia, categoria, argomento,
	oggetto, fonte, filepdf, descrizione, stato, note`

// Create inserts a new act and returns its assigned surrogate id.
func (s *Store) Create(ctx context.Context, a *models.Atto) (int64, error) {
	query := `
		INSERT INTO atti (
			anno, numero, tipologia, categoria, argomento,
			oggetto, fonte, filepdf, descrizione, stato, note
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		a.Anno, a.Numero, a.Tipologia, a.Categoria, a.Argomento,
		a.Oggetto, a.Fonte, a.FilePDF, a.Descrizione, a.Stato, a.Note,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert atto: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	a.ID = id
	return id, nil
}

// Get retrieves a single act by surrogate id.
// Returns ErrAttoNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*models.Atto, error) {
	query := `SELECT ` + attoColumns + ` FROM atti WHERE id = ?`

	a := &models.Atto{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Anno, &a.Numero, &a.Tipologia, &a.Categoria, &a.Argomento,
		&a.Oggetto, &a.Fonte, &a.FilePDF, &a.Descrizione, &a.Stato, &a.Note,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttoNotFound
		}
		return nil, fmt.Errorf("failed to get atto: %w", err)
	}
	return a, nil
}

// Update rewrites all business fields of an existing act.
// Returns ErrAttoNotFound if the id does not exist.
func (s *Store) Update(ctx context.Context, a *models.Atto) error {
	query := `
		UPDATE atti SET
			anno = ?, numero = ?, tipologia = ?, categoria = ?, argomento = ?,
			oggetto = ?, fonte = ?, filepdf = ?, descrizione = ?, stato = ?, note = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		a.Anno, a.Numero, a.Tipologia, a.Categoria, a.Argomento,
		a.Oggetto, a.Fonte, a.FilePDF, a.Descrizione, a.Stato, a.Note,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update atto: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAttoNotFound
	}
	return nil
}

// Delete removes an act row. Removing the attached PDF is the caller's job.
// Returns ErrAttoNotFound if the id does not exist.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM atti WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete atto: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAttoNotFound
	}
	return nil
}

// SearchFilter narrows a Search call. Empty fields are ignored.
type SearchFilter struct {
	Anno      string
	Numero    string
	Tipologia string
	Fonte     string
}

// Search returns acts matching all non-empty filter fields, newest years
// first. An empty filter returns everything.
func (s *Store) Search(ctx context.Context, f SearchFilter) ([]*models.Atto, error) {
	query := `SELECT ` + attoColumns + ` FROM atti WHERE 1=1`
	args := []any{}

	if f.Anno != "" {
		query += " AND anno = ?"
		args = append(args, f.Anno)
	}
	if f.Numero != "" {
		query += " AND numero = ?"
		args = append(args, f.Numero)
	}
	if f.Tipologia != "" {
		query += " AND tipologia = ?"
		args = append(args, f.Tipologia)
	}
	if f.Fonte != "" {
		query += " AND fonte = ?"
		args = append(args, f.Fonte)
	}
	query += " ORDER BY anno DESC, numero ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search atti: %w", err)
	}
	defer rows.Close()

	return scanAtti(rows)
}

// UpdateByNaturalKey applies a snapshot's fields to the act identified by
// its natural key, the way conflict resolution does. The match is on
// mutable business fields, not the surrogate id: if the key fields changed
// since the snapshot was taken the update matches zero rows, which the
// returned count lets the caller observe.
func (s *Store) UpdateByNaturalKey(ctx context.Context, key models.NaturalKey, row models.Row) (int64, error) {
	query := `
		UPDATE atti SET
			anno = ?, numero = ?, tipologia = ?, categoria = ?, argomento = ?,
			oggetto = ?, fonte = ?, filepdf = ?, descrizione = ?, stato = ?, note = ?
		WHERE anno = ? AND numero = ? AND tipologia = ? AND fonte = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		row["anno"], row["numero"], row["tipologia"], row["categoria"], row["argomento"],
		row["oggetto"], row["fonte"], row["filepdf"], row["descrizione"], row["stato"], row["note"],
		key.Anno, key.Numero, key.Tipologia, key.Fonte,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update atto by natural key: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// DistinctValues lists the distinct non-empty values of one filterable
// column (tipologia, fonte, categoria, argomento, stato), sorted.
func (s *Store) DistinctValues(ctx context.Context, column string) ([]string, error) {
	switch column {
	case "tipologia", "fonte", "categoria", "argomento", "stato":
	default:
		return nil, fmt.Errorf("column %q is not filterable", column)
	}

	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM atti WHERE TRIM(%s) <> '' ORDER BY %s`,
		column, column, column,
	)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return values, nil
}

// Counts returns the total number of acts and how many lack an attached PDF.
func (s *Store) Counts(ctx context.Context) (total, withoutPDF int, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM atti`).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("failed to count atti: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM atti WHERE TRIM(filepdf) = ''`).Scan(&withoutPDF)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count atti without pdf: %w", err)
	}
	return total, withoutPDF, nil
}

// IntegrityIssues reports data problems a curator should look at: acts
// missing anno, numero or oggetto, and duplicated natural keys.
func (s *Store) IntegrityIssues(ctx context.Context) ([]string, error) {
	var issues []string

	checks := []struct {
		query string
		label string
	}{
		{`SELECT COUNT(*) FROM atti WHERE TRIM(anno) = ''`, "atti without anno"},
		{`SELECT COUNT(*) FROM atti WHERE TRIM(numero) = ''`, "atti without numero"},
		{`SELECT COUNT(*) FROM atti WHERE TRIM(oggetto) = ''`, "atti without oggetto"},
	}
	for _, c := range checks {
		var n int
		if err := s.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("integrity check failed: %w", err)
		}
		if n > 0 {
			issues = append(issues, fmt.Sprintf("%d %s", n, c.label))
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT anno, numero, tipologia, fonte, COUNT(*) AS cnt
		FROM atti
		GROUP BY anno, numero, tipologia, fonte
		HAVING cnt > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	defer rows.Close()

	duplicates := 0
	for rows.Next() {
		var k models.NaturalKey
		var cnt int
		if err := rows.Scan(&k.Anno, &k.Numero, &k.Tipologia, &k.Fonte, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate: %w", err)
		}
		duplicates++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	if duplicates > 0 {
		issues = append(issues, fmt.Sprintf("%d duplicated natural keys", duplicates))
	}

	return issues, nil
}

// CleanNaN blanks the literal "nan" strings that spreadsheet round-trips
// leave behind in text columns.
func (s *Store) CleanNaN(ctx context.Context) error {
	sets := make([]string, 0, len(models.RowFields))
	for _, f := range models.RowFields {
		sets = append(sets,
			fmt.Sprintf("%s = CASE WHEN lower(%s) = 'nan' THEN '' ELSE %s END", f, f, f))
	}
	query := "UPDATE atti SET " + strings.Join(sets, ", ")

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to clean nan values: %w", err)
	}
	return nil
}

func scanAtti(rows *sql.Rows) ([]*models.Atto, error) {
	var atti []*models.Atto
	for rows.Next() {
		a := &models.Atto{}
		err := rows.Scan(
			&a.ID, &a.Anno, &a.Numero, &a.Tipologia, &a.Categoria, &a.Argomento,
			&a.Oggetto, &a.Fonte, &a.FilePDF, &a.Descrizione, &a.Stato, &a.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan atto: %w", err)
		}
		atti = append(atti, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return atti, nil
}
