package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iudanet/compendio/internal/models"
	_ "modernc.org/sqlite" // SQLite driver
)

// LoadRows opens the registry database at dbPath read-only and returns all
// act rows as snapshots indexed by natural key. The synchronizer uses this
// to diff the local and network databases without touching either store's
// long-lived connection. When two rows collide on the same natural key the
// later one wins; duplicate keys are a data problem IntegrityIssues reports
// separately.
func LoadRows(ctx context.Context, dbPath string) (map[string]models.Row, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT `+attoColumns+` FROM atti`)
	if err != nil {
		return nil, fmt.Errorf("failed to query atti from %s: %w", dbPath, err)
	}
	defer rows.Close()

	atti, err := scanAtti(rows)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]models.Row, len(atti))
	for _, a := range atti {
		byKey[a.Key().String()] = a.Row()
	}
	return byKey, nil
}
