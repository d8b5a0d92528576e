package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/compendio/internal/models"
)

// LogEvent appends one entry to the audit trail. details is JSON-encoded;
// a nil details writes an empty string.
func (s *Store) LogEvent(ctx context.Context, action string, attoID int64, actor string, details any) error {
	detailsTxt := ""
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		detailsTxt = string(b)
	}

	var id any
	if attoID != 0 {
		id = attoID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit (action, atto_id, actor, details)
		VALUES (?, ?, ?, ?)
	`, action, id, actor, detailsTxt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListEvents returns up to limit audit events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, action, COALESCE(atto_id, 0), actor, details
		FROM audit
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		e := &models.AuditEvent{}
		if err := rows.Scan(&e.ID, &e.TS, &e.Action, &e.AttoID, &e.Actor, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return events, nil
}
