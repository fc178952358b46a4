// Package postgres persists the audit trail when DATABASE_URL is configured.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"certledger/internal/audit"
)

// Store writes audit events to the certificate_events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the events table. Called at startup; safe to re-run.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS certificate_events (
			id             UUID PRIMARY KEY,
			certificate_id TEXT NOT NULL,
			action         TEXT NOT NULL,
			tx_hash        TEXT NOT NULL DEFAULT '',
			request_id     TEXT NOT NULL DEFAULT '',
			detail         TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS certificate_events_cert_idx
			ON certificate_events (certificate_id, created_at);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate certificate_events: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	const query = `
		INSERT INTO certificate_events (id, certificate_id, action, tx_hash, request_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.CertificateID,
		string(event.Action),
		event.TxHash,
		event.RequestID,
		event.Detail,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert certificate event: %w", err)
	}
	return nil
}

func (s *Store) ListByCertificate(ctx context.Context, certificateID string) ([]audit.Event, error) {
	const query = `
		SELECT id, certificate_id, action, tx_hash, request_id, detail, created_at
		FROM certificate_events
		WHERE certificate_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, certificateID)
	if err != nil {
		return nil, fmt.Errorf("query certificate events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		var action string
		if err := rows.Scan(&e.ID, &e.CertificateID, &action, &e.TxHash, &e.RequestID, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan certificate event: %w", err)
		}
		e.Action = audit.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
