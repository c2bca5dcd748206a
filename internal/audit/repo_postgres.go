package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dialout-picker/pkg/utils"
)

// PostgresRepo appends events to dialout_audit_events through database/sql
// (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dialout_audit_events (
		id            UUID PRIMARY KEY,
		conference    TEXT NOT NULL,
		type          TEXT NOT NULL,
		actor_user_id TEXT NOT NULL DEFAULT '',
		actor_role    TEXT NOT NULL DEFAULT '',
		ip_address    TEXT NOT NULL DEFAULT '',
		session_id    TEXT NOT NULL DEFAULT '',
		batch_id      TEXT NOT NULL DEFAULT '',
		destination   TEXT NOT NULL DEFAULT '',
		message       TEXT NOT NULL DEFAULT '',
		metadata      TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS dialout_audit_events_conference_created_idx
		ON dialout_audit_events (conference, created_at)`,
}

// EnsureSchema creates the table and index if they are missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return errors.New("audit: database not configured")
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("audit: ensure schema: %w", err)
			}
		}
		return nil
	})
}

const insertEvent = `INSERT INTO dialout_audit_events
	(id, conference, type, actor_user_id, actor_role, ip_address, session_id, batch_id, destination, message, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	if r.db == nil {
		return errors.New("audit: database not configured")
	}
	_, err := r.db.ExecContext(ctx, insertEvent,
		e.ID, e.Conference, string(e.Type),
		e.ActorUserID, e.ActorRole, e.IPAddress,
		e.SessionID, e.BatchID, e.Destination,
		e.Message, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}
