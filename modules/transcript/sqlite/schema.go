package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS exchanges (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT    NOT NULL,
		user_message TEXT    NOT NULL,
		reply        TEXT    NOT NULL,
		tools_used   TEXT    NOT NULL DEFAULT '[]',
		started_at   INTEGER NOT NULL,
		completed_at INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, id)`,

	`CREATE INDEX IF NOT EXISTS idx_exchanges_completed ON exchanges(completed_at)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS exchanges_fts USING fts5(
		user_message,
		reply,
		content=exchanges,
		content_rowid=id
	)`,

	`CREATE TRIGGER IF NOT EXISTS exchanges_ai AFTER INSERT ON exchanges BEGIN
		INSERT INTO exchanges_fts(rowid, user_message, reply)
		VALUES (new.id, new.user_message, new.reply);
	END`,

	`CREATE TRIGGER IF NOT EXISTS exchanges_ad AFTER DELETE ON exchanges BEGIN
		INSERT INTO exchanges_fts(exchanges_fts, rowid, user_message, reply)
		VALUES ('delete', old.id, old.user_message, old.reply);
	END`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return tx.Commit()
}
