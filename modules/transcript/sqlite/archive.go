package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/flemzord/agentchat/internal/transcript"
)

// Archive stores exchanges in SQLite.
type Archive struct {
	db *sql.DB
}

var _ transcript.Archive = (*Archive)(nil)

// Record implements transcript.Recorder.
func (a *Archive) Record(ctx context.Context, ex transcript.Exchange) error {
	tools := ex.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("sqlite: marshal tools_used: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO exchanges (session_id, user_message, reply, tools_used, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ex.SessionID, ex.UserMessage, ex.Reply, string(toolsJSON),
		ex.StartedAt.UnixNano(), ex.CompletedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record exchange: %w", err)
	}
	return nil
}

// Exchanges implements transcript.Reader. It returns the limit most recent
// exchanges of the session, oldest first. A non-positive limit returns all.
func (a *Archive) Exchanges(ctx context.Context, sessionID string, limit int) ([]transcript.Exchange, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT session_id, user_message, reply, tools_used, started_at, completed_at
		FROM exchanges
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query exchanges: %w", err)
	}
	out, err := scanExchanges(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// Search returns up to limit exchanges whose message or reply contains a
// word starting with every term of query, best match first.
func (a *Archive) Search(ctx context.Context, query string, limit int) ([]transcript.Exchange, error) {
	match := prefixQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT e.session_id, e.user_message, e.reply, e.tools_used, e.started_at, e.completed_at
		FROM exchanges_fts f
		JOIN exchanges e ON e.id = f.rowid
		WHERE exchanges_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search exchanges: %w", err)
	}
	return scanExchanges(rows)
}

// prefixQuery turns free text into an FTS5 expression matching every term
// as a word prefix. Terms are quoted so that FTS5 operators and
// punctuation are taken literally; terms without letters or digits are
// dropped.
func prefixQuery(query string) string {
	var terms []string
	for _, f := range strings.Fields(query) {
		if !strings.ContainsFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}

// PurgeBefore deletes exchanges completed before cutoff.
func (a *Archive) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, "DELETE FROM exchanges WHERE completed_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge exchanges: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of archived exchanges.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := a.db.QueryRowContext(ctx, "SELECT count(*) FROM exchanges").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count exchanges: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func scanExchanges(rows *sql.Rows) ([]transcript.Exchange, error) {
	defer func() { _ = rows.Close() }()

	var out []transcript.Exchange
	for rows.Next() {
		var (
			ex         transcript.Exchange
			tools      string
			start, end int64
		)
		if err := rows.Scan(&ex.SessionID, &ex.UserMessage, &ex.Reply, &tools, &start, &end); err != nil {
			return nil, fmt.Errorf("sqlite: scan exchange: %w", err)
		}
		if err := json.Unmarshal([]byte(tools), &ex.ToolsUsed); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal tools_used: %w", err)
		}
		ex.StartedAt = time.Unix(0, start).UTC()
		ex.CompletedAt = time.Unix(0, end).UTC()
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: exchange rows: %w", err)
	}
	return out, nil
}
