package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// SessionLedger keeps an append-only audit row per indexed upload. Indexes
// themselves live in memory and are never read back from here.
type SessionLedger struct {
	db *sql.DB
}

func NewSessionLedger(db *sql.DB) *SessionLedger {
	return &SessionLedger{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (l *SessionLedger) EnsureSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS rag_sessions (
	session_id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	doc_kind TEXT NOT NULL,
	page_count INTEGER NOT NULL,
	chunk_count INTEGER NOT NULL,
	degraded BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rag_sessions_created_at ON rag_sessions(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (l *SessionLedger) RecordSession(ctx context.Context, session domain.Session) error {
	const query = `
INSERT INTO rag_sessions (session_id, filename, doc_kind, page_count, chunk_count, degraded, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (session_id) DO NOTHING
`
	_, err := l.db.ExecContext(ctx, query,
		session.ID,
		session.Filename,
		string(session.Kind),
		session.PageCount,
		session.ChunkCount,
		session.Degraded,
		session.CreatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "record session", err)
	}
	return nil
}

// ListRecent returns up to limit ledger rows, newest first.
func (l *SessionLedger) ListRecent(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT session_id, filename, doc_kind, page_count, chunk_count, degraded, created_at
FROM rag_sessions
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Session, 0, limit)
	for rows.Next() {
		var (
			s    domain.Session
			kind string
		)
		if err := rows.Scan(&s.ID, &s.Filename, &kind, &s.PageCount, &s.ChunkCount, &s.Degraded, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Kind = domain.DocumentKind(kind)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
