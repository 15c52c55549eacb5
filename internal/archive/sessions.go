package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/vocalis/internal/transcript"
)

// ErrSessionNotFound is returned when a session ID has no archived record.
var ErrSessionNotFound = errors.New("archive: session not found")

// SessionRecord describes one archived session.
type SessionRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Summary    string    `json:"summary"`
	EntryCount int       `json:"entry_count"`
}

// WriteSession persists a finished session and its transcript entries in a
// single transaction. Writing the same session ID twice replaces the previous
// archive of that session.
func (s *Store) WriteSession(ctx context.Context, rec SessionRecord, entries []transcript.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("archive: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertSession = `
		INSERT INTO sessions (id, started_at, ended_at, summary, entry_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    started_at  = EXCLUDED.started_at,
		    ended_at    = EXCLUDED.ended_at,
		    summary     = EXCLUDED.summary,
		    entry_count = EXCLUDED.entry_count`

	if _, err := tx.Exec(ctx, upsertSession,
		rec.ID, rec.StartedAt, rec.EndedAt, rec.Summary, len(entries),
	); err != nil {
		return fmt.Errorf("archive: write session: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM session_entries WHERE session_id = $1`, rec.ID,
	); err != nil {
		return fmt.Errorf("archive: clear entries: %w", err)
	}

	const insertEntry = `
		INSERT INTO session_entries (session_id, entry_id, speaker, message, timestamp, is_partial)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, e := range entries {
		if _, err := tx.Exec(ctx, insertEntry,
			rec.ID, e.ID, string(e.Speaker), e.Message, e.Timestamp, e.Partial,
		); err != nil {
			return fmt.Errorf("archive: write entry %q: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

// ListSessions returns the most recently started sessions, newest first.
// A limit of 0 or less lists all sessions.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	q := `
		SELECT id, started_at, ended_at, summary, entry_count
		FROM   sessions
		ORDER  BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += "\nLIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: list sessions: %w", err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionRecord, error) {
		var r SessionRecord
		err := row.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &r.Summary, &r.EntryCount)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan sessions: %w", err)
	}
	if recs == nil {
		recs = []SessionRecord{}
	}
	return recs, nil
}

// Session returns one archived session record by ID.
func (s *Store) Session(ctx context.Context, sessionID string) (SessionRecord, error) {
	const q = `
		SELECT id, started_at, ended_at, summary, entry_count
		FROM   sessions
		WHERE  id = $1`

	var r SessionRecord
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(
		&r.ID, &r.StartedAt, &r.EndedAt, &r.Summary, &r.EntryCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionRecord{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("archive: session: %w", err)
	}
	return r, nil
}

// Entries returns the archived transcript of one session in chronological
// order.
func (s *Store) Entries(ctx context.Context, sessionID string) ([]transcript.Entry, error) {
	const q = `
		SELECT entry_id, speaker, message, timestamp, is_partial
		FROM   session_entries
		WHERE  session_id = $1
		ORDER  BY timestamp, id`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("archive: entries: %w", err)
	}
	return collectEntries(rows)
}

// SearchText performs a PostgreSQL full-text search over all archived entries.
// The query is passed to plainto_tsquery so no operator syntax is required.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]transcript.Entry, error) {
	q := `
		SELECT entry_id, speaker, message, timestamp, is_partial
		FROM   session_entries
		WHERE  to_tsvector('english', message) @@ plainto_tsquery('english', $1)
		ORDER  BY timestamp`
	args := []any{query}
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: search text: %w", err)
	}
	return collectEntries(rows)
}

// collectEntries scans pgx rows into a slice of transcript entries.
func collectEntries(rows pgx.Rows) ([]transcript.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.Entry, error) {
		var (
			e       transcript.Entry
			speaker string
		)
		if err := row.Scan(&e.ID, &speaker, &e.Message, &e.Timestamp, &e.Partial); err != nil {
			return transcript.Entry{}, err
		}
		e.Speaker = transcript.Speaker(speaker)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan rows: %w", err)
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}
	return entries, nil
}
