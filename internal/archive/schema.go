// Package archive persists finished voice sessions to PostgreSQL.
//
// Each archived session consists of a row in the sessions table, its
// transcript entries in session_entries (with a GIN full-text index), and
// optionally one embedding per finalized entry in entry_embeddings for
// semantic search across past conversations. The pgvector extension must be
// available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS.
package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT         PRIMARY KEY,
    started_at   TIMESTAMPTZ  NOT NULL,
    ended_at     TIMESTAMPTZ  NOT NULL,
    summary      TEXT         NOT NULL DEFAULT '',
    entry_count  INT          NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at
    ON sessions (started_at);
`

const ddlSessionEntries = `
CREATE TABLE IF NOT EXISTS session_entries (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    entry_id    TEXT         NOT NULL,
    speaker     TEXT         NOT NULL,
    message     TEXT         NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL,
    is_partial  BOOLEAN      NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_session_entries_session_id
    ON session_entries (session_id);

CREATE INDEX IF NOT EXISTS idx_session_entries_fts
    ON session_entries USING GIN (to_tsvector('english', message));
`

// ddlEmbeddings returns the semantic index DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlEmbeddings(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS entry_embeddings (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    timestamp   TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entry_embeddings_session_id
    ON entry_embeddings (session_id);

CREATE INDEX IF NOT EXISTS idx_entry_embeddings_embedding
    ON entry_embeddings USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions
// exist. It is idempotent and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 1536 for OpenAI text-embedding-3-small). Changing this
// value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlSessions,
		ddlSessionEntries,
		ddlEmbeddings(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("archive migrate: %w", err)
		}
	}
	return nil
}
