package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/vocalis/internal/transcript"
	"github.com/MrWong99/vocalis/pkg/embeddings"
)

// SemanticResult is one hit from [Store.SemanticSearch].
type SemanticResult struct {
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Distance is the cosine distance to the query vector; smaller is more
	// similar.
	Distance float64 `json:"distance"`
}

// IndexEntries embeds the finalized entries of an archived session and stores
// the vectors in the semantic index. Partial entries are skipped. The session
// row must already exist (see [Store.WriteSession]).
func (s *Store) IndexEntries(ctx context.Context, sessionID string, entries []transcript.Entry, embedder embeddings.Provider) error {
	var texts []string
	var kept []transcript.Entry
	for _, e := range entries {
		if e.Partial || e.Message == "" {
			continue
		}
		texts = append(texts, e.Message)
		kept = append(kept, e)
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("archive: embed entries: %w", err)
	}
	if len(vectors) != len(kept) {
		return fmt.Errorf("archive: expected %d vectors, got %d", len(kept), len(vectors))
	}

	const q = `
		INSERT INTO entry_embeddings (session_id, content, embedding, timestamp)
		VALUES ($1, $2, $3, $4)`

	for i, e := range kept {
		if _, err := s.pool.Exec(ctx, q,
			sessionID, e.Message, pgvector.NewVector(vectors[i]), e.Timestamp,
		); err != nil {
			return fmt.Errorf("archive: index entry: %w", err)
		}
	}
	return nil
}

// SemanticSearch finds the topK archived entries whose embeddings are closest
// (cosine distance) to the supplied query embedding. Results are ordered by
// ascending distance (most similar first).
func (s *Store) SemanticSearch(ctx context.Context, embedding []float32, topK int) ([]SemanticResult, error) {
	const q = `
		SELECT session_id, content, timestamp,
		       embedding <=> $1 AS distance
		FROM   entry_embeddings
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("archive: semantic search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SemanticResult, error) {
		var r SemanticResult
		err := row.Scan(&r.SessionID, &r.Content, &r.Timestamp, &r.Distance)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan results: %w", err)
	}
	if results == nil {
		results = []SemanticResult{}
	}
	return results, nil
}
