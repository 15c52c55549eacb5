package archive_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/vocalis/internal/archive"
	"github.com/MrWong99/vocalis/internal/transcript"
	"github.com/MrWong99/vocalis/pkg/embeddings/mock"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if VOCALIS_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOCALIS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOCALIS_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [archive.Store] with a clean schema and closes
// it when the test finishes.
func newTestStore(t *testing.T) *archive.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool := mustPool(t, ctx, dsn)
	t.Cleanup(cleanPool.Close)
	dropSchema(t, ctx, cleanPool)

	store, err := archive.New(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func mustPool(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// best-effort: pgvector may not be installed yet on a fresh DB
		_ = pgxvec.RegisterTypes(ctx, conn)
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

// dropSchema removes all tables created by Migrate in reverse dependency order.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS entry_embeddings CASCADE",
		"DROP TABLE IF EXISTS session_entries CASCADE",
		"DROP TABLE IF EXISTS sessions CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema: %v", err)
		}
	}
}

func sampleEntries() []transcript.Entry {
	ts := time.Date(2025, 6, 1, 14, 3, 5, 0, time.UTC)
	return []transcript.Entry{
		{ID: "e1", Speaker: transcript.SpeakerUser, Message: "Where is the nearest restaurant?", Timestamp: ts},
		{ID: "e2", Speaker: transcript.SpeakerAssistant, Message: "Two blocks north of you.", Timestamp: ts.Add(2 * time.Second)},
	}
}

func TestWriteSession_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := archive.SessionRecord{
		ID:        "sess-1",
		StartedAt: time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
		Summary:   "User asked for a restaurant.",
	}
	if err := store.WriteSession(ctx, rec, sampleEntries()); err != nil {
		t.Fatalf("WriteSession: %v", err)
	}

	sessions, err := store.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions=%d, want 1", len(sessions))
	}
	got := sessions[0]
	if got.ID != "sess-1" || got.Summary != rec.Summary || got.EntryCount != 2 {
		t.Errorf("session=%+v", got)
	}

	entries, err := store.Entries(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want 2", len(entries))
	}
	if entries[0].ID != "e1" || entries[0].Speaker != transcript.SpeakerUser {
		t.Errorf("entries[0]=%+v", entries[0])
	}
	if entries[1].Message != "Two blocks north of you." {
		t.Errorf("entries[1].Message=%q", entries[1].Message)
	}

	single, err := store.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if single.Summary != rec.Summary {
		t.Errorf("Session summary=%q, want %q", single.Summary, rec.Summary)
	}

	if _, err := store.Session(ctx, "no-such"); !errors.Is(err, archive.ErrSessionNotFound) {
		t.Errorf("Session(no-such) err=%v, want ErrSessionNotFound", err)
	}
}

func TestWriteSession_ReplacesPreviousArchive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := archive.SessionRecord{ID: "sess-1", StartedAt: time.Now(), EndedAt: time.Now()}
	if err := store.WriteSession(ctx, rec, sampleEntries()); err != nil {
		t.Fatalf("first WriteSession: %v", err)
	}
	if err := store.WriteSession(ctx, rec, sampleEntries()[:1]); err != nil {
		t.Fatalf("second WriteSession: %v", err)
	}

	entries, err := store.Entries(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries=%d, want 1 after rewrite", len(entries))
	}
}

func TestSearchText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := archive.SessionRecord{ID: "sess-1", StartedAt: time.Now(), EndedAt: time.Now()}
	if err := store.WriteSession(ctx, rec, sampleEntries()); err != nil {
		t.Fatalf("WriteSession: %v", err)
	}

	hits, err := store.SearchText(ctx, "restaurant", 10)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits=%d, want 1", len(hits))
	}
	if hits[0].ID != "e1" {
		t.Errorf("hit=%+v", hits[0])
	}

	none, err := store.SearchText(ctx, "weather", 10)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("hits=%d, want 0", len(none))
	}
}

func TestIndexEntriesAndSemanticSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := archive.SessionRecord{ID: "sess-1", StartedAt: time.Now(), EndedAt: time.Now()}
	entries := []transcript.Entry{
		{ID: "e1", Speaker: transcript.SpeakerUser, Message: "first", Timestamp: time.Now()},
		{ID: "e2", Speaker: transcript.SpeakerAssistant, Message: "second", Timestamp: time.Now()},
		{ID: "e3", Speaker: transcript.SpeakerAssistant, Message: "still talking", Timestamp: time.Now(), Partial: true},
	}
	if err := store.WriteSession(ctx, rec, entries); err != nil {
		t.Fatalf("WriteSession: %v", err)
	}

	embedder := &mock.Provider{
		BatchResults: [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
		},
		DimensionsValue: testEmbeddingDim,
	}
	if err := store.IndexEntries(ctx, "sess-1", entries, embedder); err != nil {
		t.Fatalf("IndexEntries: %v", err)
	}
	// The partial entry must not have been embedded.
	if len(embedder.EmbeddedTexts) != 2 {
		t.Fatalf("embedded %d texts, want 2", len(embedder.EmbeddedTexts))
	}

	results, err := store.SemanticSearch(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d, want 2", len(results))
	}
	if results[0].Content != "first" {
		t.Errorf("closest result=%q, want %q", results[0].Content, "first")
	}
	if results[0].Distance > results[1].Distance {
		t.Error("results not ordered by ascending distance")
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
