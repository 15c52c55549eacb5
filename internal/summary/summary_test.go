package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/vocalis/internal/transcript"
)

func testEntries() []transcript.Entry {
	ts := time.Date(2025, 6, 1, 14, 3, 5, 0, time.UTC)
	return []transcript.Entry{
		{ID: "e1", Speaker: transcript.SpeakerUser, Message: "What's the weather like?", Timestamp: ts},
		{ID: "e2", Speaker: transcript.SpeakerAssistant, Message: "Sunny, around 24 degrees.", Timestamp: ts.Add(2 * time.Second)},
	}
}

func TestSummarise_FormatsTranscript(t *testing.T) {
	t.Parallel()

	var got anyllmlib.CompletionParams
	s := &LLMSummariser{
		model: "gpt-4o-mini",
		complete: func(_ context.Context, params anyllmlib.CompletionParams) (string, error) {
			got = params
			return "The user asked about the weather; it is sunny.", nil
		},
	}

	recap, err := s.Summarise(context.Background(), testEntries())
	if err != nil {
		t.Fatalf("Summarise: %v", err)
	}
	if recap != "The user asked about the weather; it is sunny." {
		t.Errorf("recap=%q", recap)
	}

	if got.Model != "gpt-4o-mini" {
		t.Errorf("model=%q", got.Model)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages=%d, want 2", len(got.Messages))
	}
	user := got.Messages[1].ContentString()
	if !strings.Contains(user, "[User]: What's the weather like?") {
		t.Errorf("user message missing transcript line: %q", user)
	}
	if !strings.Contains(user, "[Assistant]: Sunny, around 24 degrees.") {
		t.Errorf("user message missing transcript line: %q", user)
	}
}

func TestSummarise_EmptyTranscriptSkipsModel(t *testing.T) {
	t.Parallel()

	s := &LLMSummariser{
		model: "gpt-4o-mini",
		complete: func(context.Context, anyllmlib.CompletionParams) (string, error) {
			t.Error("complete called for empty transcript")
			return "", nil
		},
	}

	recap, err := s.Summarise(context.Background(), nil)
	if err != nil {
		t.Fatalf("Summarise: %v", err)
	}
	if recap != "" {
		t.Errorf("recap=%q, want empty", recap)
	}
}

func TestSummarise_WrapsBackendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("rate limited")
	s := &LLMSummariser{
		model: "gpt-4o-mini",
		complete: func(context.Context, anyllmlib.CompletionParams) (string, error) {
			return "", boom
		},
	}

	if _, err := s.Summarise(context.Background(), testEntries()); !errors.Is(err, boom) {
		t.Errorf("err=%v, want wrapped %v", err, boom)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("empty provider accepted")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("empty model accepted")
	}
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Error("unknown provider accepted")
	}
}

func TestNew_KnownProviders(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"openai", "anthropic", "ollama"} {
		if _, err := New(p, "some-model", anyllmlib.WithAPIKey("dummy")); err != nil {
			t.Errorf("New(%q): %v", p, err)
		}
	}
}
