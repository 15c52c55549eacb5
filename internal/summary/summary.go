// Package summary produces an end-of-session recap of a voice transcript.
//
// The recap is generated by an LLM reached through
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// local llama.cpp/llamafile servers.
package summary

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/vocalis/internal/transcript"
)

// recapPrompt is the system prompt sent to the LLM when summarising a
// finished voice session.
const recapPrompt = `Summarise the following conversation between a user and a voice assistant.
Preserve: questions asked, answers and facts given, decisions reached, and any follow-ups
the assistant promised. Be concise; a few short sentences.`

// recapTemperature keeps recaps close to the transcript content.
const recapTemperature = 0.3

// Summariser produces a concise recap of a finished session transcript.
type Summariser interface {
	Summarise(ctx context.Context, entries []transcript.Entry) (string, error)
}

// LLMSummariser implements [Summariser] on top of an any-llm-go backend.
type LLMSummariser struct {
	model string

	// complete sends one completion request and returns the response text.
	// Swappable in tests.
	complete func(ctx context.Context, params anyllmlib.CompletionParams) (string, error)
}

var _ Summariser = (*LLMSummariser)(nil)

// New creates an [LLMSummariser] for the given provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". If no API key
// option is provided, the backend falls back to the provider's environment
// variable (e.g., OPENAI_API_KEY).
func New(providerName, model string, opts ...anyllmlib.Option) (*LLMSummariser, error) {
	if providerName == "" {
		return nil, fmt.Errorf("summary: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("summary: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("summary: create %q backend: %w", providerName, err)
	}

	return &LLMSummariser{
		model: model,
		complete: func(ctx context.Context, params anyllmlib.CompletionParams) (string, error) {
			resp, err := backend.Completion(ctx, params)
			if err != nil {
				return "", err
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("empty choices in response")
			}
			return resp.Choices[0].Message.ContentString(), nil
		},
	}, nil
}

// createBackend creates the underlying any-llm-go provider for the given
// provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Summarise formats the transcript into a single user message and asks the
// model for a recap. Partial entries are included as-is; an empty transcript
// yields an empty recap without calling the model.
func (s *LLMSummariser) Summarise(ctx context.Context, entries []transcript.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "[%s]: %s\n", e.Speaker.Label(), e.Message)
	}

	temp := recapTemperature
	text, err := s.complete(ctx, anyllmlib.CompletionParams{
		Model: s.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: recapPrompt},
			{Role: anyllmlib.RoleUser, Content: sb.String()},
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("summary: recap: %w", err)
	}
	return text, nil
}
