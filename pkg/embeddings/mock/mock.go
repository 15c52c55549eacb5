// Package mock provides a test double for the embeddings.Provider interface.
//
// Use Provider to return pre-canned embedding vectors without a live model
// and to verify which texts were submitted for embedding.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vocalis/pkg/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// EmbedResult is returned by Embed for every call.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed and EmbedBatch.
	EmbedErr error

	// BatchResults is returned by EmbedBatch. If nil, EmbedBatch returns
	// len(texts) copies of EmbedResult.
	BatchResults [][]float32

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbeddedTexts records every text submitted through Embed or EmbedBatch,
	// in order.
	EmbeddedTexts []string
}

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)

// Embed records the text and returns EmbedResult, EmbedErr.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbeddedTexts = append(p.EmbeddedTexts, text)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	return p.EmbedResult, nil
}

// EmbedBatch records the texts and returns BatchResults or, when nil, one
// copy of EmbedResult per input text.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbeddedTexts = append(p.EmbeddedTexts, texts...)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if p.BatchResults != nil {
		return p.BatchResults, nil
	}
	result := make([][]float32, len(texts))
	for i := range result {
		result[i] = p.EmbedResult
	}
	return result, nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DimensionsValue
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}
