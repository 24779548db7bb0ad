package embedding

import (
	"context"
	"fmt"
)

const (
	// DefaultBatchSize is the maximum number of texts sent per provider call.
	DefaultBatchSize = 100

	// DefaultTokenBudget caps a single input's length, approximated at
	// charsPerToken characters per token.
	DefaultTokenBudget = 8000

	charsPerToken = 4
)

// Result pairs an input text with its embedding. Text is the original,
// untruncated input (the truncated copy is only what went to the provider);
// OriginalIndex is the text's position in the EmbedMany input.
type Result struct {
	Text          string
	Embedding     []float32
	OriginalIndex int
}

// Batcher partitions texts into provider-sized batches and reassembles the
// responses in input order.
type Batcher struct {
	provider    Provider
	batchSize   int
	tokenBudget int
}

// NewBatcher creates a batcher. Zero batchSize or tokenBudget select the
// defaults.
func NewBatcher(provider Provider, batchSize, tokenBudget int) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	return &Batcher{
		provider:    provider,
		batchSize:   batchSize,
		tokenBudget: tokenBudget,
	}
}

// EmbedMany embeds all texts, one provider call per batch. Oversized inputs
// are truncated to the token budget before sending but kept whole in the
// returned results. A provider failure aborts the remaining batches; no
// partial result is returned.
func (b *Batcher) EmbedMany(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		batch := texts[start:end]

		sendable := make([]string, len(batch))
		for i, t := range batch {
			sendable[i] = b.truncate(t)
		}

		embeddings, err := b.provider.Embed(ctx, sendable)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("embed batch %d-%d: got %d embeddings for %d texts", start, end, len(embeddings), len(batch))
		}

		for i, emb := range embeddings {
			results = append(results, Result{
				Text:          batch[i],
				Embedding:     emb,
				OriginalIndex: start + i,
			})
		}
	}
	return results, nil
}

// truncate caps text at the token budget, estimated at 4 characters per token.
func (b *Batcher) truncate(text string) string {
	maxChars := b.tokenBudget * charsPerToken
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}
