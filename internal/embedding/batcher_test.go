package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records every call and returns a distinct vector per input so
// tests can verify order mapping across batch boundaries.
type fakeProvider struct {
	calls   [][]string
	failOn  int // 1-based call number to fail on; 0 means never
	counter float32
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		f.counter++
		out[i] = []float32{f.counter}
	}
	return out, nil
}

func TestEmbedMany_OrderPreservedAcrossBatches(t *testing.T) {
	provider := &fakeProvider{}
	batcher := NewBatcher(provider, 3, 0)

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	results, err := batcher.EmbedMany(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, results, 8)

	// Three provider calls: 3 + 3 + 2.
	require.Len(t, provider.calls, 3)
	assert.Len(t, provider.calls[0], 3)
	assert.Len(t, provider.calls[2], 2)

	for i, r := range results {
		assert.Equal(t, i, r.OriginalIndex)
		assert.Equal(t, texts[i], r.Text)
		// The fake hands out vectors in call order, which must equal input order.
		assert.Equal(t, []float32{float32(i + 1)}, r.Embedding)
	}
}

func TestEmbedMany_TruncatesSentCopyKeepsOriginal(t *testing.T) {
	provider := &fakeProvider{}
	batcher := NewBatcher(provider, 10, 5) // budget: 5 tokens * 4 chars = 20 chars

	long := strings.Repeat("a", 100)
	results, err := batcher.EmbedMany(context.Background(), []string{long})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, long, results[0].Text, "original text preserved in result")
	require.Len(t, provider.calls, 1)
	assert.Len(t, provider.calls[0][0], 20, "provider received the truncated copy")
}

func TestEmbedMany_FailureAbortsRemainingBatches(t *testing.T) {
	provider := &fakeProvider{failOn: 2}
	batcher := NewBatcher(provider, 2, 0)

	texts := []string{"a", "b", "c", "d", "e", "f"}
	results, err := batcher.EmbedMany(context.Background(), texts)
	require.Error(t, err)
	assert.Nil(t, results, "no partial results on failure")
	assert.Len(t, provider.calls, 2, "batches after the failing one are not sent")
}

func TestEmbedMany_Empty(t *testing.T) {
	provider := &fakeProvider{}
	batcher := NewBatcher(provider, 0, 0)
	results, err := batcher.EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, provider.calls)
}
