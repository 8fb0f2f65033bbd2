package ocr

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls atomic.Int32
}

func (c *countingProvider) Recognize(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	c.calls.Add(1)
	return &OCRResult{Text: "ok", Metadata: map[string]string{}}, nil
}

func TestRateLimitedProvider_Delegates(t *testing.T) {
	inner := &countingProvider{}
	p := NewRateLimitedProvider(inner, 0)

	for i := 0; i < 5; i++ {
		result, err := p.Recognize(context.Background(), nil, i+1)
		require.NoError(t, err)
		assert.Equal(t, "ok", result.Text)
	}
	assert.Equal(t, int32(5), inner.calls.Load())
}

func TestRateLimitedProvider_WaitHonorsContext(t *testing.T) {
	inner := &countingProvider{}
	// One request per minute: the first call uses the burst, the second
	// would wait far longer than the context allows.
	p := NewRateLimitedProvider(inner, 1)

	_, err := p.Recognize(context.Background(), nil, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Recognize(ctx, nil, 2)
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}
