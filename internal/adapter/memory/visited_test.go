package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryVisitOnce(t *testing.T) {
	ctx := context.Background()
	s := NewVisitedSet()

	ok, err := s.TryVisit(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryVisit(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestTryVisitConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewVisitedSet()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.TryVisit(ctx, "https://example.com/a"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
