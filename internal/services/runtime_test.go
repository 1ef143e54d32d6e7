package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeProvider_BuildsOnceUnderConcurrency(t *testing.T) {
	var builds int32
	factory := func(ctx context.Context) (*RuntimeComponents, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(20 * time.Millisecond)
		return &RuntimeComponents{VectorIndex: new(MockVectorRepository)}, nil
	}
	provider := NewRuntimeProvider(factory, testLogger())
	assert.Equal(t, RuntimeStatusPending, provider.Status())

	const callers = 16
	results := make([]*RuntimeComponents, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc, err := provider.Get(context.Background())
			assert.NoError(t, err)
			results[i] = rc
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for _, rc := range results {
		assert.Same(t, results[0], rc)
	}
	assert.Equal(t, RuntimeStatusReady, provider.Status())
	assert.NoError(t, provider.Close())
}

func TestRuntimeProvider_FailureIsNotMemoized(t *testing.T) {
	var builds int32
	factory := func(ctx context.Context) (*RuntimeComponents, error) {
		if atomic.AddInt32(&builds, 1) == 1 {
			return nil, errors.New("vector store unreachable")
		}
		return &RuntimeComponents{}, nil
	}
	provider := NewRuntimeProvider(factory, testLogger())

	rc, err := provider.Get(context.Background())
	require.Error(t, err)
	assert.Nil(t, rc)
	assert.True(t, errors.Is(err, ErrRuntimeUnavailable))
	assert.Contains(t, err.Error(), "vector store unreachable")
	assert.Equal(t, RuntimeStatusFailed, provider.Status())

	rc, err = provider.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rc)
	assert.Equal(t, RuntimeStatusReady, provider.Status())
	assert.Equal(t, int32(2), atomic.LoadInt32(&builds))
}

func TestRuntimeProvider_NilComponents(t *testing.T) {
	provider := NewRuntimeProvider(func(ctx context.Context) (*RuntimeComponents, error) {
		return nil, nil
	}, testLogger())

	_, err := provider.Get(context.Background())
	assert.True(t, errors.Is(err, ErrRuntimeUnavailable))
	assert.Equal(t, RuntimeStatusFailed, provider.Status())
}

func TestRuntimeProvider_CloseBeforeBuild(t *testing.T) {
	provider := NewRuntimeProvider(func(ctx context.Context) (*RuntimeComponents, error) {
		return &RuntimeComponents{}, nil
	}, testLogger())

	assert.NoError(t, provider.Close())
}
