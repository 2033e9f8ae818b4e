package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *memoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

type countingEmbedder struct {
	calls [][]string
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func TestCachedEmbeddingProvider_OnlyMissesReachProvider(t *testing.T) {
	inner := &countingEmbedder{}
	store := newMemoryStore()
	cached := NewCachedEmbeddingProvider(inner, store, nil)
	ctx := context.Background()

	first, err := cached.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, first)

	second, err := cached.Embed(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}, {3}, {1}}, second)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"ccc"}, inner.calls[1])
	assert.Len(t, store.data, 3)
	assert.Equal(t, "counting", cached.Name())
}

func TestCachedEmbeddingProvider_CorruptEntryIsReplaced(t *testing.T) {
	inner := &countingEmbedder{}
	store := newMemoryStore()
	cached := NewCachedEmbeddingProvider(inner, store, nil)
	store.data[cached.cacheKey("abc")] = []byte("not json")

	v, err := cached.EmbedSingle(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, v)
	assert.Len(t, inner.calls, 1)
}

func TestCachedEmbeddingProvider_StoreErrorFallsBack(t *testing.T) {
	inner := &countingEmbedder{}
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	cached := NewCachedEmbeddingProvider(inner, store, nil)

	v, err := cached.EmbedSingle(context.Background(), "ab")
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, v)
}

func TestCachedEmbeddingProvider_ClearCache(t *testing.T) {
	store := newMemoryStore()
	store.data["other:key"] = []byte("1")
	cached := NewCachedEmbeddingProvider(&countingEmbedder{}, store, &EmbeddingCacheConfig{TTL: time.Minute, KeyPrefix: "emb:"})

	_, err := cached.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	require.NoError(t, cached.ClearCache(context.Background()))
	assert.Len(t, store.data, 1)
}
