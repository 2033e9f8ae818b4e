package biz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/legal-rag/internal/legalrag/metrics"
	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/pkg/llm"
)

// fakeStore 内存向量库。
type fakeStore struct {
	mu          sync.Mutex
	records     []*store.Record
	matches     []*store.Match
	searchK     int
	insertErr   error
	partial     bool // insertErr 时仍写入记录，模拟部分写入
	searchErr   error
	deleteErr   error
	statsErr    error
	deleteCalls [][]string
	inserts     int
}

func (f *fakeStore) Insert(_ context.Context, records []*store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil && !f.partial {
		return f.insertErr
	}
	f.records = append(f.records, records...)
	return f.insertErr
}

func (f *fakeStore) Search(_ context.Context, _ []float32, topK int) ([]*store.Match, error) {
	f.searchK = topK
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f *fakeStore) QueryIDsByResource(_ context.Context, resourceID string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, r := range f.records {
		if r.Chunk.ResourceID == resourceID && len(ids) < limit {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, append([]string(nil), ids...))
	if f.deleteErr != nil {
		return f.deleteErr
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := f.records[:0]
	for _, r := range f.records {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeStore) Stats(context.Context) (*store.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &store.Stats{RowCount: int64(len(f.records)), Dimension: 1, Partitions: map[string]int64{"_default": int64(len(f.records))}}, nil
}

// fakeEmbedder 将 "tNNN" 映射为向量 [NNN]。
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	sizes []int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.sizes = append(f.sizes, len(texts))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		n, _ := strconv.Atoi(strings.TrimPrefix(t, "t"))
		out[i] = []float32{float32(n)}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

type fakeChat struct {
	calls    int
	messages []llm.Message
	opts     llm.GenerateOptions
	content  string
	err      error
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	f.calls++
	f.messages = messages
	f.opts = llm.ApplyGenerateOptions(opts...)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{
		Content:    f.content,
		TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeChat) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	return f.Chat(ctx, []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}, {Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (f *fakeChat) Name() string { return "fake" }

// memoryCache 实现 llm.CacheStore。
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

var errBoom = errors.New("boom")

func defaultConfig() *ServiceConfig {
	return &ServiceConfig{TopK: 5, MaxTopK: 50, MaxTokens: 512, Temperature: 0.7, EmbedBatchSize: 32}
}

func newTestService(st *fakeStore, emb *fakeEmbedder, chat *fakeChat, cache *QueryCache) *RAGService {
	return NewRAGService(st, emb, chat, cache, nil, metrics.New(), defaultConfig())
}

func textMatches(sources ...string) []*store.Match {
	out := make([]*store.Match, len(sources))
	for i, src := range sources {
		out[i] = &store.Match{ID: fmt.Sprintf("m%d", i)}
		out[i].Chunk.Text = fmt.Sprintf("passage %d", i)
		out[i].Chunk.Source = src
	}
	return out
}
