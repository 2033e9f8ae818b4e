package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/pkg/utils/json"
)

// CacheStore 缓存存储接口，由 Redis 组件实现。
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		TTL:       24 * time.Hour, // Embedding 结果相对稳定，可以缓存更长时间
		KeyPrefix: "legal-rag:emb:",
	}
}

// CachedEmbeddingProvider 提供 Embedding 缓存功能的包装器。
// 缓存读写失败只记录日志，不影响向量生成。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	store    CacheStore
	config   *EmbeddingCacheConfig
}

// 确保 CachedEmbeddingProvider 实现了 EmbeddingProvider 接口。
var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。
func NewCachedEmbeddingProvider(provider EmbeddingProvider, store CacheStore, config *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		store:    store,
		config:   config,
	}
}

// cacheKey 基于模型供应商与文本生成缓存键（SHA256）。
func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.provider.Name() + "\x00" + text))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Embed 批量生成 Embedding，仅对未命中的文本调用底层 provider。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.store == nil {
		return c.provider.Embed(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	var uncachedIndices []int
	var uncachedTexts []string

	for i, text := range texts {
		if embedding, ok := c.lookup(ctx, text); ok {
			embeddings[i] = embedding
			continue
		}
		uncachedIndices = append(uncachedIndices, i)
		uncachedTexts = append(uncachedTexts, text)
	}

	if len(uncachedTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	logger.Debugw("embedding cache miss", "total", len(texts), "uncached", len(uncachedTexts))
	fresh, err := c.provider.Embed(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(uncachedTexts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(fresh), len(uncachedTexts))
	}

	for i, idx := range uncachedIndices {
		embeddings[idx] = fresh[i]
		c.save(ctx, uncachedTexts[i], fresh[i])
	}
	return embeddings, nil
}

func (c *CachedEmbeddingProvider) lookup(ctx context.Context, text string) ([]float32, bool) {
	key := c.cacheKey(text)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warnw("embedding cache get failed", "error", err.Error())
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil || len(embedding) == 0 {
		// 删除损坏的缓存
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	return embedding, true
}

func (c *CachedEmbeddingProvider) save(ctx context.Context, text string, embedding []float32) {
	data, err := json.Marshal(embedding)
	if err != nil {
		logger.Warnw("failed to marshal embedding for caching", "error", err.Error())
		return
	}
	if err := c.store.Set(ctx, c.cacheKey(text), data, c.config.TTL); err != nil {
		logger.Warnw("failed to cache embedding", "error", err.Error())
	}
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name()
}

// ClearCache 清除所有 Embedding 缓存。
func (c *CachedEmbeddingProvider) ClearCache(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	n, err := c.store.DeletePrefix(ctx, c.config.KeyPrefix)
	if err != nil {
		return err
	}
	logger.Infow("cleared embedding cache", "deleted_count", n)
	return nil
}
