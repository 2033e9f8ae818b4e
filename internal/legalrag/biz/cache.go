package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/model"
	"github.com/kart-io/legal-rag/pkg/llm"
	"github.com/kart-io/legal-rag/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 查询结果缓存。store 为 nil 或未启用时所有操作都是空操作。
type QueryCache struct {
	store  llm.CacheStore
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(store llm.CacheStore, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			TTL:       time.Hour,
			KeyPrefix: "legal-rag:query:",
		}
	}
	return &QueryCache{store: store, config: config}
}

func (c *QueryCache) enabled() bool {
	return c != nil && c.config.Enabled && c.store != nil
}

// cacheKey 由问题与查询参数生成 (SHA256)。
func (c *QueryCache) cacheKey(question string, k int, includeSources bool) string {
	h := sha256.Sum256([]byte(question + "|" + strconv.Itoa(k) + "|" + strconv.FormatBool(includeSources)))
	return c.config.KeyPrefix + hex.EncodeToString(h[:])
}

// Get 从缓存获取查询结果。读取失败按未命中处理。
func (c *QueryCache) Get(ctx context.Context, question string, k int, includeSources bool) (*model.QueryResult, bool) {
	if !c.enabled() {
		return nil, false
	}

	key := c.cacheKey(question, k, includeSources)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warnw("failed to get from query cache", "error", err.Error(), "key", key)
		return nil, false
	}
	if !ok {
		logger.Debugw("query cache miss", "key", key)
		return nil, false
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("failed to unmarshal cached result", "error", err.Error(), "key", key)
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	if result.Sources == nil {
		result.Sources = []string{}
	}

	logger.Infow("query cache hit", "key", key, "answer_length", len(result.Answer))
	return &result, true
}

// Set 将查询结果写入缓存。
func (c *QueryCache) Set(ctx context.Context, question string, k int, includeSources bool, result *model.QueryResult) {
	if !c.enabled() {
		return
	}

	key := c.cacheKey(question, k, includeSources)
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal result for caching", "error", err.Error())
		return
	}
	if err := c.store.Set(ctx, key, data, c.config.TTL); err != nil {
		logger.Warnw("failed to set query cache", "error", err.Error(), "key", key)
		return
	}
	logger.Debugw("cached query result", "key", key, "ttl", c.config.TTL)
}

// Clear 清除全部查询缓存。
func (c *QueryCache) Clear(ctx context.Context) {
	if !c.enabled() {
		return
	}
	n, err := c.store.DeletePrefix(ctx, c.config.KeyPrefix)
	if err != nil {
		logger.Warnw("failed to clear query cache", "error", err.Error())
		return
	}
	logger.Infow("cleared query cache", "deleted_count", n)
}
