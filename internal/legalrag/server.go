// Package legalrag wires the legal document and FAQ question-answering service.
package legalrag

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/version"

	"github.com/kart-io/legal-rag/internal/legalrag/biz"
	"github.com/kart-io/legal-rag/internal/legalrag/handler"
	"github.com/kart-io/legal-rag/internal/legalrag/metrics"
	"github.com/kart-io/legal-rag/internal/legalrag/registry"
	"github.com/kart-io/legal-rag/internal/legalrag/router"
	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/internal/pkg/chunker"
	"github.com/kart-io/legal-rag/pkg/component/milvus"
	"github.com/kart-io/legal-rag/pkg/component/redis"
	"github.com/kart-io/legal-rag/pkg/infra/pool"
	"github.com/kart-io/legal-rag/pkg/infra/server"
	"github.com/kart-io/legal-rag/pkg/infra/tracing"
	"github.com/kart-io/legal-rag/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/legal-rag/pkg/llm/huggingface"
	_ "github.com/kart-io/legal-rag/pkg/llm/openai"
	cacheopts "github.com/kart-io/legal-rag/pkg/options/cache"
	llmopts "github.com/kart-io/legal-rag/pkg/options/llm"
	logopts "github.com/kart-io/legal-rag/pkg/options/logger"
	middlewareopts "github.com/kart-io/legal-rag/pkg/options/middleware"
	milvusopts "github.com/kart-io/legal-rag/pkg/options/milvus"
	ragopts "github.com/kart-io/legal-rag/pkg/options/rag"
	registryopts "github.com/kart-io/legal-rag/pkg/options/registry"
	httpopts "github.com/kart-io/legal-rag/pkg/options/server/http"
	tracingopts "github.com/kart-io/legal-rag/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "legal-rag"

const embeddingCachePrefix = "legal-rag:emb:"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	MilvusOptions     *milvusopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	RAGOptions        *ragopts.Options
	CacheOptions      *cacheopts.Options
	RegistryOptions   *registryopts.Options
	TracingOptions    *tracingopts.Options
	MiddlewareOptions *middlewareopts.Options
	ShutdownTimeout   time.Duration
}

// Server represents the legal RAG server.
type Server struct {
	srv *server.Manager
}

// NewServer initializes every dependency and returns a ready Server.
// Resources acquired before a failure are released before returning.
func (cfg *Config) NewServer(ctx context.Context) (_ *Server, retErr error) {
	printBanner(cfg)

	// 1. 初始化日志
	if err := cfg.LogOptions.Init(map[string]interface{}{
		"service.name":    Name,
		"service.version": version.Get().GitVersion,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting legal RAG service...")

	var cleanups []func()
	defer func() {
		if retErr == nil {
			return
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	// 2. 初始化链路追踪
	tracer, err := tracing.NewProvider(cfg.TracingOptions, version.Get().GitVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	cleanups = append(cleanups, func() { _ = tracer.Shutdown(context.Background()) })

	// 3. 初始化 Milvus 与向量存储
	milvusClient, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	cleanups = append(cleanups, func() { _ = milvusClient.Close(context.Background()) })
	logger.Infow("Milvus client initialized", "address", cfg.MilvusOptions.Address)

	vectorStore := store.NewMilvusStore(milvusClient, cfg.MilvusOptions)
	if err := vectorStore.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare collection %s: %w", cfg.MilvusOptions.Collection, err)
	}
	logger.Infow("Vector store initialized",
		"collection", cfg.MilvusOptions.Collection,
		"dimension", cfg.MilvusOptions.Dimension,
	)

	// 4. 初始化 LLM 供应商
	warnMissingKey("embedding", cfg.EmbeddingOptions)
	warnMissingKey("chat", cfg.ChatOptions)

	var embedProvider llm.EmbeddingProvider
	embedProvider, err = llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 5. 初始化 Redis 缓存（可选）
	var (
		redisClient *redis.Client
		queryCache  *biz.QueryCache
	)
	if cfg.CacheOptions.Enabled {
		redisClient, err = redis.New(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
			redisClient = nil
		} else {
			cleanups = append(cleanups, func() { _ = redisClient.Close() })
			queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
				Enabled:   true,
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix,
			})
			embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient, &llm.EmbeddingCacheConfig{
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: embeddingCachePrefix,
			})
			logger.Infow("Redis cache initialized",
				"addr", cfg.CacheOptions.Redis.Addr(),
				"ttl", cfg.CacheOptions.TTL,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 6. 初始化 embedding 工作池
	embedPool, err := pool.NewPool("embed", &pool.Config{
		Capacity:       cfg.RAGOptions.EmbedWorkers,
		ExpiryDuration: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding pool: %w", err)
	}
	cleanups = append(cleanups, embedPool.Release)

	// 7. 初始化资源登记表
	resources, err := newRegistry(cfg.RegistryOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	cleanups = append(cleanups, func() { _ = resources.Close() })
	logger.Infow("Resource registry initialized", "driver", cfg.RegistryOptions.Driver)

	splitter, err := chunker.New(cfg.RAGOptions.ChunkSize, cfg.RAGOptions.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize splitter: %w", err)
	}

	// 8. 初始化 Biz 与 Handler 层
	m := metrics.Default()
	ragService := biz.NewRAGService(vectorStore, embedProvider, chatProvider, queryCache, embedPool, m, &biz.ServiceConfig{
		TopK:           cfg.RAGOptions.TopK,
		MaxTopK:        cfg.RAGOptions.MaxTopK,
		MaxTokens:      cfg.RAGOptions.MaxTokens,
		Temperature:    cfg.RAGOptions.Temperature,
		EmbedBatchSize: cfg.RAGOptions.EmbedBatchSize,
	})
	h := handler.NewHandler(ragService, resources, splitter, m)
	logger.Infow("RAG service initialized",
		"cache.enabled", queryCache != nil,
		"rag.top_k", cfg.RAGOptions.TopK,
		"rag.embed_workers", cfg.RAGOptions.EmbedWorkers,
	)

	// 9. 初始化服务器并注册路由
	serverManager, err := server.NewManager(
		server.WithHTTPOptions(cfg.HTTPOptions),
		server.WithMiddleware(cfg.MiddlewareOptions),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create server manager: %w", err)
	}
	router.Register(serverManager.HTTPServer().Engine(), h, cfg.RAGOptions.MaxUploadSize)

	// 关闭顺序：工作池、Milvus、Redis、登记表，然后是 tracer 与日志。
	serverManager.AddCloser("embed-pool", func(context.Context) error {
		embedPool.Release()
		return nil
	})
	serverManager.AddCloser("milvus", milvusClient.Close)
	if redisClient != nil {
		serverManager.AddCloser("redis", func(context.Context) error { return redisClient.Close() })
	}
	serverManager.AddCloser("registry", func(context.Context) error { return resources.Close() })
	serverManager.AddCloser("tracing", tracer.Shutdown)
	serverManager.AddCloser("logger", func(context.Context) error { return logger.Flush() })

	logger.Info("Legal RAG service is ready")
	return &Server{srv: serverManager}, nil
}

// Run starts the server and blocks until ctx is cancelled or a signal arrives.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx)
}

func newRegistry(opts *registryopts.Options) (registry.Registry, error) {
	switch opts.Driver {
	case registryopts.DriverBolt:
		return registry.NewBolt(opts.Path)
	default:
		return registry.NewMemory(), nil
	}
}

// warnMissingKey keeps startup going without a key; upstream calls fail per request.
func warnMissingKey(name string, opts *llmopts.ProviderOptions) {
	if opts.APIKey == "" {
		logger.Warnw("no api key configured, upstream requests may be rejected",
			"provider", name,
			"base_url", opts.BaseURL,
		)
	}
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Listen: %s\n", cfg.HTTPOptions.Addr)
	fmt.Printf("  Milvus: %s (%s)\n", cfg.MilvusOptions.Address, cfg.MilvusOptions.Collection)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
}
