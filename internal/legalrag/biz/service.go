// Package biz 实现法律文档与 FAQ 的入库、检索问答、删除与统计。
package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/legal-rag/internal/legalrag/metrics"
	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/internal/model"
	"github.com/kart-io/legal-rag/pkg/infra/pool"
	"github.com/kart-io/legal-rag/pkg/infra/tracing"
	"github.com/kart-io/legal-rag/pkg/llm"
)

const tracerName = "legal-rag/biz"

// NoAnswer is returned when nothing in the store matches the question.
const NoAnswer = "I couldn't find any relevant information to answer your question."

const unknownSource = "Unknown"

// Service 定义问答服务接口。
type Service interface {
	// IngestDocument 写入文档分块。
	IngestDocument(ctx context.Context, resourceID string, chunks []model.Chunk) error
	// IngestFAQ 写入 FAQ 记录。
	IngestFAQ(ctx context.Context, resourceID string, chunks []model.Chunk) error
	// Answer 检索并生成回答。
	Answer(ctx context.Context, question string, k int, includeSources bool) (*model.QueryResult, error)
	// DeleteResource 删除资源的全部记录，返回删除条数。
	DeleteResource(ctx context.Context, resourceID string) (int, error)
	// Stats 获取向量库统计信息。
	Stats(ctx context.Context) (*model.IndexStats, error)
}

// ServiceConfig 问答服务配置。
type ServiceConfig struct {
	TopK           int
	MaxTopK        int
	MaxTokens      int
	Temperature    float64
	EmbedBatchSize int
}

// RAGService 组合 Indexer、向量库与对话模型提供完整服务。
type RAGService struct {
	indexer       *Indexer
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	cache         *QueryCache
	config        *ServiceConfig
	metrics       *metrics.Metrics
}

var _ Service = (*RAGService)(nil)

// NewRAGService 创建服务实例。cache 与 p 可以为 nil。
func NewRAGService(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	cache *QueryCache,
	p *pool.Pool,
	m *metrics.Metrics,
	config *ServiceConfig,
) *RAGService {
	if m == nil {
		m = metrics.Default()
	}
	return &RAGService{
		indexer:       NewIndexer(vectorStore, embedProvider, p, &IndexerConfig{EmbedBatchSize: config.EmbedBatchSize}),
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		cache:         cache,
		config:        config,
		metrics:       m,
	}
}

func (s *RAGService) IngestDocument(ctx context.Context, resourceID string, chunks []model.Chunk) error {
	return s.ingest(ctx, resourceID, chunks, false)
}

func (s *RAGService) IngestFAQ(ctx context.Context, resourceID string, chunks []model.Chunk) error {
	return s.ingest(ctx, resourceID, chunks, true)
}

func (s *RAGService) ingest(ctx context.Context, resourceID string, chunks []model.Chunk, faq bool) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "legalrag.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("legalrag.resource_id", resourceID),
		attribute.Bool("legalrag.faq", faq),
		attribute.Int("legalrag.chunks", len(chunks)),
	)

	start := time.Now()
	n, err := s.indexer.Index(ctx, resourceID, chunks, faq)
	s.metrics.RecordIndexing(n, err)
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.Errorw("ingestion failed", "resource_id", resourceID, "faq", faq, "error", err.Error())
		return err
	}

	// 新内容可能改变已缓存的回答。
	s.cache.Clear(ctx)

	logger.Infow("resource ingested",
		"resource_id", resourceID,
		"faq", faq,
		"records", n,
		"duration", time.Since(start).String(),
	)
	return nil
}

// effectiveK 应用默认值与上限。
func (s *RAGService) effectiveK(k int) int {
	if k <= 0 {
		k = s.config.TopK
	}
	if s.config.MaxTopK > 0 && k > s.config.MaxTopK {
		k = s.config.MaxTopK
	}
	return k
}

func (s *RAGService) Answer(ctx context.Context, question string, k int, includeSources bool) (*model.QueryResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "legalrag.Answer")
	defer span.End()

	k = s.effectiveK(k)
	span.SetAttributes(attribute.Int("legalrag.k", k), attribute.Bool("legalrag.include_sources", includeSources))

	if cached, ok := s.cache.Get(ctx, question, k, includeSources); ok {
		s.metrics.RecordQuery(true, nil)
		span.SetAttributes(attribute.Bool("legalrag.cache_hit", true))
		return cached, nil
	}

	result, err := s.answer(ctx, question, k, includeSources)
	s.metrics.RecordQuery(false, err)
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.Errorw("query failed", "k", k, "error", err.Error())
		return nil, err
	}

	s.cache.Set(ctx, question, k, includeSources, result)
	logger.Infow("query answered",
		"k", k,
		"sources", len(result.Sources),
		"confidence", result.Confidence,
	)
	return result, nil
}

func (s *RAGService) answer(ctx context.Context, question string, k int, includeSources bool) (*model.QueryResult, error) {
	retrievalStart := time.Now()
	matches, err := s.retrieve(ctx, question, k)
	s.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	if len(matches) == 0 {
		return &model.QueryResult{Answer: NoAnswer, Sources: []string{}, Confidence: 0}, nil
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Chunk.Text
	}
	prompt := BuildPrompt(strings.Join(texts, "\n\n"), question)

	llmStart := time.Now()
	resp, err := s.chatProvider.Chat(ctx,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.WithMaxTokens(s.config.MaxTokens),
		llm.WithTemperature(s.config.Temperature),
	)
	var promptTokens, completionTokens int
	if err == nil && resp.TokenUsage != nil {
		promptTokens, completionTokens = resp.TokenUsage.PromptTokens, resp.TokenUsage.CompletionTokens
	}
	s.metrics.RecordLLMCall(time.Since(llmStart), promptTokens, completionTokens, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnswerGeneration, err)
	}

	sources := []string{}
	if includeSources {
		sources = collectSources(matches)
	}

	return &model.QueryResult{
		Answer:     strings.TrimSpace(resp.Content),
		Sources:    sources,
		Confidence: Confidence(len(matches), k),
	}, nil
}

func (s *RAGService) retrieve(ctx context.Context, question string, k int) ([]*store.Match, error) {
	vector, err := s.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return s.store.Search(ctx, vector, k)
}

func (s *RAGService) DeleteResource(ctx context.Context, resourceID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "legalrag.DeleteResource")
	defer span.End()
	span.SetAttributes(attribute.String("legalrag.resource_id", resourceID))

	n, err := deleteResourceRecords(ctx, s.store, resourceID)
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.Errorw("delete resource failed", "resource_id", resourceID, "deleted", n, "error", err.Error())
		return n, err
	}

	s.metrics.RecordDeletion(n)
	s.cache.Clear(ctx)
	logger.Infow("resource records deleted", "resource_id", resourceID, "deleted", n)
	return n, nil
}

func (s *RAGService) Stats(ctx context.Context) (*model.IndexStats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	namespaces := make(map[string]model.NamespaceStats, len(st.Partitions))
	for name, count := range st.Partitions {
		namespaces[name] = model.NamespaceStats{VectorCount: count}
	}
	return &model.IndexStats{
		TotalVectors:  st.RowCount,
		Dimension:     st.Dimension,
		IndexFullness: 0,
		Namespaces:    namespaces,
	}, nil
}

// BuildPrompt 构造发送给对话模型的提示词。
func BuildPrompt(contextText, question string) string {
	return "Context: " + contextText + "\n\nQuestion: " + question + "\n\nAnswer: Based on the provided context,"
}

// Confidence is the share of the requested k that was matched, capped at 1.
func Confidence(matches, k int) float64 {
	if matches <= 0 || k <= 0 {
		return 0
	}
	return min(float64(matches)/float64(k), 1.0)
}

func collectSources(matches []*store.Match) []string {
	seen := make(map[string]struct{}, len(matches))
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		src := m.Chunk.Source
		if src == "" {
			src = unknownSource
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	return sources
}
