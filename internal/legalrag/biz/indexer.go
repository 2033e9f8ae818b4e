package biz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/internal/model"
	"github.com/kart-io/legal-rag/pkg/infra/pool"
	"github.com/kart-io/legal-rag/pkg/llm"
)

const (
	// maxRecordsPerResource 单个资源删除时最多查询的记录数。
	maxRecordsPerResource = 10000
	// deleteBatchSize 每次按主键删除的记录数。
	deleteBatchSize = 100
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// EmbedBatchSize 每次向量化请求的文本数。
	EmbedBatchSize int
}

// Indexer 负责向量化并写入资源的所有分块。
type Indexer struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	pool          *pool.Pool
	config        *IndexerConfig
}

// NewIndexer 创建索引器实例。pool 为 nil 时按顺序向量化。
func NewIndexer(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, p *pool.Pool, config *IndexerConfig) *Indexer {
	if config == nil || config.EmbedBatchSize <= 0 {
		config = &IndexerConfig{EmbedBatchSize: 32}
	}
	return &Indexer{
		store:         vectorStore,
		embedProvider: embedProvider,
		pool:          p,
		config:        config,
	}
}

// Index 为每个分块分配记录 ID、向量化并一次性写入。
// 写入失败时尽力回滚该资源已写入的记录。
func (i *Indexer) Index(ctx context.Context, resourceID string, chunks []model.Chunk, faq bool) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	records := make([]*store.Record, len(chunks))
	texts := make([]string, len(chunks))
	for n, c := range chunks {
		c.ResourceID = resourceID
		if faq {
			c.Type = model.ResourceTypeFAQ
			c.Source = ""
			c.FileType = ""
		}
		records[n] = &store.Record{ID: uuid.NewString(), Chunk: c}
		texts[n] = c.Text
	}

	vectors, err := i.embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: embed: %w", ErrStoreWrite, err)
	}
	for n := range records {
		records[n].Vector = vectors[n]
	}

	if err := i.store.Insert(ctx, records); err != nil {
		i.rollback(ctx, resourceID)
		return 0, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	return len(records), nil
}

// embed 按批次并行向量化，结果顺序与输入一致。
func (i *Indexer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	size := i.config.EmbedBatchSize
	batches := (len(texts) + size - 1) / size
	vectors := make([][]float32, len(texts))

	task := func(ctx context.Context, b int) error {
		start := b * size
		end := min(start+size, len(texts))
		out, err := i.embedProvider.Embed(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("batch %d: %w", b, err)
		}
		if len(out) != end-start {
			return fmt.Errorf("batch %d: got %d embeddings for %d texts", b, len(out), end-start)
		}
		copy(vectors[start:end], out)
		return nil
	}

	if i.pool == nil {
		for b := 0; b < batches; b++ {
			if err := task(ctx, b); err != nil {
				return nil, err
			}
		}
		return vectors, nil
	}
	if err := i.pool.Run(ctx, batches, task); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (i *Indexer) rollback(ctx context.Context, resourceID string) {
	ctx = context.WithoutCancel(ctx)
	n, err := deleteResourceRecords(ctx, i.store, resourceID)
	if err != nil {
		logger.Errorw("rollback after failed insert did not complete",
			"resource_id", resourceID,
			"deleted", n,
			"error", err.Error(),
		)
		return
	}
	logger.Warnw("rolled back partial insert", "resource_id", resourceID, "deleted", n)
}

// deleteResourceRecords 删除资源的全部记录，返回删除条数。
func deleteResourceRecords(ctx context.Context, vectorStore store.VectorStore, resourceID string) (int, error) {
	ids, err := vectorStore.QueryIDsByResource(ctx, resourceID, maxRecordsPerResource)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		if err := vectorStore.DeleteByIDs(ctx, ids[start:end]); err != nil {
			return deleted, err
		}
		deleted += end - start
	}
	return deleted, nil
}
