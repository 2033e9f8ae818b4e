package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kart-io/legal-rag/internal/model"
	"github.com/kart-io/legal-rag/pkg/component/milvus"
	milvusopts "github.com/kart-io/legal-rag/pkg/options/milvus"
)

// Metadata fields stored next to every vector.
const (
	FieldResourceID = "resource_id"
	FieldText       = "text"
	FieldSource     = "source"
	FieldFileType   = "file_type"
	FieldType       = "type"
	FieldQuestion   = "question"
	FieldAnswer     = "answer"
	FieldRowID      = "row_id"
	FieldChunkID    = "chunk_id"
)

const maxVarChar = 65535

// FAQ 的 text 由 question 和 answer 拼成，先检查 question、answer 以便报出原始字段。
var metaFields = []milvus.MetaField{
	{Name: FieldResourceID, MaxLen: 64},
	{Name: FieldQuestion, MaxLen: maxVarChar},
	{Name: FieldAnswer, MaxLen: maxVarChar},
	{Name: FieldText, MaxLen: maxVarChar},
	{Name: FieldSource, MaxLen: 512},
	{Name: FieldFileType, MaxLen: 16},
	{Name: FieldType, MaxLen: 16},
	{Name: FieldRowID, MaxLen: 32},
	{Name: FieldChunkID, MaxLen: 32},
}

func outputFields() []string {
	names := make([]string, len(metaFields))
	for i, f := range metaFields {
		names[i] = f.Name
	}
	return names
}

// milvusClient is the subset of *milvus.Client the store needs.
type milvusClient interface {
	EnsureCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	Insert(ctx context.Context, collectionName string, data *milvus.InsertData) error
	Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]milvus.SearchResult, error)
	QueryIDs(ctx context.Context, collectionName, filter string, limit int) ([]string, error)
	DeleteByIDs(ctx context.Context, collectionName string, ids []string) error
	GetCollectionStats(ctx context.Context, collectionName string) (*milvus.CollectionStats, error)
}

var _ milvusClient = (*milvus.Client)(nil)

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client     milvusClient
	collection string
	dimension  int
	metric     string
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client milvusClient, opts *milvusopts.Options) *MilvusStore {
	return &MilvusStore{
		client:     client,
		collection: opts.Collection,
		dimension:  opts.Dimension,
		metric:     opts.Metric,
	}
}

// EnsureCollection creates and loads the collection if needed.
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	return s.client.EnsureCollection(ctx, &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "legal documents and FAQ entries",
		Dimension:   s.dimension,
		Metric:      milvus.MetricType(s.metric),
		MetaFields:  metaFields,
	})
}

// Insert 批量插入记录到 Milvus。任一字段超过 VarChar 上限时整批不写入，
// 返回 *FieldTooLongError。
func (s *MilvusStore) Insert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	data := &milvus.InsertData{
		IDs:        make([]string, n),
		Embeddings: make([][]float32, n),
		Metadata:   make(map[string][]string, len(metaFields)),
	}
	for _, f := range metaFields {
		data.Metadata[f.Name] = make([]string, n)
	}

	for i, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("record %s: vector dimension %d, collection expects %d", r.ID, len(r.Vector), s.dimension)
		}
		data.IDs[i] = r.ID
		data.Embeddings[i] = r.Vector
		fields := chunkFields(&r.Chunk)
		for _, f := range metaFields {
			value := fields[f.Name]
			if len(value) > f.MaxLen {
				return &FieldTooLongError{RecordID: r.ID, RowID: r.Chunk.RowID, Field: f.Name, Size: len(value), Limit: f.MaxLen}
			}
			data.Metadata[f.Name][i] = value
		}
	}

	if err := s.client.Insert(ctx, s.collection, data); err != nil {
		return fmt.Errorf("failed to insert into milvus: %w", err)
	}
	return nil
}

// Search 执行向量相似度搜索。
func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int) ([]*Match, error) {
	results, err := s.client.Search(ctx, s.collection, vector, topK, outputFields())
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	matches := make([]*Match, len(results))
	for i, r := range results {
		matches[i] = &Match{
			ID:    r.ID,
			Score: r.Score,
			Chunk: chunkFromFields(r.Metadata),
		}
	}
	return matches, nil
}

func (s *MilvusStore) QueryIDsByResource(ctx context.Context, resourceID string, limit int) ([]string, error) {
	ids, err := s.client.QueryIDs(ctx, s.collection, milvus.EqualFilter(FieldResourceID, resourceID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query milvus: %w", err)
	}
	return ids, nil
}

func (s *MilvusStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if err := s.client.DeleteByIDs(ctx, s.collection, ids); err != nil {
		return fmt.Errorf("failed to delete from milvus: %w", err)
	}
	return nil
}

func (s *MilvusStore) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.client.GetCollectionStats(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	return &Stats{
		RowCount:   st.RowCount,
		Dimension:  st.Dimension,
		Partitions: st.Partitions,
	}, nil
}

func chunkFields(c *model.Chunk) map[string]string {
	return map[string]string{
		FieldResourceID: c.ResourceID,
		FieldText:       c.Text,
		FieldSource:     c.Source,
		FieldFileType:   c.FileType,
		FieldType:       string(c.Type),
		FieldQuestion:   c.Question,
		FieldAnswer:     c.Answer,
		FieldRowID:      c.RowID,
		FieldChunkID:    strconv.Itoa(c.Index),
	}
}

func chunkFromFields(m map[string]string) model.Chunk {
	idx, _ := strconv.Atoi(m[FieldChunkID])
	return model.Chunk{
		Text:       m[FieldText],
		Source:     m[FieldSource],
		ResourceID: m[FieldResourceID],
		FileType:   m[FieldFileType],
		Index:      idx,
		Type:       model.ResourceType(m[FieldType]),
		Question:   m[FieldQuestion],
		Answer:     m[FieldAnswer],
		RowID:      m[FieldRowID],
	}
}
