// Package store defines the vector store port used by the answer pipeline.
package store

import (
	"context"
	"fmt"

	"github.com/kart-io/legal-rag/internal/model"
)

// Record is one embedded chunk ready to be written.
type Record struct {
	// ID 记录主键 (uuid)。
	ID string
	// Vector 嵌入向量。
	Vector []float32
	// Chunk 原始文本与元数据。
	Chunk model.Chunk
}

// FieldTooLongError 表示记录的某个元数据字段超过集合定义的长度上限 (字节)。
type FieldTooLongError struct {
	RecordID string
	RowID    string
	Field    string
	Size     int
	Limit    int
}

func (e *FieldTooLongError) Error() string {
	where := "record " + e.RecordID
	if e.RowID != "" {
		where = "row " + e.RowID
	}
	return fmt.Sprintf("%s: %s is %d bytes, exceeds limit %d", where, e.Field, e.Size, e.Limit)
}

// Match is a search hit.
type Match struct {
	ID    string
	Score float32
	Chunk model.Chunk
}

// Stats 描述集合的统计信息。
type Stats struct {
	RowCount   int64
	Dimension  int
	Partitions map[string]int64
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// Insert 批量写入记录。
	Insert(ctx context.Context, records []*Record) error

	// Search 返回与向量最相近的 topK 条记录，按相似度排序。
	Search(ctx context.Context, vector []float32, topK int) ([]*Match, error)

	// QueryIDsByResource 返回属于某个资源的记录 ID，最多 limit 条。
	QueryIDsByResource(ctx context.Context, resourceID string, limit int) ([]string, error)

	// DeleteByIDs 按主键删除记录。
	DeleteByIDs(ctx context.Context, ids []string) error

	// Stats 获取集合统计信息。
	Stats(ctx context.Context) (*Stats, error)
}
