// Package milvus wraps the Milvus SDK client for string-keyed collections
// of float vectors with VarChar metadata.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/legal-rag/pkg/options/milvus"
)

// Field names shared by every collection created through this package.
const (
	FieldID     = "id"
	FieldVector = "vector"

	maxIDLength = 64
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionSchema defines the schema for a vector collection.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	Metric      entity.MetricType
	MetaFields  []MetaField
}

// MetaField defines a VarChar metadata field in the collection.
type MetaField struct {
	Name   string
	MaxLen int
}

// MetricType maps a metric name from the options to the SDK type.
func MetricType(name string) entity.MetricType {
	switch name {
	case "L2":
		return entity.L2
	case "IP":
		return entity.IP
	default:
		return entity.COSINE
	}
}

// EnsureCollection creates the collection with its vector index when it does
// not exist yet, then loads it.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		if err := c.createCollection(ctx, schema); err != nil {
			return err
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	return nil
}

func (c *Client) createCollection(ctx context.Context, schema *CollectionSchema) error {
	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(false)

	collSchema.WithField(
		entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength).
			WithIsPrimaryKey(true),
	)

	collSchema.WithField(
		entity.NewField().
			WithName(FieldVector).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)

	for _, f := range schema.MetaFields {
		collSchema.WithField(
			entity.NewField().
				WithName(f.Name).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(f.MaxLen)),
		)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(schema.Metric, 128)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldVector, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return nil
}

// InsertData represents rows to be inserted into a collection. Every
// Metadata column must have len(IDs) values.
type InsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]string
}

// Insert inserts rows and flushes so they are searchable immediately.
func (c *Client) Insert(ctx context.Context, collectionName string, data *InsertData) error {
	if len(data.IDs) == 0 {
		return nil
	}
	if len(data.Embeddings) != len(data.IDs) {
		return fmt.Errorf("insert: %d ids but %d embeddings", len(data.IDs), len(data.Embeddings))
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns,
		column.NewColumnVarChar(FieldID, data.IDs),
		column.NewColumnFloatVector(FieldVector, len(data.Embeddings[0]), data.Embeddings),
	)
	for name, values := range data.Metadata {
		if len(values) != len(data.IDs) {
			return fmt.Errorf("insert: field %s has %d values, want %d", name, len(values), len(data.IDs))
		}
		columns = append(columns, column.NewColumnVarChar(name, values))
	}

	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	return nil
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Search performs a vector similarity search.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]SearchResult, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collectionName,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldVector).
		WithSearchParam("nprobe", "16").
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	searchResults := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		result := SearchResult{
			Score:    rs.Scores[i],
			Metadata: make(map[string]string, len(outputFields)),
		}

		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			result.ID = idCol.Data()[i]
		}

		for _, field := range rs.Fields {
			if col, ok := field.(*column.ColumnVarChar); ok {
				result.Metadata[col.Name()] = col.Data()[i]
			}
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// QueryIDs returns up to limit primary keys of the rows matching filter.
func (c *Client) QueryIDs(ctx context.Context, collectionName, filter string, limit int) ([]string, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collectionName).
		WithFilter(filter).
		WithOutputFields(FieldID).
		WithLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	col := rs.GetColumn(FieldID)
	if col == nil {
		return []string{}, nil
	}
	idCol, ok := col.(*column.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("unexpected id column type %T", col)
	}
	return idCol.Data(), nil
}

// DeleteByIDs deletes rows by primary key.
func (c *Client) DeleteByIDs(ctx context.Context, collectionName string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collectionName).WithStringIDs(FieldID, ids)); err != nil {
		return fmt.Errorf("failed to delete by ids: %w", err)
	}
	return nil
}

// CollectionStats describes a collection.
type CollectionStats struct {
	RowCount   int64
	Dimension  int
	Partitions map[string]int64
}

// GetCollectionStats returns the row count, the vector dimension from the
// schema and the row count of each partition.
func (c *Client) GetCollectionStats(ctx context.Context, collectionName string) (*CollectionStats, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return nil, fmt.Errorf("failed to get collection stats: %w", err)
	}

	out := &CollectionStats{Partitions: make(map[string]int64)}
	if out.RowCount, err = parseRowCount(stats); err != nil {
		return nil, err
	}

	coll, err := c.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(collectionName))
	if err != nil {
		return nil, fmt.Errorf("failed to describe collection: %w", err)
	}
	if coll.Schema != nil {
		for _, f := range coll.Schema.Fields {
			if f.Name != FieldVector {
				continue
			}
			dim, err := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
			if err != nil {
				return nil, fmt.Errorf("invalid vector dimension %q: %w", f.TypeParams[entity.TypeParamDim], err)
			}
			out.Dimension = dim
		}
	}

	partitions, err := c.client.ListPartitions(ctx, milvusclient.NewListPartitionOption(collectionName))
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	for _, name := range partitions {
		pstats, err := c.client.GetPartitionStats(ctx, milvusclient.NewGetPartitionStatsOption(collectionName, name))
		if err != nil {
			return nil, fmt.Errorf("failed to get partition stats: %w", err)
		}
		if out.Partitions[name], err = parseRowCount(pstats); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func parseRowCount(stats map[string]string) (int64, error) {
	val, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid row_count %q: %w", val, err)
	}
	return n, nil
}

// EqualFilter builds a boolean expression matching field == value.
func EqualFilter(field, value string) string {
	return fmt.Sprintf("%s == %s", field, strconv.Quote(value))
}
