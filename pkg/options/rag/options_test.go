package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr int
	}{
		{"defaults", func(o *Options) {}, 0},
		{"overlap equals size", func(o *Options) { o.ChunkOverlap = o.ChunkSize }, 1},
		{"negative overlap", func(o *Options) { o.ChunkOverlap = -1 }, 1},
		{"cap below default k", func(o *Options) { o.MaxTopK = 2 }, 1},
		{"zero workers and batch", func(o *Options) { o.EmbedWorkers = 0; o.EmbedBatchSize = 0 }, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.Len(t, o.Validate(), tt.wantErr)
		})
	}
}
