// Package rag provides retrieval-and-answer configuration options.
package rag

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains the ingestion and query tuning knobs.
type Options struct {
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the number of runes shared by adjacent chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of matches used when the request does not set one.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MaxTopK caps max_results from the request.
	MaxTopK int `json:"max-top-k" mapstructure:"max-top-k"`

	// MaxTokens bounds the generated answer.
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Temperature is the sampling temperature for the chat model.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// EmbedBatchSize is the number of texts per embedding request.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// EmbedWorkers is the number of embedding requests in flight per ingestion.
	EmbedWorkers int `json:"embed-workers" mapstructure:"embed-workers"`

	// MaxUploadSize is the largest accepted upload in bytes.
	MaxUploadSize int64 `json:"max-upload-size" mapstructure:"max-upload-size"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		TopK:           5,
		MaxTopK:        50,
		MaxTokens:      512,
		Temperature:    0.7,
		EmbedBatchSize: 32,
		EmbedWorkers:   4,
		MaxUploadSize:  32 << 20,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum chunk length in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Default number of matches per query.")
	fs.IntVar(&o.MaxTopK, p+"max-top-k", o.MaxTopK, "Upper bound for max_results.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens in a generated answer.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Chat sampling temperature.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Texts per embedding request.")
	fs.IntVar(&o.EmbedWorkers, p+"embed-workers", o.EmbedWorkers, "Concurrent embedding requests per ingestion.")
	fs.Int64Var(&o.MaxUploadSize, p+"max-upload-size", o.MaxUploadSize, "Maximum upload size in bytes.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.MaxTopK < o.TopK {
		errs = append(errs, fmt.Errorf("rag.max-top-k must be >= top-k"))
	}
	if o.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-tokens must be positive"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("rag.temperature must be in [0, 2]"))
	}
	if o.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.embed-batch-size must be positive"))
	}
	if o.EmbedWorkers <= 0 {
		errs = append(errs, fmt.Errorf("rag.embed-workers must be positive"))
	}
	if o.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-upload-size must be positive"))
	}
	return errs
}
