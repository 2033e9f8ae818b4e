// Package options contains flags and options for initializing the legal RAG server.
package options

import (
	"fmt"
	"os"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/legal-rag/internal/legalrag"
	cliflag "github.com/kart-io/legal-rag/pkg/app/cliflag"
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

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus connection and collection configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains chunking and answering configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// CacheOptions contains query cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// RegistryOptions contains resource registry configuration.
	RegistryOptions *registryopts.Options `json:"registry" mapstructure:"registry"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// MiddlewareOptions contains HTTP middleware configuration.
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		RAGOptions:        ragopts.NewOptions(),
		CacheOptions:      cacheopts.NewOptions(),
		RegistryOptions:   registryopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		ShutdownTimeout:   30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name. Flag names
// match the config keys, e.g. --milvus.address and milvus.address.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"), "http")
	o.LogOptions.AddFlags(fss.FlagSet("log"), "log")
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"), "milvus")
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.RAGOptions.AddFlags(fss.FlagSet("rag"), "rag")
	o.CacheOptions.AddFlags(fss.FlagSet("cache"), "cache")
	o.RegistryOptions.AddFlags(fss.FlagSet("registry"), "registry")
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"), "tracing")
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"), "middleware")

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete fills in values from the legacy environment variables when the
// primary option is empty.
func (o *ServerOptions) Complete() error {
	hfToken := firstEnv("HF_TOKEN", "HUGGINGFACE_API_TOKEN")

	if err := o.EmbeddingOptions.Complete(hfToken, os.Getenv("EMBEDDING_MODEL")); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(hfToken, os.Getenv("LLM_MODEL")); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if o.MilvusOptions.Password == "" {
		o.MilvusOptions.Password = os.Getenv("MILVUS_TOKEN")
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, prefixed("embedding", o.EmbeddingOptions.Validate())...)
	errs = append(errs, prefixed("chat", o.ChatOptions.Validate())...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.RegistryOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be positive"))
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a legalrag.Config based on ServerOptions.
func (o *ServerOptions) Config() (*legalrag.Config, error) {
	return &legalrag.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		MilvusOptions:     o.MilvusOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		RAGOptions:        o.RAGOptions,
		CacheOptions:      o.CacheOptions,
		RegistryOptions:   o.RegistryOptions,
		TracingOptions:    o.TracingOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		ShutdownTimeout:   o.ShutdownTimeout,
	}, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func prefixed(group string, errs []error) []error {
	for i, err := range errs {
		errs[i] = fmt.Errorf("%s.%w", group, err)
	}
	return errs
}
