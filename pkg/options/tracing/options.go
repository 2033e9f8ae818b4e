// Package tracing provides OpenTelemetry tracing configuration options.
package tracing

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Exporter types.
const (
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
	ExporterStdout   = "stdout"
	ExporterNoop     = "noop"
)

// Options 链路追踪配置。
type Options struct {
	// Enabled 是否启用链路追踪。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// ServiceName 上报的服务名。
	ServiceName string `json:"service-name" mapstructure:"service-name"`

	// Exporter 导出器类型 (otlp-grpc|otlp-http|stdout|noop)。
	Exporter string `json:"exporter" mapstructure:"exporter"`

	// Endpoint OTLP 接收端地址。
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	// Insecure 是否禁用 TLS。
	Insecure bool `json:"insecure" mapstructure:"insecure"`

	// SampleRatio 采样率，1 表示全部采样。
	SampleRatio float64 `json:"sample-ratio" mapstructure:"sample-ratio"`
}

// NewOptions 创建默认追踪配置。
func NewOptions() *Options {
	return &Options{
		Enabled:     false,
		ServiceName: "legal-rag",
		Exporter:    ExporterOTLPGRPC,
		Endpoint:    "localhost:4317",
		Insecure:    true,
		SampleRatio: 1.0,
	}
}

// AddFlags adds flags for tracing options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable OpenTelemetry tracing.")
	fs.StringVar(&o.ServiceName, p+"service-name", o.ServiceName, "Service name reported to the tracing backend.")
	fs.StringVar(&o.Exporter, p+"exporter", o.Exporter, "Trace exporter (otlp-grpc|otlp-http|stdout|noop).")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "OTLP collector endpoint.")
	fs.BoolVar(&o.Insecure, p+"insecure", o.Insecure, "Disable TLS for the OTLP exporter.")
	fs.Float64Var(&o.SampleRatio, p+"sample-ratio", o.SampleRatio, "Trace sampling ratio in [0, 1].")
}

// Validate validates the tracing options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	switch o.Exporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		if o.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing.endpoint is required for %s", o.Exporter))
		}
	case ExporterStdout, ExporterNoop:
	default:
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q", o.Exporter))
	}
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample-ratio must be in [0, 1]"))
	}
	return errs
}
