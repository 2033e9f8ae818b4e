// Package middleware provides HTTP middleware configuration options.
package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options groups the options of every middleware in the chain.
type Options struct {
	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
	CORS      *CORSOptions      `json:"cors" mapstructure:"cors"`
	Timeout   *TimeoutOptions   `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates the default middleware options.
func NewOptions() *Options {
	return &Options{
		Recovery:  NewRecoveryOptions(),
		RequestID: NewRequestIDOptions(),
		Logger:    NewLoggerOptions(),
		CORS:      NewCORSOptions(),
		Timeout:   NewTimeoutOptions(),
	}
}

// AddFlags adds the flags of every middleware under prefixes.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.Recovery.AddFlags(fs, append(prefixes, "recovery")...)
	o.RequestID.AddFlags(fs, append(prefixes, "request-id")...)
	o.Logger.AddFlags(fs, append(prefixes, "logger")...)
	o.CORS.AddFlags(fs, append(prefixes, "cors")...)
	o.Timeout.AddFlags(fs, append(prefixes, "timeout")...)
}

// Validate validates every middleware option.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	errs = append(errs, o.RequestID.Validate()...)
	errs = append(errs, o.CORS.Validate()...)
	errs = append(errs, o.Timeout.Validate()...)
	return errs
}
