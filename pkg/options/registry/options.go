// Package registry provides resource registry configuration options.
package registry

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Registry drivers.
const (
	DriverMemory = "memory"
	DriverBolt   = "bolt"
)

// Options selects where resource metadata is kept.
type Options struct {
	// Driver is memory (process lifetime) or bolt (a local file).
	Driver string `json:"driver" mapstructure:"driver"`

	// Path is the bbolt database file, used by the bolt driver.
	Path string `json:"path" mapstructure:"path"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Driver: DriverMemory,
		Path:   "legal-rag.db",
	}
}

// AddFlags adds flags for registry options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Resource registry driver (memory|bolt).")
	fs.StringVar(&o.Path, p+"path", o.Path, "Path of the bolt registry file.")
}

// Validate validates the registry options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Driver {
	case DriverMemory:
	case DriverBolt:
		if o.Path == "" {
			errs = append(errs, fmt.Errorf("registry.path is required for the bolt driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown registry driver %q", o.Driver))
	}
	return errs
}
