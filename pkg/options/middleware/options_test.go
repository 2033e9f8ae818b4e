package middleware

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_FlagNames(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("middleware", pflag.ContinueOnError)
	o.AddFlags(fs, "middleware")

	for _, name := range []string{
		"middleware.cors.allow-origins",
		"middleware.timeout.timeout",
		"middleware.request-id.header",
		"middleware.logger.skip-paths",
		"middleware.recovery.enable-stack-trace",
	} {
		assert.NotNil(t, fs.Lookup(name), name)
	}

	require.NoError(t, fs.Parse([]string{"--middleware.timeout.timeout=5s"}))
	assert.Equal(t, 5*time.Second, o.Timeout.Timeout)
}

func TestCORSOptions_Validate(t *testing.T) {
	o := NewCORSOptions()
	assert.Empty(t, o.Validate())

	o.AllowOrigins = []string{"*"}
	assert.Len(t, o.Validate(), 1)

	o.AllowOrigins = nil
	o.AllowCredentials = false
	assert.Len(t, o.Validate(), 1)
}
