package redis

import (
	"context"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

// loggingAdapter routes go-redis internal logs to the global logger.
type loggingAdapter struct{}

func (l *loggingAdapter) Printf(_ context.Context, format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

func init() {
	goredis.SetLogger(&loggingAdapter{})
}
