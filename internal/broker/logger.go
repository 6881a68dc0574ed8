package broker

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultLogger adapts zerolog to the plumber Logger interface. The
// broker logs per-message events at debug level, so the level gate
// matters more than throughput here: PLUMBER_LOG_LEVEL (trace, debug,
// info, warn, error) controls it and defaults to info, which keeps the
// hot admit/deliver paths quiet in production.
type DefaultLogger struct {
	zl zerolog.Logger
}

// NewDefaultLogger returns a logger writing JSON lines to stderr.
func NewDefaultLogger() *DefaultLogger {
	level := zerolog.InfoLevel
	if v := os.Getenv("PLUMBER_LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}
	zl := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	return &DefaultLogger{zl: zl}
}

// emit attaches the key/value pairs to ev and fires it. A trailing key
// without a value is logged with a nil value rather than dropped.
func (l *DefaultLogger) emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	if len(kv)%2 != 0 {
		ev = ev.Interface(fmt.Sprint(kv[len(kv)-1]), nil)
	}
	ev.Msg(msg)
}

func (l *DefaultLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Debug(), msg, keysAndValues)
}

func (l *DefaultLogger) Info(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Info(), msg, keysAndValues)
}

func (l *DefaultLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Warn(), msg, keysAndValues)
}

func (l *DefaultLogger) Error(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Error(), msg, keysAndValues)
}
