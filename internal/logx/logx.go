// Package logx builds the process logger and adapts it for gorm.
package logx

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm/logger"
)

// New returns the root logger. An unknown level falls back to info.
func New(level string, w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "tally",
		Level:  lvl,
		Output: w,
	})
}

// Gorm routes gorm's logging through l. SQL statements are only traced at
// debug level; slow queries and errors are always logged.
func Gorm(l hclog.Logger) logger.Interface {
	sql := l.Named("sql")
	level := logger.Warn
	if sql.IsDebug() || sql.IsTrace() {
		level = logger.Info
	}
	return logger.New(
		sql.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: levelFor(level)}),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func levelFor(l logger.LogLevel) hclog.Level {
	if l == logger.Info {
		return hclog.Debug
	}
	return hclog.Warn
}

// Discard is a logger for tests and tools that want silence.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
