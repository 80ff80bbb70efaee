package daemon

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger. Subsystems derive children with a
// component field.
func NewLogger(cfg LoggingConfig, out io.Writer, nodeID string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	w := out
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp().Str("app", "qor")
	if nodeID != "" {
		ctx = ctx.Str("node", nodeID)
	}
	return ctx.Logger()
}
