package app

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. The TUI owns the terminal, so log
// output goes to a file under the state dir; a bad state dir degrades to a
// disabled logger rather than failing startup.
func NewLogger(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = io.Discard
	if cfg.StateDir != "" {
		if err := os.MkdirAll(cfg.StateDir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(cfg.StateDir, "ollamadash.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				out = f
			}
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
