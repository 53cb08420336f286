package sqlite

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the slog.Logger a Store logs through. When path is
// empty, records go to stderr; otherwise they go to a lumberjack-rotated
// file capped at maxSizeMB per file, keeping a handful of backups.
func NewLogger(path string, maxSizeMB int) *slog.Logger {
	var w io.Writer = os.Stderr
	if path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}
