package app

import (
	"io"
	"log/slog"
)

// newLogger builds the app's isolated logger; it never touches the process
// default, so embedders can run several apps side by side. Level and format
// arrive pre-validated by cli.Parse; a programmatic caller handing in
// something else gets info/json rather than a silently muted logger.
func newLogger(level, format string, outW io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(outW, opts))
	}
	return slog.New(slog.NewJSONHandler(outW, opts))
}
