package logger

import (
	"context"
	"io"
	"log/slog"
)

// ColorTextHandler decorates slog.TextHandler with an ANSI-colored level
// prefix so supervisor events stand out between echoed backend output lines.
type ColorTextHandler struct {
	*slog.TextHandler
	colored bool
}

// NewColorTextHandler creates a handler writing to w. When colored is false
// it degrades to the plain text handler (e.g. when stdout is not a terminal).
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, colored bool) *ColorTextHandler {
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(w, opts),
		colored:     colored,
	}
}

// Handle implements slog.Handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.colored {
		return h.TextHandler.Handle(ctx, r)
	}
	var color string
	switch {
	case r.Level >= slog.LevelError:
		color = "\033[31m" // red
	case r.Level >= slog.LevelWarn:
		color = "\033[33m" // yellow
	case r.Level >= slog.LevelInfo:
		color = "\033[32m" // green
	default:
		color = "\033[36m" // cyan
	}
	r.Message = color + r.Level.String() + "\033[0m  " + r.Message
	return h.TextHandler.Handle(ctx, r)
}
