// Package shell defines the boundary to the windowed UI host. The core drives
// exactly three signals; everything else about the window is outside this
// repository. Signal failures are best-effort by contract: callers log them
// and continue, they never escalate.
package shell

import "log/slog"

// Shell is the surface the orchestrator drives.
type Shell interface {
	// Reveal shows and focuses the main surface.
	Reveal() error
	// Navigate points the displayed content at a local address.
	Navigate(url string) error
	// RenderDiagnostic replaces the displayed content with a fully-formed
	// diagnostic document.
	RenderDiagnostic(html string) error
}

// Headless is a Shell for hosts without a window: each signal is logged and
// acknowledged. Used by the CLI runner and in tests.
type Headless struct {
	Log *slog.Logger
}

func NewHeadless(log *slog.Logger) *Headless {
	if log == nil {
		log = slog.Default()
	}
	return &Headless{Log: log}
}

func (h *Headless) Reveal() error {
	h.Log.Info("shell: reveal main surface")
	return nil
}

func (h *Headless) Navigate(url string) error {
	h.Log.Info("shell: navigate", "url", url)
	return nil
}

func (h *Headless) RenderDiagnostic(html string) error {
	h.Log.Warn("shell: diagnostic rendered", "bytes", len(html))
	return nil
}
