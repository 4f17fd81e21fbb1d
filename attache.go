package attache

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/attache/internal/config"
	"github.com/loykin/attache/internal/health"
	"github.com/loykin/attache/internal/history"
	"github.com/loykin/attache/internal/history/factory"
	"github.com/loykin/attache/internal/logger"
	"github.com/loykin/attache/internal/metrics"
	"github.com/loykin/attache/internal/orchestrator"
	iapi "github.com/loykin/attache/internal/server"
	"github.com/loykin/attache/internal/shell"
	"github.com/loykin/attache/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.FileConfig

type Mode = orchestrator.Mode

const (
	ModeProduction = orchestrator.ModeProduction
	ModeDev        = orchestrator.ModeDev
)

type Status = orchestrator.Status

type BackendStatus = supervisor.Status

// Shell is the surface an embedding desktop shell implements: reveal the
// window, navigate the webview, or render a diagnostic page.
type Shell = shell.Shell

type HistorySink = history.Sink

type HistoryConfig = cfg.HistoryConfig

type LogConfig = cfg.LogConfig

func LoadConfig(path string) (*Config, error) {
	return cfg.Load(path)
}

// NewHeadlessShell returns a Shell that only logs, for servers and tests.
func NewHeadlessShell(log *slog.Logger) Shell { return shell.NewHeadless(log) }

// App is a thin facade over the internal orchestrator wiring.
// It provides a stable public API for embedding.

type App struct {
	cfg  *Config
	sink *logger.Sink
	rec  *history.Recorder
	orc  *orchestrator.Orchestrator
	log  *slog.Logger
}

// New assembles an App from a loaded Config: the backend log sink, the
// supervisor factory, the health poller, and the optional history recorder.
func New(fc *Config, sh Shell, log *slog.Logger) (*App, error) {
	sink := logger.NewSink(fc.SinkConfig())

	var rec *history.Recorder
	if fc.History != nil {
		hs, err := factory.NewSink(fc.History.DSN, fc.History.Table)
		if err != nil {
			return nil, err
		}
		if hs != nil {
			rec = history.NewRecorder(hs, log)
		}
	}

	newBackend := func() orchestrator.Backend {
		return supervisor.New(fc.SupervisorConfig(), sink, log)
	}
	orc := orchestrator.New(fc.OrchestratorConfig(), newBackend, sh, health.New(log), rec, log)

	return &App{cfg: fc, sink: sink, rec: rec, orc: orc, log: log}, nil
}

// Boot runs the startup sequence for the configured mode. On failure the
// shell has already been handed a diagnostic page; the error is for logging
// and exit codes.
func (a *App) Boot() error { return a.orc.Boot() }

// Restart stops the current backend generation and boots a fresh one.
func (a *App) Restart() (string, error) { return a.orc.Restart() }

func (a *App) Status() Status      { return a.orc.Status() }
func (a *App) Tail(n int) []string { return a.orc.Tail(n) }
func (a *App) LogPath() string     { return a.sink.Path() }

// Shutdown stops the backend and releases the sink and history recorder.
func (a *App) Shutdown() {
	a.orc.Shutdown()
	if a.rec != nil {
		if err := a.rec.Close(); err != nil {
			a.log.Warn("history close failed", "error", err)
		}
	}
	if err := a.sink.Close(); err != nil {
		a.log.Warn("log sink close failed", "error", err)
	}
}

// NewControlServer starts the loopback control API for this App when the
// config carries a [control] section; it returns nil otherwise.
func (a *App) NewControlServer() (*http.Server, error) {
	if a.cfg.Control == nil {
		return nil, nil
	}
	return iapi.NewServer(a.cfg.Control.Listen, a.cfg.Control.BasePath, a.orc)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
