package orchestrator

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/attache/internal/errorpage"
	"github.com/loykin/attache/internal/health"
	"github.com/loykin/attache/internal/history"
	"github.com/loykin/attache/internal/metrics"
	"github.com/loykin/attache/internal/shell"
	"github.com/loykin/attache/internal/supervisor"
)

// Mode selects whether the orchestrator owns the backend process. In dev mode
// the developer runs the backend out-of-band and only health polling executes.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeDev        Mode = "dev"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultPollTimeout  = 15 * time.Second
	DefaultLogTailLines = 20
)

// ErrNoBackend is returned by Restart when no supervisor is tracked yet, e.g.
// before the first boot or in dev mode.
var ErrNoBackend = errors.New("no backend supervisor available")

// Shown instead of a log tail when a dev-mode health check times out; there
// is no supervised process to read logs from.
var devModeLogHint = []string{
	"Dev mode: backend not responding.",
	"Start it with: npm run dev:backend",
}

// Backend is the slice of supervisor behavior the orchestrator drives.
// *supervisor.Supervisor implements it.
type Backend interface {
	SpawnWithRetry() error
	Shutdown()
	ReadLastLogLines(n int) []string
	Snapshot() supervisor.Status
	IncRestarts() int
}

var _ Backend = (*supervisor.Supervisor)(nil)

// Config holds the orchestrator's wiring. BackendURL is where the shell is
// pointed once the backend is ready; HealthURL is the readiness endpoint;
// RestartURL is the control-API target embedded in the diagnostic document.
type Config struct {
	Mode         Mode
	BackendURL   string
	HealthURL    string
	RestartURL   string
	PollInterval time.Duration // default 250ms
	PollTimeout  time.Duration // default 15s
	LogTailLines int           // default 20
}

// Orchestrator sequences the supervisor and the health poller into the two
// externally visible workflows: initial boot and user-triggered restart. The
// tracked backend slot is the only shared mutable state; the lock is held
// only to read or replace it, never across a blocking wait.
type Orchestrator struct {
	cfg        Config
	log        *slog.Logger
	sh         shell.Shell
	poller     *health.Poller
	rec        *history.Recorder
	newBackend func() Backend

	mu      sync.Mutex
	backend Backend
}

// New creates an Orchestrator. newBackend is invoked once per production boot
// to build the supervisor generation owner; it is unused in dev mode.
func New(cfg Config, newBackend func() Backend, sh shell.Shell, poller *health.Poller, rec *history.Recorder, log *slog.Logger) *Orchestrator {
	if cfg.Mode == "" {
		cfg.Mode = ModeProduction
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.LogTailLines <= 0 {
		cfg.LogTailLines = DefaultLogTailLines
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{cfg: cfg, log: log, sh: sh, poller: poller, rec: rec, newBackend: newBackend}
}

// Boot runs the initial startup sequence: spawn with retry, wait for
// readiness, then reveal the UI. Any fatal outcome renders the diagnostic
// document with the failure message and a bounded log tail before returning
// the error.
func (o *Orchestrator) Boot() error {
	if o.cfg.Mode == ModeDev {
		return o.bootDev()
	}

	b := o.newBackend()
	o.mu.Lock()
	o.backend = b
	o.mu.Unlock()

	metrics.IncSpawnAttempt()
	spawnedAt := time.Now()
	if err := b.SpawnWithRetry(); err != nil {
		o.log.Error("backend spawn failed", "error", err)
		metrics.IncSpawnFailure()
		o.rec.Record(history.EventSpawnFailed, 0, err.Error())
		o.showError(err.Error(), b.ReadLastLogLines(o.cfg.LogTailLines))
		return err
	}
	pid := b.Snapshot().PID
	o.rec.Record(history.EventSpawned, pid, "")

	if err := o.poller.Wait(o.cfg.HealthURL, o.cfg.PollInterval, o.cfg.PollTimeout); err != nil {
		o.log.Error("backend never became healthy", "error", err)
		metrics.IncPollTimeout()
		o.rec.Record(history.EventUnreachable, pid, err.Error())
		o.showError(err.Error(), b.ReadLastLogLines(o.cfg.LogTailLines))
		return err
	}
	metrics.IncPollReady()
	metrics.ObserveReady(time.Since(spawnedAt).Seconds())
	o.rec.Record(history.EventReady, pid, "")

	o.signal("navigate", func() error { return o.sh.Navigate(o.cfg.BackendURL) })
	o.signal("reveal", o.sh.Reveal)
	return nil
}

// bootDev assumes the backend is run out-of-band: only health polling
// executes, and a timeout shows an informational hint rather than a log tail.
func (o *Orchestrator) bootDev() error {
	if err := o.poller.Wait(o.cfg.HealthURL, o.cfg.PollInterval, o.cfg.PollTimeout); err != nil {
		o.log.Error("dev-mode backend not responding", "error", err)
		metrics.IncPollTimeout()
		o.showError(err.Error(), devModeLogHint)
		return err
	}
	metrics.IncPollReady()
	o.signal("reveal", o.sh.Reveal)
	return nil
}

// Restart is the user-triggered flow: shut down the current generation,
// respawn with retry, wait for readiness, and point the shell back at the
// backend. It fails immediately when no supervisor is tracked. Any failure
// propagates as a single error for the caller to surface.
func (o *Orchestrator) Restart() (string, error) {
	o.mu.Lock()
	b := o.backend
	o.mu.Unlock()
	if b == nil {
		return "", ErrNoBackend
	}

	o.log.Info("restarting backend on user request")
	b.Shutdown()
	metrics.IncShutdown()
	o.rec.Record(history.EventStopped, 0, "restart requested")

	metrics.IncSpawnAttempt()
	if err := b.SpawnWithRetry(); err != nil {
		metrics.IncSpawnFailure()
		o.rec.Record(history.EventSpawnFailed, 0, err.Error())
		return "", err
	}
	if err := o.poller.Wait(o.cfg.HealthURL, o.cfg.PollInterval, o.cfg.PollTimeout); err != nil {
		metrics.IncPollTimeout()
		o.rec.Record(history.EventUnreachable, b.Snapshot().PID, err.Error())
		return "", err
	}
	metrics.IncPollReady()
	b.IncRestarts()
	metrics.IncRestart()
	o.rec.Record(history.EventRestarted, b.Snapshot().PID, "")

	o.signal("navigate", func() error { return o.sh.Navigate(o.cfg.BackendURL) })
	return "backend restarted", nil
}

// Shutdown stops the tracked backend, if any. Safe to call from a
// window-close handler and repeatedly.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	b := o.backend
	o.mu.Unlock()
	if b == nil {
		return
	}
	b.Shutdown()
	metrics.IncShutdown()
	o.rec.Record(history.EventStopped, 0, "")
}

// Status describes the orchestrator for the control API.
type Status struct {
	Mode       Mode               `json:"mode"`
	BackendURL string             `json:"backend_url"`
	Backend    *supervisor.Status `json:"backend,omitempty"`
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	b := o.backend
	o.mu.Unlock()
	st := Status{Mode: o.cfg.Mode, BackendURL: o.cfg.BackendURL}
	if b != nil {
		snap := b.Snapshot()
		st.Backend = &snap
	}
	return st
}

// Tail returns up to the last n captured backend log lines.
func (o *Orchestrator) Tail(n int) []string {
	o.mu.Lock()
	b := o.backend
	o.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.ReadLastLogLines(n)
}

// showError replaces the displayed content with the diagnostic document.
// RenderDiagnostic is responsible for making the surface visible; Reveal and
// Navigate stay reserved for the healthy path.
func (o *Orchestrator) showError(message string, logLines []string) {
	html := errorpage.Render(message, logLines, o.cfg.RestartURL)
	o.signal("render diagnostic", func() error { return o.sh.RenderDiagnostic(html) })
}

// signal delivers a best-effort shell signal: failures are logged and
// swallowed, never escalated.
func (o *Orchestrator) signal(name string, fn func() error) {
	if err := fn(); err != nil {
		o.log.Warn("shell signal failed", "signal", name, "error", err)
	}
}
