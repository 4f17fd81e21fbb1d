package orchestrator

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loykin/attache/internal/health"
	"github.com/loykin/attache/internal/supervisor"
)

type fakeBackend struct {
	spawnErr  error
	spawns    int
	shutdowns int
	restarts  int
	lines     []string
}

func (f *fakeBackend) SpawnWithRetry() error { f.spawns++; return f.spawnErr }
func (f *fakeBackend) Shutdown()             { f.shutdowns++ }
func (f *fakeBackend) ReadLastLogLines(n int) []string {
	if len(f.lines) > n {
		return f.lines[len(f.lines)-n:]
	}
	return f.lines
}
func (f *fakeBackend) Snapshot() supervisor.Status {
	return supervisor.Status{Running: true, PID: 1234}
}
func (f *fakeBackend) IncRestarts() int { f.restarts++; return f.restarts }

type recordingShell struct {
	reveals     int
	navigates   []string
	diagnostics []string
	failNav     bool
}

func (r *recordingShell) Reveal() error { r.reveals++; return nil }
func (r *recordingShell) Navigate(url string) error {
	if r.failNav {
		return errors.New("window gone")
	}
	r.navigates = append(r.navigates, url)
	return nil
}
func (r *recordingShell) RenderDiagnostic(html string) error {
	r.diagnostics = append(r.diagnostics, html)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readyServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func unhealthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOrchestrator(cfg Config, b Backend, sh *recordingShell) *Orchestrator {
	factory := func() Backend { return b }
	if b == nil {
		factory = func() Backend { panic("factory must not be called") }
	}
	return New(cfg, factory, sh, health.New(discardLogger()), nil, discardLogger())
}

func TestBootHappyPath(t *testing.T) {
	srv := readyServer(t)
	b := &fakeBackend{}
	sh := &recordingShell{}
	o := newOrchestrator(Config{
		BackendURL:   "http://127.0.0.1:3001",
		HealthURL:    srv.URL + "/health",
		PollInterval: 20 * time.Millisecond,
		PollTimeout:  time.Second,
	}, b, sh)

	if err := o.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if b.spawns != 1 {
		t.Fatalf("expected one spawn, got %d", b.spawns)
	}
	if sh.reveals != 1 || len(sh.navigates) != 1 || sh.navigates[0] != "http://127.0.0.1:3001" {
		t.Fatalf("shell not driven to backend: %+v", sh)
	}
	if len(sh.diagnostics) != 0 {
		t.Fatalf("no diagnostic expected on success")
	}
}

func TestBootSpawnFailureShowsDiagnostic(t *testing.T) {
	srv := readyServer(t)
	b := &fakeBackend{
		spawnErr: &supervisor.RetryExhaustedError{Attempts: 3, LastErr: errors.New("no such binary")},
		lines:    []string{"boot log A", "boot log B"},
	}
	sh := &recordingShell{}
	o := newOrchestrator(Config{HealthURL: srv.URL, PollTimeout: time.Second}, b, sh)

	err := o.Boot()
	if err == nil {
		t.Fatalf("expected boot failure")
	}
	if len(sh.diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(sh.diagnostics))
	}
	doc := sh.diagnostics[0]
	for _, want := range []string{"after 3 attempts", "boot log A", "boot log B"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("diagnostic missing %q:\n%s", want, doc)
		}
	}
	if sh.reveals != 0 || len(sh.navigates) != 0 {
		t.Fatalf("reveal/navigate must not fire on failure: %+v", sh)
	}
}

func TestBootHealthTimeoutEmbedsLogTail(t *testing.T) {
	srv := unhealthyServer(t)
	lines := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		lines = append(lines, "line-"+strings.Repeat("x", i%3))
	}
	b := &fakeBackend{lines: lines}
	sh := &recordingShell{}
	o := newOrchestrator(Config{
		HealthURL:    srv.URL,
		PollInterval: 20 * time.Millisecond,
		PollTimeout:  150 * time.Millisecond,
	}, b, sh)

	err := o.Boot()
	var te *health.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected health timeout, got %v", err)
	}
	if len(sh.diagnostics) != 1 {
		t.Fatalf("expected diagnostic on timeout")
	}
	// Only the last 20 of the 25 lines are embedded.
	doc := sh.diagnostics[0]
	for _, l := range lines[5:] {
		if !strings.Contains(doc, l) {
			t.Fatalf("diagnostic missing tail line %q", l)
		}
	}
	if sh.reveals != 0 || len(sh.navigates) != 0 {
		t.Fatalf("reveal/navigate must not fire on timeout: %+v", sh)
	}
}

func TestBootDevModeSkipsSpawn(t *testing.T) {
	srv := unhealthyServer(t)
	sh := &recordingShell{}
	o := newOrchestrator(Config{
		Mode:         ModeDev,
		HealthURL:    srv.URL,
		PollInterval: 20 * time.Millisecond,
		PollTimeout:  100 * time.Millisecond,
	}, nil, sh) // factory panics if invoked

	if err := o.Boot(); err == nil {
		t.Fatalf("expected dev-mode timeout")
	}
	if len(sh.diagnostics) != 1 || !strings.Contains(sh.diagnostics[0], "Dev mode: backend not responding.") {
		t.Fatalf("expected dev-mode hint in diagnostic")
	}
}

func TestBootDevModeReadyRevealsOnly(t *testing.T) {
	srv := readyServer(t)
	sh := &recordingShell{}
	o := newOrchestrator(Config{Mode: ModeDev, HealthURL: srv.URL, PollTimeout: time.Second}, nil, sh)
	if err := o.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if sh.reveals != 1 || len(sh.navigates) != 0 {
		t.Fatalf("dev boot should reveal without navigating: %+v", sh)
	}
}

func TestRestartWithoutBackendFailsFast(t *testing.T) {
	sh := &recordingShell{}
	o := newOrchestrator(Config{HealthURL: "http://127.0.0.1:1"}, nil, sh)
	if _, err := o.Restart(); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

func TestRestartCyclesGeneration(t *testing.T) {
	srv := readyServer(t)
	b := &fakeBackend{}
	sh := &recordingShell{}
	o := newOrchestrator(Config{
		BackendURL:   "http://127.0.0.1:3001",
		HealthURL:    srv.URL,
		PollInterval: 20 * time.Millisecond,
		PollTimeout:  time.Second,
	}, b, sh)

	if err := o.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	msg, err := o.Restart()
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if msg == "" {
		t.Fatalf("expected outcome message")
	}
	if b.shutdowns != 1 || b.spawns != 2 || b.restarts != 1 {
		t.Fatalf("unexpected lifecycle counts: %+v", b)
	}
	if len(sh.navigates) != 2 {
		t.Fatalf("restart should navigate again: %+v", sh)
	}
}

func TestShellSignalFailuresAreSwallowed(t *testing.T) {
	srv := readyServer(t)
	b := &fakeBackend{}
	sh := &recordingShell{failNav: true}
	o := newOrchestrator(Config{HealthURL: srv.URL, PollTimeout: time.Second}, b, sh)
	if err := o.Boot(); err != nil {
		t.Fatalf("navigate failure must not escalate: %v", err)
	}
}

func TestShutdownIdempotentWithoutBackend(t *testing.T) {
	o := newOrchestrator(Config{}, nil, &recordingShell{})
	o.Shutdown()
	o.Shutdown()
}

func TestStatusAndTail(t *testing.T) {
	srv := readyServer(t)
	b := &fakeBackend{lines: []string{"a", "b"}}
	sh := &recordingShell{}
	o := newOrchestrator(Config{BackendURL: "http://x", HealthURL: srv.URL, PollTimeout: time.Second}, b, sh)

	st := o.Status()
	if st.Backend != nil {
		t.Fatalf("no backend tracked before boot: %+v", st)
	}
	if lines := o.Tail(5); lines != nil {
		t.Fatalf("no tail before boot, got %v", lines)
	}

	if err := o.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	st = o.Status()
	if st.Backend == nil || st.Backend.PID != 1234 {
		t.Fatalf("status missing backend snapshot: %+v", st)
	}
	if lines := o.Tail(5); len(lines) != 2 {
		t.Fatalf("unexpected tail: %v", lines)
	}
}
