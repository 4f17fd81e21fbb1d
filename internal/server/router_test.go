package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/attache/internal/health"
	"github.com/loykin/attache/internal/orchestrator"
	"github.com/loykin/attache/internal/shell"
	"github.com/loykin/attache/internal/supervisor"
)

func init() { gin.SetMode(gin.TestMode) }

type stubBackend struct {
	lines []string
}

func (s *stubBackend) SpawnWithRetry() error { return nil }
func (s *stubBackend) Shutdown()             {}
func (s *stubBackend) ReadLastLogLines(n int) []string {
	if len(s.lines) > n {
		return s.lines[len(s.lines)-n:]
	}
	return s.lines
}
func (s *stubBackend) Snapshot() supervisor.Status { return supervisor.Status{Running: true, PID: 7} }
func (s *stubBackend) IncRestarts() int            { return 1 }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, boot bool) *Router {
	t.Helper()
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ready.Close)

	b := &stubBackend{lines: []string{"one", "two", "three"}}
	orc := orchestrator.New(orchestrator.Config{
		BackendURL:   "http://127.0.0.1:3001",
		HealthURL:    ready.URL,
		PollInterval: 20 * time.Millisecond,
		PollTimeout:  time.Second,
	}, func() orchestrator.Backend { return b },
		shell.NewHeadless(discardLogger()), health.New(discardLogger()), nil, discardLogger())
	if boot {
		if err := orc.Boot(); err != nil {
			t.Fatalf("Boot: %v", err)
		}
	}
	return NewRouter(orc, "/control")
}

func TestRestartBeforeBootConflicts(t *testing.T) {
	r := newTestRouter(t, false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/control/restart", nil)
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "no backend supervisor available") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRestartAfterBoot(t *testing.T) {
	r := newTestRouter(t, true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/control/restart", nil)
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp restartResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Message == "" {
		t.Fatalf("expected outcome message, got %s (%v)", rec.Body.String(), err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	r := newTestRouter(t, true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/control/status", nil)
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st orchestrator.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("bad status JSON: %v", err)
	}
	if st.Backend == nil || st.Backend.PID != 7 {
		t.Fatalf("status missing backend snapshot: %s", rec.Body.String())
	}
}

func TestLogsEndpoint(t *testing.T) {
	r := newTestRouter(t, true)
	h := r.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/control/logs?n=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp logsResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad logs JSON: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "two" || resp.Lines[1] != "three" {
		t.Fatalf("unexpected tail: %v", resp.Lines)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/control/logs?n=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid n, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, false)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/control/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"/":         "",
		"control":   "/control",
		"/control":  "/control",
		"/control/": "/control",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
