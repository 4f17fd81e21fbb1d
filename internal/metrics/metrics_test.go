package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotent(t *testing.T) {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Second call must be a no-op, not an AlreadyRegistered failure.
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestHandlerServesCollectors(t *testing.T) {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	IncSpawnAttempt()
	IncPollReady()
	ObserveReady(1.5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)
	body := rec.Body.String()
	for _, want := range []string{
		"attache_backend_spawn_attempts_total",
		"attache_health_poll_outcomes_total",
		"attache_backend_ready_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
