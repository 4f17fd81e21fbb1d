package health

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Per-probe budgets. These are independent from the overall poll timeout and
// deliberately not configurable together with it: the overall budget firing
// is a terminal outcome, a single slow probe is not.
const (
	connectTimeout = 2 * time.Second
	probeTimeout   = 3 * time.Second
)

// TimeoutError reports that the endpoint never became ready within the
// overall budget.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend health check timed out after %dms", e.Budget.Milliseconds())
}

// Poller blocks callers until an HTTP endpoint answers with a 2xx status.
// It has no internal cancellation token; a wait ends only by readiness or by
// its own timeout budget elapsing.
type Poller struct {
	client *http.Client
	log    *slog.Logger

	sleep func(time.Duration) // test seam
}

// New creates a Poller with fixed per-probe connect/request timeouts.
func New(log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		client: &http.Client{
			Timeout: probeTimeout,
			Transport: &http.Transport{
				DialContext:       (&net.Dialer{Timeout: connectTimeout}).DialContext,
				DisableKeepAlives: true,
			},
		},
		log:   log,
		sleep: time.Sleep,
	}
}

// Wait probes url every interval until a 2xx response or until timeout
// elapses. Connection errors and non-2xx statuses are treated identically:
// both are expected while the backend is still starting, so the loop logs and
// continues at a fixed interval, with no backoff growth.
func (p *Poller) Wait(url string, interval, timeout time.Duration) error {
	start := time.Now()
	for {
		if time.Since(start) > timeout {
			return &TimeoutError{Budget: timeout}
		}
		if p.probe(url) {
			p.log.Info("backend health check passed", "url", url, "elapsed", time.Since(start))
			return nil
		}
		p.sleep(interval)
	}
}

func (p *Poller) probe(url string) bool {
	resp, err := p.client.Get(url)
	if err != nil {
		// Connection refused is expected while the backend is starting.
		p.log.Debug("health probe failed", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true
	}
	p.log.Debug("health probe returned non-success status", "status", resp.StatusCode)
	return false
}
