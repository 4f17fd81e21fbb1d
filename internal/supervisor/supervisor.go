package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/attache/internal/logger"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
	DefaultStopTimeout  = 5 * time.Second
)

// Config describes the supervised backend process. It is bound at
// construction and never mutated afterwards.
type Config struct {
	Command      string        // launch command, e.g. "node server.js"
	WorkDir      string        // working directory for the backend
	Port         int           // listening port, exported to the child as PORT
	Env          []string      // extra KEY=VALUE entries appended last
	MaxRetries   int           // spawn attempts before giving up (default 3)
	RetryBackoff time.Duration // first retry delay, doubles each attempt (default 1s)
	StopTimeout  time.Duration // graceful shutdown budget before forceful kill (default 5s)
}

// Supervisor owns the lifecycle of a single backend process generation:
// spawn, retry with backoff, shutdown with escalation, and the log tail used
// for diagnostics. At most one live child exists per Supervisor; callers must
// shut down the previous generation before spawning a new one.
type Supervisor struct {
	cfg  Config
	sink *logger.Sink
	log  *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	readers   *sync.WaitGroup
	startedAt time.Time
	restarts  int

	// test seams; default to time.Sleep and (*exec.Cmd).Start
	sleep    func(time.Duration)
	startCmd func(*exec.Cmd) error
}

// New creates a Supervisor writing captured output to sink and operational
// events to log.
func New(cfg Config, sink *logger.Sink, log *slog.Logger) *Supervisor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		cfg:      cfg,
		sink:     sink,
		log:      log,
		sleep:    time.Sleep,
		startCmd: func(c *exec.Cmd) error { return c.Start() },
	}
}

// Spawn launches the backend and detaches one reader goroutine per output
// stream. The readers echo each line through the app logger, append it to the
// sink, and terminate on stream end-of-file. Spawn replaces any stored
// process handle; the previous generation must already be shut down.
func (s *Supervisor) Spawn() error {
	cmd := buildCommand(s.cfg.Command)
	if s.cfg.WorkDir != "" {
		cmd.Dir = s.cfg.WorkDir
	}
	env := append(os.Environ(), "NODE_ENV=production", fmt.Sprintf("PORT=%d", s.cfg.Port))
	cmd.Env = append(env, s.cfg.Env...)
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Err: err}
	}
	if err := s.startCmd(cmd); err != nil {
		return &SpawnError{Err: err}
	}

	readers := &sync.WaitGroup{}
	readers.Add(2)
	go s.drain(stdout, "stdout", readers)
	go s.drain(stderr, "stderr", readers)

	s.mu.Lock()
	s.cmd = cmd
	s.readers = readers
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("backend spawned", "pid", cmd.Process.Pid)
	return nil
}

// SpawnWithRetry calls Spawn up to MaxRetries times, sleeping between failed
// attempts with delays doubling from RetryBackoff (1s, 2s, 4s, ...). The
// returned error embeds the attempt count and the last underlying cause.
func (s *Supervisor) SpawnWithRetry() error {
	delay := s.cfg.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		lastErr = s.Spawn()
		if lastErr == nil {
			return nil
		}
		if attempt == s.cfg.MaxRetries {
			break
		}
		s.log.Warn("backend start failed, retrying",
			"attempt", attempt, "delay", delay, "error", lastErr)
		s.sleep(delay)
		delay *= 2
	}
	return &RetryExhaustedError{Attempts: s.cfg.MaxRetries, LastErr: lastErr}
}

// Shutdown terminates the current generation, if any. It sends a terminate
// signal, waits up to StopTimeout for the child to exit, then kills the
// process group and blocks until the exit is reaped. Idempotent: when no
// process is stored it is a no-op. The handle lock is never held across the
// blocking wait.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	cmd := s.cmd
	readers := s.readers
	s.cmd = nil
	s.readers = nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	s.log.Info("shutting down backend", "pid", pid)
	_ = terminate(pid)

	// The readers hit EOF when the child exits; wait for them before reaping
	// so no captured output is lost.
	done := make(chan error, 1)
	go func() {
		if readers != nil {
			readers.Wait()
		}
		done <- cmd.Wait()
	}()

	select {
	case <-done:
		s.log.Info("backend stopped", "pid", pid)
	case <-time.After(s.cfg.StopTimeout):
		s.log.Warn("backend did not exit in time, force killing", "pid", pid)
		_ = forceKill(pid)
		<-done
		s.log.Info("backend killed", "pid", pid)
	}
}

// IsRunning probes liveness of the stored process without blocking.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false
	}
	return processAlive(cmd.Process.Pid)
}

// Status is a point-in-time snapshot of the supervised process.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Restarts  int       `json:"restarts"`
}

// Snapshot returns the current status. Liveness is derived on demand, never
// cached.
func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	cmd := s.cmd
	st := Status{StartedAt: s.startedAt, Restarts: s.restarts}
	s.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		st.PID = cmd.Process.Pid
		st.Running = processAlive(st.PID)
	}
	return st
}

// IncRestarts bumps the user-triggered restart counter.
func (s *Supervisor) IncRestarts() int {
	s.mu.Lock()
	s.restarts++
	v := s.restarts
	s.mu.Unlock()
	return v
}

// ReadLastLogLines returns up to the last n persisted log lines in
// chronological order, or an empty slice when nothing has been written.
func (s *Supervisor) ReadLastLogLines(n int) []string {
	return s.sink.Tail(n)
}

// LogPath returns the sink file path for user-facing diagnostics.
func (s *Supervisor) LogPath() string { return s.sink.Path() }

// Close shuts the backend down. A Supervisor must not be discarded while its
// child is running; Close is the teardown of last resort.
func (s *Supervisor) Close() error {
	s.Shutdown()
	return nil
}

func (s *Supervisor) drain(r io.Reader, stream string, readers *sync.WaitGroup) {
	defer readers.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if stream == "stderr" {
			s.log.Warn(line, "stream", stream)
			_ = s.sink.Append("[stderr] " + line)
		} else {
			s.log.Info(line, "stream", stream)
			_ = s.sink.Append(line)
		}
	}
}
