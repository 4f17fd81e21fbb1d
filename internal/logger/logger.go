package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default sink rotation bounds. The sink behaves as a plain append log for
// diagnostics; rotation only guards against unbounded growth.
const (
	DefaultMaxSizeMB  = 50 // MB
	DefaultMaxBackups = 2  // number of backup files
	DefaultMaxAgeDays = 14 // days
)

// DefaultBackendLogName is the file name used when no explicit sink path is
// configured.
const DefaultBackendLogName = "attache-backend.log"

// SinkConfig describes the backend output log destination.
// Rotation parameters follow lumberjack semantics.
type SinkConfig struct {
	Path       string // log file path; empty means DefaultPath()
	MaxSizeMB  int    // megabytes before rotation (default 50)
	MaxBackups int    // number of backups to keep (default 2)
	MaxAgeDays int    // days to keep (default 14)
	Compress   bool   // gzip rotated files
}

// Sink is the shared append destination for the backend's captured stdout and
// stderr lines. The underlying writer serializes concurrent appends, so the
// two stream readers may share one Sink. Tail reads the persisted file fresh
// on every call.
type Sink struct {
	path string
	w    *lj.Logger
}

// NewSink creates the sink, resolving the default path and creating the
// parent directory when needed.
func NewSink(cfg SinkConfig) *Sink {
	path := cfg.Path
	if path == "" {
		path = DefaultPath()
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o750)
	return &Sink{
		path: path,
		w: &lj.Logger{
			Filename:   path,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		},
	}
}

// Path returns the sink file path.
func (s *Sink) Path() string { return s.path }

// Writer exposes the underlying concurrent-append-safe writer.
func (s *Sink) Writer() io.Writer { return s.w }

// Append writes one line to the sink.
func (s *Sink) Append(line string) error {
	_, err := s.w.Write([]byte(line + "\n"))
	return err
}

// Tail returns up to the last n persisted lines in chronological order.
// It returns nil when the file is missing or empty. Only flushed content is
// visible; this is a diagnostic snapshot, not a live stream.
func (s *Sink) Tail(n int) []string {
	if n <= 0 {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil || len(b) == 0 {
		return nil
	}
	content := strings.TrimRight(string(b), "\n")
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// Close closes the sink file.
func (s *Sink) Close() error { return s.w.Close() }

// DefaultPath resolves a platform-appropriate location for the backend log.
// On macOS the conventional per-user log directory is preferred.
func DefaultPath() string {
	if runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			logs := filepath.Join(home, "Library", "Logs")
			if st, err := os.Stat(logs); err == nil && st.IsDir() {
				return filepath.Join(logs, DefaultBackendLogName)
			}
		}
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, DefaultBackendLogName)
	}
	return DefaultBackendLogName
}

// New returns an application slog.Logger writing colored text to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	h := NewColorTextHandler(w, &slog.HandlerOptions{Level: level}, true)
	return slog.New(h)
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
