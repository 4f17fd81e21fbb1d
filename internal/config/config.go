package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/attache/internal/logger"
	"github.com/loykin/attache/internal/orchestrator"
	"github.com/loykin/attache/internal/supervisor"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Mode    string         `toml:"mode" mapstructure:"mode"`
	Backend BackendConfig  `toml:"backend" mapstructure:"backend"`
	Health  HealthConfig   `toml:"health" mapstructure:"health"`
	Log     *LogConfig     `toml:"log" mapstructure:"log"`
	Control *ControlConfig `toml:"control" mapstructure:"control"`
	History *HistoryConfig `toml:"history" mapstructure:"history"`
}

type BackendConfig struct {
	Command     string        `toml:"command" mapstructure:"command"`
	WorkDir     string        `toml:"workdir" mapstructure:"workdir"`
	Port        int           `toml:"port" mapstructure:"port"`
	Env         []string      `toml:"env" mapstructure:"env"`
	Retries     int           `toml:"retries" mapstructure:"retries"`
	Backoff     time.Duration `toml:"backoff" mapstructure:"backoff"`
	StopTimeout time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
}

type HealthConfig struct {
	Path     string        `toml:"path" mapstructure:"path"`
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
	Timeout  time.Duration `toml:"timeout" mapstructure:"timeout"`
	TailSize int           `toml:"tail_size" mapstructure:"tail_size"`
}

type LogConfig struct {
	Path       string `toml:"path" mapstructure:"path"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type ControlConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type HistoryConfig struct {
	DSN   string `toml:"dsn" mapstructure:"dsn"`
	Table string `toml:"table" mapstructure:"table"`
}

const (
	DefaultPort       = 3001
	DefaultHealthPath = "/health"
	DefaultCommand    = "node server.js"
	DefaultListen     = "127.0.0.1:9750"
	DefaultBasePath   = "/control"
)

// Load parses a TOML config file. An empty path yields pure defaults.
func Load(path string) (*FileConfig, error) {
	fc := &FileConfig{}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := v.Unmarshal(fc); err != nil {
			return nil, err
		}
	}
	fc.applyDefaults()
	if err := fc.validate(); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FileConfig) applyDefaults() {
	if fc.Mode == "" {
		fc.Mode = string(orchestrator.ModeProduction)
	}
	if fc.Backend.Command == "" {
		fc.Backend.Command = DefaultCommand
	}
	if fc.Backend.Port == 0 {
		fc.Backend.Port = DefaultPort
	}
	if fc.Health.Path == "" {
		fc.Health.Path = DefaultHealthPath
	}
	if fc.Control != nil {
		if fc.Control.Listen == "" {
			fc.Control.Listen = DefaultListen
		}
		if fc.Control.BasePath == "" {
			fc.Control.BasePath = DefaultBasePath
		}
	}
}

func (fc *FileConfig) validate() error {
	switch orchestrator.Mode(fc.Mode) {
	case orchestrator.ModeProduction, orchestrator.ModeDev:
	default:
		return fmt.Errorf("unknown mode %q (want %q or %q)",
			fc.Mode, orchestrator.ModeProduction, orchestrator.ModeDev)
	}
	if fc.Backend.Port < 0 || fc.Backend.Port > 65535 {
		return fmt.Errorf("backend port %d out of range", fc.Backend.Port)
	}
	if fc.Backend.Retries < 0 {
		return fmt.Errorf("backend retries must not be negative")
	}
	return nil
}

// BackendURL is the root URL the shell navigates to once the backend is ready.
func (fc *FileConfig) BackendURL() string {
	return fmt.Sprintf("http://localhost:%d", fc.Backend.Port)
}

// HealthURL is the endpoint polled during startup and restart.
func (fc *FileConfig) HealthURL() string {
	return fc.BackendURL() + fc.Health.Path
}

// SupervisorConfig maps the backend section onto supervisor.Config.
func (fc *FileConfig) SupervisorConfig() supervisor.Config {
	return supervisor.Config{
		Command:      fc.Backend.Command,
		WorkDir:      fc.Backend.WorkDir,
		Port:         fc.Backend.Port,
		Env:          fc.Backend.Env,
		MaxRetries:   fc.Backend.Retries,
		RetryBackoff: fc.Backend.Backoff,
		StopTimeout:  fc.Backend.StopTimeout,
	}
}

// SinkConfig maps the log section onto logger.SinkConfig. A nil log section
// falls back to the logger defaults, including the per-platform path.
func (fc *FileConfig) SinkConfig() logger.SinkConfig {
	if fc.Log == nil {
		return logger.SinkConfig{}
	}
	return logger.SinkConfig{
		Path:       fc.Log.Path,
		MaxSizeMB:  fc.Log.MaxSizeMB,
		MaxBackups: fc.Log.MaxBackups,
		MaxAgeDays: fc.Log.MaxAgeDays,
		Compress:   fc.Log.Compress,
	}
}

// OrchestratorConfig maps mode and health sections onto orchestrator.Config.
func (fc *FileConfig) OrchestratorConfig() orchestrator.Config {
	restartURL := ""
	if fc.Control != nil {
		restartURL = "http://" + fc.Control.Listen + fc.Control.BasePath + "/restart"
	}
	return orchestrator.Config{
		Mode:         orchestrator.Mode(fc.Mode),
		BackendURL:   fc.BackendURL(),
		HealthURL:    fc.HealthURL(),
		RestartURL:   restartURL,
		PollInterval: fc.Health.Interval,
		PollTimeout:  fc.Health.Timeout,
		LogTailLines: fc.Health.TailSize,
	}
}
