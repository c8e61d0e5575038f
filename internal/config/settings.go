package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/choplin/agent-bridge/internal/merge"
)

// EnvPrefix is the prefix for settings supplied through the environment,
// e.g. AGENT_BRIDGE_CONCURRENCY=4.
const EnvPrefix = "AGENT_BRIDGE"

// Git backends accepted by the git_backend setting.
const (
	GitBackendExec  = "exec"
	GitBackendGoGit = "go-git"
)

// Settings holds the tunables read from the settings file, the environment
// and command line flags.
type Settings struct {
	Target      string        `mapstructure:"target"`
	Strategy    string        `mapstructure:"strategy"`
	Concurrency int           `mapstructure:"concurrency"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`
	GitBackend  string        `mapstructure:"git_backend"`
	Exclude     []string      `mapstructure:"exclude"`
	LogLevel    string        `mapstructure:"log_level"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target", ".agent")
	v.SetDefault("strategy", merge.ProjectWins.String())
	v.SetDefault("concurrency", 1)
	v.SetDefault("stale_after", 24*time.Hour)
	v.SetDefault("sync_timeout", time.Duration(0))
	v.SetDefault("git_backend", GitBackendExec)
	v.SetDefault("exclude", merge.DefaultExclude)
	v.SetDefault("log_level", "info")
}

// NewViper builds a viper instance with defaults and environment binding.
// When file is empty the settings file under the config dir is used if it
// exists.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if file == "" {
		file = GetSettingsPath()
		if _, err := os.Stat(file); err != nil {
			return v, nil
		}
	}

	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", file, err)
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the engines cannot honour.
func (s *Settings) Validate() error {
	var errs []error
	if s.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency))
	}
	if _, err := merge.ParseStrategy(s.Strategy); err != nil {
		errs = append(errs, err)
	}
	switch s.GitBackend {
	case GitBackendExec, GitBackendGoGit:
	default:
		errs = append(errs, fmt.Errorf("unknown git backend %q", s.GitBackend))
	}
	if s.StaleAfter < 0 || s.SyncTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if s.Target == "" {
		errs = append(errs, errors.New("target must not be empty"))
	}
	return errors.Join(errs...)
}
