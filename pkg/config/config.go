// Package config loads bahn settings from .bahn.yaml or .bahn.toml files and
// BAHN_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/bahn/pkg/assemble"
	"github.com/Sumatoshi-tech/bahn/pkg/message"
	"github.com/Sumatoshi-tech/bahn/pkg/ordering"
	"github.com/Sumatoshi-tech/bahn/pkg/schedule"
)

// Sentinel validation errors.
var (
	ErrInvalidTarget    = errors.New("target commits must not be negative")
	ErrInvalidThreshold = errors.New("merge threshold must not be negative")
	ErrInvalidMinGap    = errors.New("minimum gap must not be negative")
	ErrInvalidProvider  = errors.New("unknown message provider")
	ErrInvalidTimeout   = errors.New("message timeout must be positive")
	ErrInvalidRetries   = errors.New("push retries must be positive")
	ErrInvalidInterval  = errors.New("watch interval must be positive")
	ErrInvalidLogLevel  = errors.New("unknown log level")
)

// Message providers.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
)

// Config holds every bahn setting.
type Config struct {
	Split    SplitConfig         `mapstructure:"split"`
	Schedule ScheduleConfig      `mapstructure:"schedule"`
	Buckets  map[string][]string `mapstructure:"buckets"`
	Message  MessageConfig       `mapstructure:"message"`
	Push     PushConfig          `mapstructure:"push"`
	Watch    WatchConfig         `mapstructure:"watch"`
	Log      LogConfig           `mapstructure:"log"`
	OTel     OTelConfig          `mapstructure:"otel"`
}

// SplitConfig controls how changes are grouped.
type SplitConfig struct {
	Mode           string `mapstructure:"mode"`
	TargetCommits  int    `mapstructure:"target_commits"`
	MergeThreshold int    `mapstructure:"merge_threshold"`
}

// ScheduleConfig controls commit timestamps. An empty spread draws 2 to 4 hours.
type ScheduleConfig struct {
	Spread string        `mapstructure:"spread"`
	MinGap time.Duration `mapstructure:"min_gap"`
}

// MessageConfig selects the commit message generator.
type MessageConfig struct {
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

// PushConfig controls bahn push.
type PushConfig struct {
	Remote  string `mapstructure:"remote"`
	Retries uint   `mapstructure:"retries"`
}

// WatchConfig controls bahn watch.
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Ignore   []string      `mapstructure:"ignore"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// OTelConfig configures telemetry export.
type OTelConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
	Headers  string `mapstructure:"headers"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, err := c.SplitMode(); err != nil {
		return err
	}

	if c.Split.TargetCommits < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, c.Split.TargetCommits)
	}

	if c.Split.MergeThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, c.Split.MergeThreshold)
	}

	if _, err := c.Spread(); err != nil {
		return err
	}

	if c.Schedule.MinGap < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidMinGap, c.Schedule.MinGap)
	}

	if _, err := c.Rules(); err != nil {
		return err
	}

	switch strings.ToLower(c.Message.Provider) {
	case "", ProviderNone, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Message.Provider)
	}

	if c.Message.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Message.Timeout)
	}

	if c.Push.Retries == 0 {
		return ErrInvalidRetries
	}

	if c.Watch.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.Watch.Interval)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	return nil
}

// SplitMode parses split.mode.
func (c *Config) SplitMode() (assemble.Mode, error) {
	return assemble.ParseMode(c.Split.Mode)
}

// Spread parses schedule.spread. An empty value yields zero.
func (c *Config) Spread() (time.Duration, error) {
	if strings.TrimSpace(c.Schedule.Spread) == "" {
		return 0, nil
	}

	return schedule.ParseSpread(c.Schedule.Spread)
}

// Rules compiles the bucket patterns on top of the defaults.
func (c *Config) Rules() (*ordering.Rules, error) {
	extra := make(map[ordering.Bucket][]string, len(c.Buckets))

	for name, patterns := range c.Buckets {
		bucket, err := ordering.ParseBucket(name)
		if err != nil {
			return nil, err
		}

		extra[bucket] = append(extra[bucket], patterns...)
	}

	return ordering.NewRules(extra)
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	return level, nil
}

// MessageSettings returns the message section as generator settings.
func (c *Config) MessageSettings() message.Settings {
	return message.Settings{
		Provider:  c.Message.Provider,
		Model:     c.Message.Model,
		APIKey:    c.Message.APIKey,
		BaseURL:   c.Message.BaseURL,
		Timeout:   c.Message.Timeout,
		MaxTokens: c.Message.MaxTokens,
	}
}
