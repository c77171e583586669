// Package message generates commit messages from diffs.
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/bahn/pkg/orchestrator"
)

// Providers.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
)

// Sentinel errors.
var (
	ErrUnknownProvider = errors.New("unknown message provider")
	ErrNoAPIKey        = errors.New("message provider needs an API key")
	ErrEmptyMessage    = errors.New("provider returned an empty message")
)

// Settings selects and configures a generator.
type Settings struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

// Noop never produces a message, so every commit uses its label.
type Noop struct{}

// Generate returns an empty message.
func (Noop) Generate(context.Context, string) (string, error) { return "", nil }

// New returns the generator for s.Provider. An empty provider means none.
func New(s Settings) (orchestrator.MessageGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", ProviderNone:
		return Noop{}, nil
	case ProviderAnthropic:
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoAPIKey, ProviderAnthropic)
		}

		opts := []AnthropicOption{WithModel(s.Model), WithMaxTokens(s.MaxTokens)}
		if s.Timeout > 0 {
			opts = append(opts, WithTimeout(s.Timeout))
		}

		if s.BaseURL != "" {
			opts = append(opts, WithBaseURL(s.BaseURL))
		}

		return NewAnthropic(s.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, s.Provider)
	}
}
