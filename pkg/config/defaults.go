package config

import "time"

// Split defaults.
const (
	DefaultSplitMode      = "chunk"
	DefaultTargetCommits  = 0
	DefaultMergeThreshold = 3
)

// Schedule defaults.
const (
	DefaultSpread = ""
	DefaultMinGap = 30 * time.Second
)

// Message defaults.
const (
	DefaultMessageProvider  = ProviderNone
	DefaultMessageModel     = "claude-3-5-haiku-latest"
	DefaultMessageTimeout   = 30 * time.Second
	DefaultMessageMaxTokens = 256
)

// Push defaults.
const (
	DefaultPushRemote  = "origin"
	DefaultPushRetries = 3
)

// Watch defaults.
const (
	DefaultWatchInterval = 30 * time.Minute
)

// DefaultWatchIgnore lists the paths watch mode never reacts to.
func DefaultWatchIgnore() []string {
	return []string{".git", "node_modules", "*.swp", "*~", ".#*", "*.tmp"}
}

// Log defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)
