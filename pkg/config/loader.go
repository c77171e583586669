package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension; viper tries every
// supported extension, so both .bahn.yaml and .bahn.toml are found.
const configName = ".bahn"

// envPrefix is the environment variable prefix for bahn settings.
const envPrefix = "BAHN"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// apiKeyFallbackEnv is read when BAHN_MESSAGE_API_KEY is unset.
const apiKeyFallbackEnv = "ANTHROPIC_API_KEY"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise the config file is searched in repoDir, then in
// $HOME/.config/bahn. A missing config file is not an error.
func LoadConfig(configPath, repoDir string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	err := viperCfg.BindEnv("message.api_key", envPrefix+"_MESSAGE_API_KEY", apiKeyFallbackEnv)
	if err != nil {
		return nil, fmt.Errorf("bind api key env: %w", err)
	}

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)

		if repoDir != "" {
			viperCfg.AddConfigPath(repoDir)
		}

		home, homeErr := os.UserHomeDir()
		if homeErr == nil {
			viperCfg.AddConfigPath(filepath.Join(home, ".config", "bahn"))
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("split.mode", DefaultSplitMode)
	viperCfg.SetDefault("split.target_commits", DefaultTargetCommits)
	viperCfg.SetDefault("split.merge_threshold", DefaultMergeThreshold)

	viperCfg.SetDefault("schedule.spread", DefaultSpread)
	viperCfg.SetDefault("schedule.min_gap", DefaultMinGap)

	viperCfg.SetDefault("message.provider", DefaultMessageProvider)
	viperCfg.SetDefault("message.model", DefaultMessageModel)
	viperCfg.SetDefault("message.timeout", DefaultMessageTimeout)
	viperCfg.SetDefault("message.max_tokens", DefaultMessageMaxTokens)
	viperCfg.SetDefault("message.base_url", "")

	viperCfg.SetDefault("push.remote", DefaultPushRemote)
	viperCfg.SetDefault("push.retries", DefaultPushRetries)

	viperCfg.SetDefault("watch.interval", DefaultWatchInterval)
	viperCfg.SetDefault("watch.ignore", DefaultWatchIgnore())

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.json", DefaultLogJSON)

	viperCfg.SetDefault("otel.endpoint", "")
	viperCfg.SetDefault("otel.insecure", false)
	viperCfg.SetDefault("otel.headers", "")
}
