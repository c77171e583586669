package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ErrConfigExists is returned by WriteDefault when the target file exists.
var ErrConfigExists = errors.New("config file already exists")

// FileExtensions lists the config formats bahn reads, in lookup order.
func FileExtensions() []string {
	return []string{"yaml", "yml", "toml"}
}

// ExistingFile returns the path of the bahn config file in dir, or "" when
// there is none.
func ExistingFile(dir string) string {
	for _, ext := range FileExtensions() {
		path := filepath.Join(dir, configName+"."+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WriteDefault writes every default setting to path, in the format named by
// its extension. Durations are written in their string form so the file
// reads naturally.
func WriteDefault(path string) error {
	defaults := viper.New()
	applyDefaults(defaults)

	out := viper.New()

	for _, key := range defaults.AllKeys() {
		value := defaults.Get(key)
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}

		out.Set(key, value)
	}

	err := out.SafeWriteConfigAs(path)

	var exists viper.ConfigFileAlreadyExistsError
	if errors.As(err, &exists) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
