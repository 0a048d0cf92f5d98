// Package config is the key/value store backends consult for tuning knobs.
// Values come from an alsoft config file or ALSOFT_-prefixed environment
// variables, with per-device overrides taking precedence over block-wide
// settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	mu sync.RWMutex
	v  = newViper()
)

func newViper() *viper.Viper {
	vp := viper.New()
	vp.SetEnvPrefix("alsoft")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vp.AutomaticEnv()
	return vp
}

// Load reads the configuration file. An empty path searches the standard
// locations; a missing file is not an error.
func Load(cfgFile string) error {
	mu.Lock()
	defer mu.Unlock()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		v.SetConfigName("alsoft")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join(home, ".config"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Set overrides a key programmatically. Used by tests and by hosts embedding
// the library.
func Set(key string, value any) {
	mu.Lock()
	defer mu.Unlock()
	v.Set(key, value)
}

// Reset drops all programmatic overrides and loaded values.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	v = newViper()
}

// GetBool looks up <block>.<key> with an optional per-device override at
// <block>.devices.<device>.<key>.
func GetBool(deviceName, block, key string, def bool) bool {
	mu.RLock()
	defer mu.RUnlock()

	if deviceName != "" {
		devKey := fmt.Sprintf("%s.devices.%s.%s", block, deviceName, key)
		if v.IsSet(devKey) {
			return v.GetBool(devKey)
		}
	}
	full := block + "." + key
	if v.IsSet(full) {
		return v.GetBool(full)
	}
	return def
}

// GetString looks up <block>.<key> with an optional per-device override.
func GetString(deviceName, block, key, def string) string {
	mu.RLock()
	defer mu.RUnlock()

	if deviceName != "" {
		devKey := fmt.Sprintf("%s.devices.%s.%s", block, deviceName, key)
		if v.IsSet(devKey) {
			return v.GetString(devKey)
		}
	}
	full := block + "." + key
	if v.IsSet(full) {
		return v.GetString(full)
	}
	return def
}

// GetInt looks up <block>.<key> with an optional per-device override.
func GetInt(deviceName, block, key string, def int) int {
	mu.RLock()
	defer mu.RUnlock()

	if deviceName != "" {
		devKey := fmt.Sprintf("%s.devices.%s.%s", block, deviceName, key)
		if v.IsSet(devKey) {
			return v.GetInt(devKey)
		}
	}
	full := block + "." + key
	if v.IsSet(full) {
		return v.GetInt(full)
	}
	return def
}
