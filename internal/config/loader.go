package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/testhooks/pkg/logging"
)

var configFileNames = []string{"testhooks.yaml", "testhooks.yml", "testhooks.toml"}

// LoadSettings loads configuration from path over the defaults. path may be
// a YAML or TOML file, chosen by extension, or a directory containing one of
// testhooks.yaml, testhooks.yml or testhooks.toml. An empty path, or a
// directory without a config file, yields the defaults.
func LoadSettings(path string) (Settings, error) {
	settings := GetDefaultSettings()
	if path == "" {
		return settings, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return Settings{}, &ConfigurationError{FilePath: path, FileName: filepath.Base(path), ErrorType: "io", Message: err.Error()}
	}
	if info.IsDir() {
		found := ""
		for _, name := range configFileNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				found = candidate
				break
			}
		}
		if found == "" {
			logging.Info("Config", "No config file found in %s, using defaults", path)
			return settings, nil
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config file at %s, using defaults", path)
			return settings, nil
		}
		return Settings{}, &ConfigurationError{FilePath: path, FileName: filepath.Base(path), ErrorType: "io", Message: err.Error()}
	}

	if err := decode(path, data, &settings); err != nil {
		return Settings{}, &ConfigurationError{FilePath: path, FileName: filepath.Base(path), ErrorType: "parse", Message: err.Error()}
	}
	if err := Validate(settings); err != nil {
		return Settings{}, &ConfigurationError{FilePath: path, FileName: filepath.Base(path), ErrorType: "validation", Message: err.Error()}
	}

	logging.Info("Config", "Loaded configuration from %s", path)
	return settings, nil
}

func decode(path string, data []byte, into *Settings) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), into)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			logging.Warn("Config", "Ignoring unknown keys in %s: %v", path, undecoded)
		}
		return nil
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, into)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}
