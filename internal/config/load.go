package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Overrides carries the values that come from the command line, which
// outrank both the config file and environment variables.
type Overrides struct {
	FHIRBaseURL string
	Mountpoint  string
	Offline     bool
	ReadOnly    bool
}

// Load reads configuration from configPath (or the default location if
// empty), layers environment variables and then overrides on top, applies
// defaults, and validates the result.
//
// Precedence (highest to lowest): CLI overrides > FHIRFS_* environment
// variables > config file > built-in defaults. Grounded on
// _examples/marmos91-dnfs/pkg/config/config.go Load/setupViper/readConfigFile.
func Load(configPath string, overrides Overrides) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyOverrides(&cfg, overrides)
	if cfg.FHIRBaseURL == "offline" {
		cfg.Offline = true
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.FHIRBaseURL != "" {
		cfg.FHIRBaseURL = o.FHIRBaseURL
	}
	if o.Mountpoint != "" {
		cfg.Mountpoint = o.Mountpoint
	}
	if o.Offline {
		cfg.Offline = true
	}
	if o.ReadOnly {
		cfg.ReadOnly = true
	}
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FHIRFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	configDir := defaultConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// A missing config file, at the default location or at an explicit
		// path, isn't an error: defaults, environment and overrides apply.
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read config file: %w", err)
	}
	return nil
}

// defaultConfigDir returns $XDG_CONFIG_HOME/fhirfs, or ~/.config/fhirfs,
// or "." if the home directory can't be determined.
func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fhirfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fhirfs")
}
