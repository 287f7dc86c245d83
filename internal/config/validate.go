package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate runs struct-tag validation plus the rules a tag can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if !cfg.Offline {
		u, err := url.Parse(cfg.FHIRBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: fhir_base_url must be an http(s) URL, or \"offline\"")
		}
	}
	if cfg.Cache.MaxEntries < 1 {
		return fmt.Errorf("config: cache.max_entries must be positive")
	}
	if cfg.HTTP.MaxSearchPageSize < 1 {
		return fmt.Errorf("config: http.max_search_pages must be positive")
	}
	if cfg.Mount.DirMode&0o111 == 0 {
		return fmt.Errorf("config: mount.dir_mode must include at least one execute bit to be traversable")
	}
	return nil
}
