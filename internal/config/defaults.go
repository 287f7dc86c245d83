package config

import "time"

// ApplyDefaults fills in zero-valued fields with sensible defaults.
// Explicit values from file/env/CLI are preserved; only unset fields
// (still at their zero value after loading) are overwritten.
func ApplyDefaults(cfg *Config) {
	applyCacheDefaults(&cfg.Cache)
	applyHTTPDefaults(&cfg.HTTP)
	applyMountDefaults(&cfg.Mount)
	applyLogDefaults(&cfg.Log)
}

func applyCacheDefaults(c *Cache) {
	if c.ResourceTTL == 0 {
		c.ResourceTTL = 5 * time.Second
	}
	if c.HistoryTTL == 0 {
		c.HistoryTTL = 30 * time.Second
	}
	if c.CapabilityTTL == 0 {
		c.CapabilityTTL = 5 * time.Minute
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 4096
	}
}

func applyHTTPDefaults(h *HTTP) {
	if h.Timeout == 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxSearchPageSize == 0 {
		h.MaxSearchPageSize = 50
	}
}

func applyMountDefaults(m *Mount) {
	if m.DirMode == 0 {
		m.DirMode = 0o755
	}
	if m.FileMode == 0 {
		m.FileMode = 0o644
	}
}

func applyLogDefaults(l *Log) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
	if l.Output == "" {
		l.Output = "stderr"
	}
}
