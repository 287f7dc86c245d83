// Package config defines the filesystem's runtime configuration: cache
// TTLs, HTTP timeout, mount ownership, logging, and read-only mode.
//
// Grounded on _examples/marmos91-dnfs/pkg/config/config.go: a mapstructure
// tagged Config struct loaded by viper, defaulted, and validated with
// go-playground/validator. Precedence matches that repo: CLI flags >
// environment variables > config file > built-in defaults.
package config

import "time"

// Config is the complete runtime configuration for one mount.
type Config struct {
	// FHIRBaseURL is the FHIR server's base endpoint, e.g.
	// "https://hapi.example.org/fhir", or the literal "offline" to mount
	// without contacting a server. Required; has no default.
	FHIRBaseURL string `mapstructure:"fhir_base_url" validate:"required"`

	// Mountpoint is the local directory the filesystem attaches to.
	Mountpoint string `mapstructure:"mountpoint" validate:"required"`

	// Offline mounts without contacting the server's capability endpoint;
	// the mount's type set starts empty and is never discovered later.
	Offline bool `mapstructure:"offline"`

	// ReadOnly rejects every write-side operation (Create, Write, Unlink,
	// Rmdir, Mkdir under a searchable type) with EROFS.
	ReadOnly bool `mapstructure:"read_only"`

	Cache Cache `mapstructure:"cache"`
	HTTP  HTTP  `mapstructure:"http"`
	Mount Mount `mapstructure:"mount"`
	Log   Log   `mapstructure:"log"`
}

// Cache controls TTL and eviction behavior for each of the filesystem's
// per-kind caches. The resource, history and capability caches have TTLs;
// history is primarily invalidation-driven (cleared on write/delete) and
// its TTL is only a passive upper bound on top of that. Search and
// operation results have no TTL: their lifetime is owned by mkdir/rmdir
// and create/unlink respectively.
type Cache struct {
	ResourceTTL time.Duration `mapstructure:"resource_ttl" validate:"required,gt=0"`

	// HistoryTTL is a passive staleness upper bound layered on top of
	// write/delete invalidation, not a replacement for it: an entry can
	// still be evicted sooner by an explicit Invalidate call, but never
	// survives longer than this even if no write ever touches it.
	HistoryTTL    time.Duration `mapstructure:"history_ttl" validate:"required,gt=0"`
	CapabilityTTL time.Duration `mapstructure:"capability_ttl" validate:"required,gt=0"`

	// MaxEntries bounds each cache's LRU size.
	MaxEntries int `mapstructure:"max_entries" validate:"required,gt=0"`
}

// HTTP controls the FHIR client's transport behavior.
type HTTP struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0"`

	// InsecureSkipVerify disables TLS certificate verification; intended
	// only for talking to a local test server.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`

	// MaxSearchPageSize caps the number of pages a single search or
	// history fetch will follow before giving up and returning what it has.
	MaxSearchPageSize int `mapstructure:"max_search_pages" validate:"required,gt=0"`
}

// Mount controls FUSE-level mount attributes: file ownership and mode
// bits reported to the kernel for every synthesized inode.
type Mount struct {
	UID uint32 `mapstructure:"uid"`
	GID uint32 `mapstructure:"gid"`

	DirMode  uint32 `mapstructure:"dir_mode" validate:"required"`
	FileMode uint32 `mapstructure:"file_mode" validate:"required"`

	// AllowOther maps to FUSE's allow_other mount option.
	AllowOther bool `mapstructure:"allow_other"`
}

// Log controls logrus's level, output format, and destination.
type Log struct {
	Level  string `mapstructure:"level" validate:"required,oneof=trace debug info warn error fatal panic"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" validate:"required"`
}
