package fhirfs

import (
	"time"

	"github.com/fhirfs/fhirfs/internal/config"
)

// MountOptions configures one FUSE mount. It's derived from a validated
// config.Config plus the two positional CLI arguments (spec §6:
// "<program> <mountpoint> <fhir_base_url>").
//
// Grounded on _examples/absfs-fusefs/options.go's MountOptions/
// DefaultMountOptions split, trimmed to the attributes this filesystem's
// synthesized inodes actually need (no MaxReadahead/MaxWrite/DirectIO:
// those tune raw byte throughput this projection doesn't stream).
type MountOptions struct {
	Mountpoint  string
	FHIRBaseURL string
	Offline     bool
	ReadOnly    bool

	UID uint32
	GID uint32

	DirMode  uint32
	FileMode uint32

	AllowOther         bool
	DefaultPermissions bool

	AttrTimeout  time.Duration
	EntryTimeout time.Duration

	HTTPTimeout        time.Duration
	InsecureSkipVerify bool
	MaxSearchPages     int

	ResourceCacheTTL   time.Duration
	HistoryCacheSize   int
	HistoryCacheTTL    time.Duration
	ResourceCacheSize  int
	CapabilityCacheTTL time.Duration

	FSName string
	Debug  bool
}

// OptionsFromConfig builds MountOptions from a validated config.Config.
func OptionsFromConfig(cfg *config.Config) *MountOptions {
	return &MountOptions{
		Mountpoint:         cfg.Mountpoint,
		FHIRBaseURL:        cfg.FHIRBaseURL,
		Offline:            cfg.Offline,
		ReadOnly:           cfg.ReadOnly,
		UID:                cfg.Mount.UID,
		GID:                cfg.Mount.GID,
		DirMode:            cfg.Mount.DirMode,
		FileMode:           cfg.Mount.FileMode,
		AllowOther:         cfg.Mount.AllowOther,
		DefaultPermissions: true,
		AttrTimeout:        1 * time.Second,
		EntryTimeout:       1 * time.Second,
		HTTPTimeout:        cfg.HTTP.Timeout,
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
		MaxSearchPages:     cfg.HTTP.MaxSearchPageSize,
		ResourceCacheTTL:   cfg.Cache.ResourceTTL,
		ResourceCacheSize:  cfg.Cache.MaxEntries,
		HistoryCacheSize:   cfg.Cache.MaxEntries,
		HistoryCacheTTL:    cfg.Cache.HistoryTTL,
		CapabilityCacheTTL: cfg.Cache.CapabilityTTL,
		FSName:             "fhirfs",
	}
}
