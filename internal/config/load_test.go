package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_OverridesTakePrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fhir_base_url: "https://from-file.example.org/fhir"
mountpoint: "/mnt/from-file"
`), 0o644))

	cfg, err := Load(path, Overrides{
		FHIRBaseURL: "https://from-cli.example.org/fhir",
		Mountpoint:  "/mnt/from-cli",
	})
	require.NoError(t, err)
	require.Equal(t, "https://from-cli.example.org/fhir", cfg.FHIRBaseURL)
	require.Equal(t, "/mnt/from-cli", cfg.Mountpoint)
}

func TestLoad_FileValuesUsedWhenNoOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fhir_base_url: "https://from-file.example.org/fhir"
mountpoint: "/mnt/from-file"
read_only: true
`), 0o644))

	cfg, err := Load(path, Overrides{})
	require.NoError(t, err)
	require.Equal(t, "https://from-file.example.org/fhir", cfg.FHIRBaseURL)
	require.True(t, cfg.ReadOnly)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "nonexistent.yaml"), Overrides{
		FHIRBaseURL: "https://example.org/fhir",
		Mountpoint:  "/mnt",
	})
	require.NoError(t, err)
}

func TestLoad_OfflineLiteralSetsOfflineFlag(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nonexistent.yaml"), Overrides{
		FHIRBaseURL: "offline",
		Mountpoint:  "/mnt",
	})
	require.NoError(t, err)
	require.True(t, cfg.Offline)
}

func TestLoad_ValidatesResult(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "nonexistent.yaml"), Overrides{
		Mountpoint: "/mnt",
		// no FHIRBaseURL and no offline override -> invalid
	})
	require.Error(t, err)
}
