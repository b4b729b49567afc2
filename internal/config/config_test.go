package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the config dir at a fresh directory and clears
// the PET2BIDS_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{EnvConfig, EnvSchema, EnvHRRTParameters, EnvScannerProfile, EnvLogLevel} {
		t.Setenv(key, "")
	}
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
	assert.Empty(t, cfg.Schema)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join(home, ".config", "pet2bids", "SiemensHRRTparameters.txt"), cfg.HRRTParameters)
}

func TestLoad_File(t *testing.T) {
	home := isolate(t)
	content := "# pet2bids\n" +
		"PET2BIDS_SCHEMA=~/schemas/pet.json\n" +
		"PET2BIDS_HRRT_PARAMETERS=/opt/hrrt/params.txt\n" +
		"PET2BIDS_LOG_LEVEL=debug\n"
	path := filepath.Join(home, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, filepath.Join(home, "schemas", "pet.json"), cfg.Schema)
	assert.Equal(t, "/opt/hrrt/params.txt", cfg.HRRTParameters)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Run("Environment overrides file", func(t *testing.T) {
		t.Setenv(EnvLogLevel, "warn")
		t.Setenv(EnvScannerProfile, "/opt/hrrt/profile.yaml")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, "/opt/hrrt/profile.yaml", cfg.ScannerProfile)
		assert.Equal(t, "/opt/hrrt/params.txt", cfg.HRRTParameters)
	})
}

func TestLoad_ConfigPathOverride(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "other.env")
	require.NoError(t, os.WriteFile(path, []byte("PET2BIDS_LOG_LEVEL=error\n"), 0o644))
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "error", cfg.LogLevel)
}
