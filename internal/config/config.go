// Package config reads ~/.pet2bidsconfig and the PET2BIDS_* environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nconklindev/pet2bids/internal/bids"

	"github.com/joho/godotenv"
)

const (
	EnvConfig         = "PET2BIDS_CONFIG"
	EnvSchema         = "PET2BIDS_SCHEMA"
	EnvHRRTParameters = "PET2BIDS_HRRT_PARAMETERS"
	EnvScannerProfile = "PET2BIDS_SCANNER_PROFILE"
	EnvLogLevel       = "PET2BIDS_LOG_LEVEL"
)

const FileName = ".pet2bidsconfig"

type Config struct {
	// Path of the file the values were read from, empty when there was none.
	Path string

	Schema         string
	HRRTParameters string
	ScannerProfile string
	LogLevel       string
}

// Load reads the config file, then lets the environment override it. A
// missing file is not an error.
func Load() (*Config, error) {
	path, err := filePath()
	if err != nil {
		return nil, err
	}

	values, err := godotenv.Read(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		values, path = map[string]string{}, ""
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	get := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return values[key]
	}

	cfg := &Config{
		Path:           path,
		Schema:         get(EnvSchema),
		HRRTParameters: get(EnvHRRTParameters),
		ScannerProfile: get(EnvScannerProfile),
		LogLevel:       get(EnvLogLevel),
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	for _, p := range []*string{&cfg.Schema, &cfg.HRRTParameters, &cfg.ScannerProfile} {
		if *p, err = bids.ExpandPath(*p); err != nil {
			return nil, err
		}
	}
	if cfg.HRRTParameters == "" {
		if cfg.HRRTParameters, err = DefaultHRRTParameters(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// DefaultHRRTParameters is <user config dir>/pet2bids/SiemensHRRTparameters.txt.
func DefaultHRRTParameters() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "pet2bids", "SiemensHRRTparameters.txt"), nil
}

func filePath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return bids.ExpandPath(p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home dir: %w", err)
	}
	return filepath.Join(home, FileName), nil
}
