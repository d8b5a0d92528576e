// Package config loads application configuration from a YAML file with
// COMPENDIO_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFileName is the config file looked up in the working directory
// when no explicit path is given.
const DefaultFileName = "compendio.yaml"

// Config holds the full application configuration.
type Config struct {
	// NetworkRoot is the shared folder holding the authoritative dataset.
	// Empty means permanently offline (standalone use).
	NetworkRoot string `mapstructure:"network_root"`
	// LocalRoot is the instance-private working copy directory.
	LocalRoot string `mapstructure:"local_root"`
	// ListenAddr is the HTTP listen address.
	ListenAddr string `mapstructure:"listen_addr"`
	// AdminPasswordHash is the Argon2id hash of the admin password,
	// written by `compendio passwd`.
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
	// JWTSecret signs admin access tokens. Generated on first passwd run.
	JWTSecret string `mapstructure:"jwt_secret"`
	// RecordLockTTL is the staleness threshold for per-record locks.
	RecordLockTTL time.Duration `mapstructure:"record_lock_ttl"`
	// ProbeTTL caches connectivity probe answers for this long.
	ProbeTTL time.Duration `mapstructure:"probe_ttl"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, ".yaml"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COMPENDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("local_root", "data_local")
	v.SetDefault("listen_addr", "127.0.0.1:5001")
	v.SetDefault("record_lock_ttl", 2*time.Hour)
	v.SetDefault("probe_ttl", 2*time.Second)
	return v
}

// Load reads the configuration. A missing config file is not an error:
// defaults plus environment variables make a usable offline setup.
func Load(path string) (*Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.LocalRoot == "" {
		return nil, fmt.Errorf("local_root must not be empty")
	}
	return cfg, nil
}

// SaveCredentials writes the admin password hash and JWT secret back into
// the config file at path (DefaultFileName when empty), preserving the
// other settings.
func SaveCredentials(path, passwordHash, jwtSecret string) error {
	if path == "" {
		path = DefaultFileName
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.Set("admin_password_hash", passwordHash)
	if jwtSecret != "" {
		v.Set("jwt_secret", jwtSecret)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
