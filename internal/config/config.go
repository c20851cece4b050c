// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads mlmd's on-disk TOML configuration, the teacher's
// own idiom: viper for parsing plus an MLM__-prefixed environment
// override, a config file created with sane defaults on first run, and
// an in-place TOML rewrite helper for settings the daemon itself updates
// (log level, rotation) without clobbering the user's comments.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/stirlingmouse/mlm/internal/crypto"
	"github.com/stirlingmouse/mlm/internal/domain"
)

// encryptionKeyEnv names the environment variable holding a hex-encoded
// 32-byte AES-256 key. When set, secret-shaped fields (tracker_id today)
// are stored on disk as "enc:"-prefixed ciphertext instead of plaintext
// (§6.2). Unset by default: most operators run with the config file
// itself as the trust boundary, the same default the teacher's own
// OIDC-secret encryption had before this field existed.
const encryptionKeyEnv = "MLM_ENCRYPTION_KEY"

const encryptedValuePrefix = "enc:"

const defaultDatabaseFilename = "mlm.db"

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Authentication token for the tracker API.
trackerId = ""

# Port the local web interface listens on.
webPort = 8282

# Where completed downloads are linked into.
libraryDir = ""

# Where the torrent client stores in-progress downloads.
ripDir = ""

# One of: hardlink, symlink, copy
linkMethod = "hardlink"

# Admission buffer defaults, overridable per search profile.
unsatBuffer = 0
wedgeBuffer = 0

# Filetypes ranked best-to-worst for the linker's format selection and
# dedup ranking. A filetype not listed here ranks below every one that is.
formatPreference = ["m4b", "mp3", "epub", "azw3", "mobi", "pdf"]

# How long shutdown waits for in-flight pipeline ticks to finish.
gracePeriodSecs = 30

# Log file path
# If not defined, logs to stderr
# Optional
#logPath = "log/mlmd.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Prometheus metrics
metricsEnabled = false
metricsHost = "127.0.0.1"
metricsPort = 9074
`

// AppConfig is the loaded, fully-resolved configuration plus the
// bookkeeping needed to persist settings changes back to the same file.
type AppConfig struct {
	Config     domain.Config
	configPath string
	v          *viper.Viper

	// encryptor is non-nil only when MLM_ENCRYPTION_KEY is set to a
	// valid 32-byte hex key, gating the enc:-prefix handling in
	// PersistTrackerID/New below.
	encryptor *crypto.AESEncryptor
}

// New loads configuration from configPath, creating it from the default
// template if it does not exist yet, and applying MLM__-prefixed
// environment variable overrides on top.
func New(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create config dir: %v", domain.ErrConfig, err)
		}
		if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0o644); err != nil {
			return nil, fmt.Errorf("%w: write default config: %v", domain.ErrConfig, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: stat config: %v", domain.ErrConfig, err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.SetEnvPrefix("MLM_")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("databasePath", "MLM__DATABASE_PATH")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read config: %v", domain.ErrConfig, err)
	}

	cfg := &AppConfig{configPath: configPath, v: v, encryptor: loadEncryptor()}
	if err := v.Unmarshal(&cfg.Config); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", domain.ErrConfig, err)
	}
	cfg.Config.DatabasePath = v.GetString("databasePath")

	if decrypted, err := cfg.decryptSecret(cfg.Config.TrackerID); err != nil {
		return nil, fmt.Errorf("%w: decrypt trackerId: %v", domain.ErrConfig, err)
	} else {
		cfg.Config.TrackerID = decrypted
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("webPort", 8282)
	v.SetDefault("linkMethod", "hardlink")
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)
	v.SetDefault("metricsHost", "127.0.0.1")
	v.SetDefault("metricsPort", 9074)
	v.SetDefault("formatPreference", []string{"m4b", "mp3", "epub", "azw3", "mobi", "pdf"})
	v.SetDefault("gracePeriodSecs", 30)
}

// GetDatabasePath returns the resolved SQLite file path: the explicit
// databasePath setting (config or env override) if set, otherwise
// mlm.db next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DatabasePath != "" {
		return c.Config.DatabasePath
	}
	return filepath.Join(filepath.Dir(c.configPath), defaultDatabaseFilename)
}

// ConfigPath returns the path the configuration was loaded from.
func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// loadEncryptor builds an AESEncryptor from MLM_ENCRYPTION_KEY if set
// and valid, otherwise returns nil (secrets are stored in plaintext).
func loadEncryptor() *crypto.AESEncryptor {
	raw := os.Getenv(encryptionKeyEnv)
	if raw == "" {
		return nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil
	}
	enc, err := crypto.NewAESEncryptor(key)
	if err != nil {
		return nil
	}
	return enc
}

// decryptSecret reverses encryptSecret: a value without the enc: prefix
// is returned unchanged (plaintext config, or encryption never enabled).
func (c *AppConfig) decryptSecret(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedValuePrefix) {
		return value, nil
	}
	if c.encryptor == nil {
		return "", fmt.Errorf("%w: value is encrypted but %s is not set", domain.ErrConfig, encryptionKeyEnv)
	}
	return c.encryptor.Decrypt(strings.TrimPrefix(value, encryptedValuePrefix))
}

// encryptSecret AES-GCM-encrypts value for on-disk storage when an
// encryption key is configured, prefixing the result so decryptSecret
// can recognize it on the next load. With no key configured it's a
// passthrough, matching the config's plaintext-by-default posture.
func (c *AppConfig) encryptSecret(value string) (string, error) {
	if c.encryptor == nil || value == "" {
		return value, nil
	}
	ciphertext, err := c.encryptor.Encrypt(value)
	if err != nil {
		return "", err
	}
	return encryptedValuePrefix + ciphertext, nil
}

// PersistTrackerID rewrites the trackerId setting in the on-disk config
// file in place, AES-encrypting it first if MLM_ENCRYPTION_KEY is set,
// and reloads it into c.Config.
func (c *AppConfig) PersistTrackerID(trackerID string) error {
	raw, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("read config for persist: %w", err)
	}

	stored, err := c.encryptSecret(trackerID)
	if err != nil {
		return fmt.Errorf("encrypt trackerId: %w", err)
	}

	updated := trackerIDSettingLine.ReplaceAllString(string(raw), fmt.Sprintf("trackerId = %q", stored))

	if err := os.WriteFile(c.configPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write updated config: %w", err)
	}

	c.Config.TrackerID = trackerID
	return nil
}
