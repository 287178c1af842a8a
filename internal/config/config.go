package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/integrity"
	"github.com/quantmind-br/qpm/internal/selfupdate"
	"github.com/spf13/viper"
)

// FileName is the config file base name searched for in the config paths
const FileName = "config"

// Config represents the application configuration
type Config struct {
	Paths      PathsConfig      `mapstructure:"paths"`
	Install    InstallConfig    `mapstructure:"install"`
	Network    NetworkConfig    `mapstructure:"network"`
	SelfUpdate SelfUpdateConfig `mapstructure:"self_update"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PathsConfig overrides the install-relative layout. Empty values are
// derived from the install root by the paths package.
type PathsConfig struct {
	InstallRoot string `mapstructure:"install_root"`
	StoreDir    string `mapstructure:"store_dir"`
	DBFile      string `mapstructure:"db_file"`
	LogFile     string `mapstructure:"log_file"`
	TempDir     string `mapstructure:"temp_dir"`
}

// InstallConfig tunes the installer
type InstallConfig struct {
	ManifestFile      string        `mapstructure:"manifest_file"`
	ChecksumAlgorithm string        `mapstructure:"checksum_algorithm"`
	ScriptTimeout     time.Duration `mapstructure:"script_timeout"`
}

// NetworkConfig tunes downloads
type NetworkConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Progress  bool          `mapstructure:"progress"`
}

// SelfUpdateConfig tunes self-update and the bootstrap
type SelfUpdateConfig struct {
	ManifestURL     string        `mapstructure:"manifest_url"`
	BootstrapDelay  time.Duration `mapstructure:"bootstrap_delay"`
	ReadyTimeout    time.Duration `mapstructure:"ready_timeout"`
	RequiredEntries []string      `mapstructure:"required_entries"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color string `mapstructure:"color"`
}

// Load reads config.toml from ~/.config/qpm and then installRoot (if set),
// applying QPM_* environment overrides on top
func Load(installRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("toml")

	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "qpm"))
	}
	if installRoot != "" {
		v.AddConfigPath(installRoot)
	}
	return load(v)
}

// LoadFile reads configuration from an explicit file
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("QPM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Paths.InstallRoot = expandPath(cfg.Paths.InstallRoot)
	cfg.Paths.StoreDir = expandPath(cfg.Paths.StoreDir)
	cfg.Paths.DBFile = expandPath(cfg.Paths.DBFile)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)
	cfg.Paths.TempDir = expandPath(cfg.Paths.TempDir)

	return &cfg, nil
}

// setDefaults sets default configuration values. Path keys are bound with
// empty defaults so environment overrides reach them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.install_root", "")
	v.SetDefault("paths.store_dir", "")
	v.SetDefault("paths.db_file", "")
	v.SetDefault("paths.log_file", "")
	v.SetDefault("paths.temp_dir", "")

	v.SetDefault("install.manifest_file", core.ManifestFileName)
	v.SetDefault("install.checksum_algorithm", string(integrity.DefaultAlgorithm))
	v.SetDefault("install.script_timeout", 10*time.Minute)

	v.SetDefault("network.timeout", 5*time.Minute)
	v.SetDefault("network.user_agent", "qpm")
	v.SetDefault("network.progress", true)

	v.SetDefault("self_update.manifest_url", selfupdate.DefaultManifestURL)
	v.SetDefault("self_update.bootstrap_delay", selfupdate.DefaultDelay)
	v.SetDefault("self_update.ready_timeout", selfupdate.DefaultReadyTimeout)
	v.SetDefault("self_update.required_entries", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.color", "auto")
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}
