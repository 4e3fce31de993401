package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NOVA_HTTP_BIND_ADDR
const EnvPrefix = "NOVA"

// Config represents the entire application configuration
type Config struct {
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// SandboxConfig contains the bundled content roots
type SandboxConfig struct {
	PagesDir  string   `mapstructure:"pages_dir"`
	AssetsDir string   `mapstructure:"assets_dir"`
	Version   string   `mapstructure:"version"`
	Pages     []string `mapstructure:"pages"`
	Theme     []string `mapstructure:"theme"`
}

// DownloadsConfig contains download directory settings
type DownloadsConfig struct {
	Dir                string `mapstructure:"dir"`
	OpenFolderInterval string `mapstructure:"open_folder_interval"`
	CleanupInterval    string `mapstructure:"cleanup_interval"`
	PartFileMaxAge     string `mapstructure:"part_file_max_age"`
}

// TransferConfig contains settings for back end HTTP transfers
type TransferConfig struct {
	RetryMax         int    `mapstructure:"retry_max"`
	RetryWaitMin     string `mapstructure:"retry_wait_min"`
	RetryWaitMax     string `mapstructure:"retry_wait_max"`
	UserAgent        string `mapstructure:"user_agent"`
	ProgressInterval string `mapstructure:"progress_interval"`
	BufferSizeKB     int    `mapstructure:"buffer_size_kb"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr     string `mapstructure:"bind_addr"`
	APIToken     string `mapstructure:"api_token"`
	AllowRemote  bool   `mapstructure:"allow_remote"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration. configPath may be empty, in which case only
// defaults and environment overrides apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()

	v.SetDefault("sandbox.pages_dir", filepath.Join(dataDir, "pages"))
	v.SetDefault("sandbox.assets_dir", filepath.Join(dataDir, "assets"))
	v.SetDefault("sandbox.version", "dev")
	v.SetDefault("sandbox.pages", []string{})
	v.SetDefault("sandbox.theme", []string{})
	v.SetDefault("downloads.dir", defaultDownloadDir())
	v.SetDefault("downloads.open_folder_interval", "1s")
	v.SetDefault("downloads.cleanup_interval", "1h")
	v.SetDefault("downloads.part_file_max_age", "24h")
	v.SetDefault("transfer.retry_max", 3)
	v.SetDefault("transfer.retry_wait_min", "1s")
	v.SetDefault("transfer.retry_wait_max", "30s")
	v.SetDefault("transfer.user_agent", "NovaBrowser")
	v.SetDefault("transfer.progress_interval", "250ms")
	v.SetDefault("transfer.buffer_size_kb", 256)
	v.SetDefault("http.bind_addr", "127.0.0.1:7879")
	v.SetDefault("http.api_token", "")
	v.SetDefault("http.allow_remote", false)
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", filepath.Join(dataDir, "downloads.db"))
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "nova-shell")
	}
	return "nova-shell"
}

func defaultDownloadDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads")
	}
	return "Downloads"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate sandbox config
	if c.Sandbox.PagesDir == "" {
		return fmt.Errorf("sandbox.pages_dir is required")
	}
	if c.Sandbox.AssetsDir == "" {
		return fmt.Errorf("sandbox.assets_dir is required")
	}

	// Validate downloads config
	if c.Downloads.Dir == "" {
		return fmt.Errorf("downloads.dir is required")
	}
	for key, value := range map[string]string{
		"downloads.open_folder_interval": c.Downloads.OpenFolderInterval,
		"downloads.cleanup_interval":     c.Downloads.CleanupInterval,
		"downloads.part_file_max_age":    c.Downloads.PartFileMaxAge,
		"transfer.retry_wait_min":        c.Transfer.RetryWaitMin,
		"transfer.retry_wait_max":        c.Transfer.RetryWaitMax,
		"transfer.progress_interval":     c.Transfer.ProgressInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	// Validate transfer config
	if c.Transfer.RetryMax < 0 || c.Transfer.RetryMax > 10 {
		return fmt.Errorf("transfer.retry_max must be between 0 and 10")
	}
	if c.Transfer.BufferSizeKB < 0 {
		return fmt.Errorf("transfer.buffer_size_kb must not be negative")
	}

	// Validate HTTP config
	host, _, err := net.SplitHostPort(c.HTTP.BindAddr)
	if err != nil {
		return fmt.Errorf("invalid http.bind_addr: %w", err)
	}
	if !c.HTTP.AllowRemote && !isLoopback(host) {
		return fmt.Errorf("http.bind_addr %q is not a loopback address; set http.allow_remote to override", c.HTTP.BindAddr)
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(value)
	if d <= 0 {
		return fallback
	}
	return d
}

// GetOpenFolderInterval returns the minimum time between two reveals of the same folder
func (c *DownloadsConfig) GetOpenFolderInterval() time.Duration {
	return parseDuration(c.OpenFolderInterval, time.Second)
}

// GetCleanupInterval returns the partial file cleanup interval as time.Duration
func (c *DownloadsConfig) GetCleanupInterval() time.Duration {
	return parseDuration(c.CleanupInterval, time.Hour)
}

// GetPartFileMaxAge returns the age after which a partial file is removed
func (c *DownloadsConfig) GetPartFileMaxAge() time.Duration {
	return parseDuration(c.PartFileMaxAge, 24*time.Hour)
}

// GetRetryWaitMin returns the minimum retry backoff as time.Duration
func (c *TransferConfig) GetRetryWaitMin() time.Duration {
	return parseDuration(c.RetryWaitMin, time.Second)
}

// GetRetryWaitMax returns the maximum retry backoff as time.Duration
func (c *TransferConfig) GetRetryWaitMax() time.Duration {
	return parseDuration(c.RetryWaitMax, 30*time.Second)
}

// GetProgressInterval returns the progress signal interval as time.Duration
func (c *TransferConfig) GetProgressInterval() time.Duration {
	return parseDuration(c.ProgressInterval, 250*time.Millisecond)
}

// GetBufferSize returns the copy buffer size in bytes
func (c *TransferConfig) GetBufferSize() int {
	if c.BufferSizeKB <= 0 {
		return 256 * 1024
	}
	return c.BufferSizeKB * 1024
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 30*time.Second)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}
