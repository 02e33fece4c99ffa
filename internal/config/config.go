package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "image-compressor-go/internal/errors"
	"image-compressor-go/internal/options"
	"image-compressor-go/internal/quality"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig,
// e.g. IMAGE_COMPRESSOR_SERVER_PORT.
const EnvPrefix = "IMAGE_COMPRESSOR"

// Config represents the main configuration structure
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Compression CompressionConfig `mapstructure:"compression"`
	Batch       BatchConfig       `mapstructure:"batch"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains HTTP service settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	CompressTimeout time.Duration `mapstructure:"compress_timeout"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
}

// CompressionConfig holds the defaults fed into CompressionOptions
type CompressionConfig struct {
	PNGQuality string `mapstructure:"png_quality"`
	PNGLossy   bool   `mapstructure:"png_lossy"`
	Oxipng     bool   `mapstructure:"oxipng"`
}

// BatchConfig contains CLI batch settings
type BatchConfig struct {
	Jobs int `mapstructure:"jobs"` // 0 means one worker per CPU
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            3030,
			MaxUploadMB:     50,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			CompressTimeout: 90 * time.Second,
			AllowedOrigin:   "*",
		},
		Compression: CompressionConfig{
			PNGQuality: quality.DefaultText,
			PNGLossy:   true,
			Oxipng:     true,
		},
		Batch: BatchConfig{
			Jobs: 0,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	return Load(viper.New(), configPath)
}

// Load reads configuration through v. Keys are registered as defaults first
// so that environment variables override them even without a config file.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	config := DefaultConfig()
	setDefaults(v, config)

	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-compressor")
		v.AddConfigPath("/etc/image-compressor")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperrors.Config("read", fmt.Errorf("error reading config file: %w", err))
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, apperrors.Config("unmarshal", fmt.Errorf("error unmarshaling config: %w", err))
	}

	if err := config.Validate(); err != nil {
		return nil, apperrors.Config("validate", fmt.Errorf("config validation failed: %w", err))
	}

	return config, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("server.host", c.Server.Host)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.max_upload_mb", c.Server.MaxUploadMB)
	v.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("server.compress_timeout", c.Server.CompressTimeout)
	v.SetDefault("server.allowed_origin", c.Server.AllowedOrigin)

	v.SetDefault("compression.png_quality", c.Compression.PNGQuality)
	v.SetDefault("compression.png_lossy", c.Compression.PNGLossy)
	v.SetDefault("compression.oxipng", c.Compression.Oxipng)

	v.SetDefault("batch.jobs", c.Batch.Jobs)

	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
}

// Validate normalizes out-of-range values and rejects the ones that cannot
// be normalized.
func (c *Config) Validate() error {
	defaults := DefaultConfig()

	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = defaults.Server.MaxUploadMB
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if c.Server.CompressTimeout <= 0 {
		c.Server.CompressTimeout = defaults.Server.CompressTimeout
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = defaults.Server.AllowedOrigin
	}

	if c.Compression.PNGQuality == "" {
		c.Compression.PNGQuality = quality.DefaultText
	}

	if c.Batch.Jobs < 0 {
		c.Batch.Jobs = 0
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// MaxUploadBytes returns the request body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

// Options returns the compression options implied by the compression
// section, with no conversion target.
func (c *Config) Options() options.CompressionOptions {
	o := options.Default()
	o.PNGQuality = c.Compression.PNGQuality
	o.PNGLossy = c.Compression.PNGLossy
	o.Oxipng = c.Compression.Oxipng
	return o
}

// Address returns the host:port listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
