// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Device   DeviceConfig   `mapstructure:"device"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DeviceConfig represents the fingerprint sensor connection settings
type DeviceConfig struct {
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// Handshake
	ReadySignature       string        `mapstructure:"ready_signature"`
	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	HandshakeWindow      time.Duration `mapstructure:"handshake_window"`
	HandshakeReadTimeout time.Duration `mapstructure:"handshake_read_timeout"`

	// Supervisor
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	ReconnectDelay      time.Duration `mapstructure:"reconnect_delay"`
	PresenceInterval    time.Duration `mapstructure:"presence_interval"`
	RetryBackoffMin     time.Duration `mapstructure:"retry_backoff_min"`
	RetryBackoffMax     time.Duration `mapstructure:"retry_backoff_max"`
	FastPathAttempts    int           `mapstructure:"fast_path_attempts"`
	InitialScan         bool          `mapstructure:"initial_scan"`
	PreferredPort       string        `mapstructure:"preferred_port"`
	PortPatterns        []string      `mapstructure:"port_patterns"`
	LogBufferSize       int           `mapstructure:"log_buffer_size"`
	SubscriberBuffer    int           `mapstructure:"subscriber_buffer"`
	QueryTimeout        time.Duration `mapstructure:"query_timeout"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

// MetricsConfig represents prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables.
// An empty path searches the default locations; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/fingerprint-bridge")
	}

	// Environment variable support
	v.SetEnvPrefix("FINGERPRINT_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration built from defaults only
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var config Config
	// Defaults always decode cleanly.
	_ = v.Unmarshal(&config)
	return &config
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Device defaults
	v.SetDefault("device.baud_rate", 9600)
	v.SetDefault("device.data_bits", 8)
	v.SetDefault("device.stop_bits", 1)
	v.SetDefault("device.parity", "none")
	v.SetDefault("device.read_timeout", "100ms")
	v.SetDefault("device.ready_signature", "ArduinoFingerPrintSensorReady")
	v.SetDefault("device.settle_delay", "2s")
	v.SetDefault("device.handshake_window", "3s")
	v.SetDefault("device.handshake_read_timeout", "100ms")
	v.SetDefault("device.poll_interval", "200ms")
	v.SetDefault("device.reconnect_delay", "1s")
	v.SetDefault("device.presence_interval", "2s")
	v.SetDefault("device.retry_backoff_min", "500ms")
	v.SetDefault("device.retry_backoff_max", "10s")
	v.SetDefault("device.fast_path_attempts", 3)
	v.SetDefault("device.initial_scan", true)
	v.SetDefault("device.preferred_port", "")
	v.SetDefault("device.port_patterns", []string{})
	v.SetDefault("device.log_buffer_size", 1000)
	v.SetDefault("device.subscriber_buffer", 64)
	v.SetDefault("device.query_timeout", "5s")
	v.SetDefault("device.shutdown_grace_period", "5s")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// App defaults
	v.SetDefault("app.name", "fingerprint-bridge")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return config.Device.Validate()
}

// Validate checks the device settings for values the supervisor cannot work with
func (d *DeviceConfig) Validate() error {
	if d.BaudRate <= 0 {
		return fmt.Errorf("device.baud_rate must be positive, got %d", d.BaudRate)
	}
	if d.ReadySignature == "" {
		return fmt.Errorf("device.ready_signature is required")
	}
	if d.HandshakeWindow <= 0 {
		return fmt.Errorf("device.handshake_window must be positive")
	}
	if d.PollInterval <= 0 {
		return fmt.Errorf("device.poll_interval must be positive")
	}
	if d.RetryBackoffMin <= 0 || d.RetryBackoffMax < d.RetryBackoffMin {
		return fmt.Errorf("device.retry_backoff_min/max must satisfy 0 < min <= max")
	}
	if d.LogBufferSize <= 0 {
		return fmt.Errorf("device.log_buffer_size must be positive")
	}

	switch d.Parity {
	case "", "none", "odd", "even", "mark", "space":
	default:
		return fmt.Errorf("device.parity must be one of none, odd, even, mark, space")
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
