package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "KLF200_"

// Config is the root configuration structure of the bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig contains the KLF-200 connection and session settings.
type GatewayConfig struct {
	// Driver selects the registered gateway driver. Default: "simulator"
	Driver string `yaml:"driver"`

	Host string `yaml:"host"`

	// Port is the gateway's TLS port. Default: 51200
	Port int `yaml:"port"`

	Password string `yaml:"password"`

	// Fingerprint pins the gateway certificate when the driver supports it.
	Fingerprint string `yaml:"fingerprint,omitempty"`

	// ReconnectDelay is the fixed wait between failed logins.
	// Default: 1s
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// LoginTimeout bounds a single login. Default: 30s
	LoginTimeout time.Duration `yaml:"login_timeout"`

	// RefreshInterval is how often the gateway state is polled.
	// Default: 30s
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// CommandTimeout bounds each device command. Default: 10s
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// TimeZone is the gateway time zone string sent after every login.
	TimeZone string `yaml:"time_zone"`

	// AutomaticReboot restarts the gateway on RebootCron.
	AutomaticReboot bool `yaml:"automatic_reboot"`

	// RebootCron is a standard five-field cron expression.
	// Default: "0 3 * * *"
	RebootCron string `yaml:"reboot_cron"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KLF200_SECTION_KEY
// For example: KLF200_GATEWAY_HOST, KLF200_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Driver:          "simulator",
			Port:            51200,
			ReconnectDelay:  time.Second,
			LoginTimeout:    30 * time.Second,
			RefreshInterval: 30 * time.Second,
			CommandTimeout:  10 * time.Second,
			TimeZone:        ":GMT+1:GMT+2:0060:(1994)040102-0:110102-0",
			RebootCron:      "0 3 * * *",
		},
		Database: DatabaseConfig{
			Path:        "./data/klf200.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "klf200-bridge",
			},
			QoS:         1,
			TopicPrefix: "klf200",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "klf200",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/klf200bridge.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KLF200_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"GATEWAY_DRIVER":    &cfg.Gateway.Driver,
		"GATEWAY_HOST":      &cfg.Gateway.Host,
		"GATEWAY_PASSWORD":  &cfg.Gateway.Password,
		"GATEWAY_TIME_ZONE": &cfg.Gateway.TimeZone,
		"DATABASE_PATH":     &cfg.Database.Path,
		"MQTT_HOST":         &cfg.MQTT.Broker.Host,
		"MQTT_USERNAME":     &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":     &cfg.MQTT.Auth.Password,
		"INFLUXDB_URL":      &cfg.InfluxDB.URL,
		"INFLUXDB_TOKEN":    &cfg.InfluxDB.Token,
		"LOG_LEVEL":         &cfg.Logging.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	var errs []string
	durations := map[string]*time.Duration{
		"GATEWAY_RECONNECT_DELAY":  &cfg.Gateway.ReconnectDelay,
		"GATEWAY_REFRESH_INTERVAL": &cfg.Gateway.RefreshInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			d, err := cast.ToDurationE(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				continue
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"GATEWAY_AUTOMATIC_REBOOT": &cfg.Gateway.AutomaticReboot,
		"MQTT_ENABLED":             &cfg.MQTT.Enabled,
		"INFLUXDB_ENABLED":         &cfg.InfluxDB.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			b, err := cast.ToBoolE(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				continue
			}
			*dst = b
		}
	}

	if v := os.Getenv(EnvPrefix + "MQTT_PORT"); v != "" {
		port, err := cast.ToIntE(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sMQTT_PORT: %v", EnvPrefix, err))
		} else {
			cfg.MQTT.Broker.Port = port
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.Driver == "" {
		errs = append(errs, "gateway.driver is required")
	}
	if c.Gateway.Driver != "simulator" && c.Gateway.Host == "" {
		errs = append(errs, "gateway.host is required")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}
	if c.Gateway.ReconnectDelay <= 0 {
		errs = append(errs, "gateway.reconnect_delay must be positive")
	}
	if c.Gateway.RefreshInterval <= 0 {
		errs = append(errs, "gateway.refresh_interval must be positive")
	}
	if c.Gateway.CommandTimeout <= 0 {
		errs = append(errs, "gateway.command_timeout must be positive")
	}
	if c.Gateway.AutomaticReboot {
		if _, err := cron.ParseStandard(c.Gateway.RebootCron); err != nil {
			errs = append(errs, fmt.Sprintf("gateway.reboot_cron is invalid: %v", err))
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn or error")
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, "logging.output must be stdout, stderr or file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
