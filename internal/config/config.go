package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete ftpd configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FTPJAIL_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Accounts are listed inline under users, or in a separate YAML file named by
// users_file. Both may be used; the lists are concatenated.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains the FTP listener and session settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Users are the inline accounts
	Users []UserConfig `mapstructure:"users" yaml:"users" validate:"dive"`

	// UsersFile is an optional YAML file with more accounts. Relative paths
	// are resolved against the directory of the config file.
	UsersFile string `mapstructure:"users_file" yaml:"users_file,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains the FTP server settings. Zero limits and timeouts
// mean "no limit" unless a default is documented.
type ServerConfig struct {
	// Address is the control connection listen address
	Address string `mapstructure:"address" yaml:"address" validate:"required"`

	// WelcomeMessage is the text of the 220 greeting
	WelcomeMessage string `mapstructure:"welcome_message" yaml:"welcome_message,omitempty"`

	// PublicHost is the IPv4 address or host name announced in PASV replies
	PublicHost string `mapstructure:"public_host" yaml:"public_host,omitempty" validate:"omitempty,ipv4|hostname"`

	// DataPort pins every passive listener to one port (0 = kernel chooses)
	DataPort int `mapstructure:"data_port" yaml:"data_port,omitempty" validate:"gte=0,lte=65535"`

	// PassivePortMin and PassivePortMax bound the passive port range
	PassivePortMin int `mapstructure:"passive_port_min" yaml:"passive_port_min,omitempty" validate:"gte=0,lte=65535"`
	PassivePortMax int `mapstructure:"passive_port_max" yaml:"passive_port_max,omitempty" validate:"gte=0,lte=65535"`

	// DataConnTimeout bounds PASV accepts and PORT dials
	DataConnTimeout time.Duration `mapstructure:"data_conn_timeout" yaml:"data_conn_timeout" validate:"gt=0"`

	// IdleTimeout is how long a control connection may wait between commands
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`

	// ReadTimeout and WriteTimeout are per-operation socket deadlines
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout,omitempty" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout,omitempty" validate:"gte=0"`

	// MaxConnections limits simultaneous control connections
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections,omitempty" validate:"gte=0"`

	// MaxConnectionsPerIP limits simultaneous control connections per client
	MaxConnectionsPerIP int `mapstructure:"max_connections_per_ip" yaml:"max_connections_per_ip,omitempty" validate:"gte=0"`

	// DisabledCommands are refused with 502 after login
	DisabledCommands []string `mapstructure:"disabled_commands" yaml:"disabled_commands,omitempty"`

	// ReadOnly disables every command that modifies the filesystem
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only,omitempty"`

	// BandwidthLimit is the server-wide transfer rate in bytes per second
	BandwidthLimit int64 `mapstructure:"bandwidth_limit" yaml:"bandwidth_limit,omitempty" validate:"gte=0"`

	// BandwidthLimitPerUser is the per-transfer rate in bytes per second
	BandwidthLimitPerUser int64 `mapstructure:"bandwidth_limit_per_user" yaml:"bandwidth_limit_per_user,omitempty" validate:"gte=0"`

	// TransferLog is an optional xferlog-format file path
	TransferLog string `mapstructure:"transfer_log" yaml:"transfer_log,omitempty"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the HTTP listen address of the endpoint
	Address string `mapstructure:"address" yaml:"address" validate:"required_if=Enabled true"`

	// Path is the URL path the metrics are served on
	Path string `mapstructure:"path" yaml:"path" validate:"omitempty,startswith=/"`
}

// UserConfig is one FTP account.
type UserConfig struct {
	// Name is the login name
	Name string `mapstructure:"name" yaml:"name" validate:"required"`

	// Password is a plain-text secret or a bcrypt hash (see ftpd --hash-password)
	Password string `mapstructure:"password" yaml:"password"`

	// Role is one of normal, blocked, notallowed
	Role string `mapstructure:"role" yaml:"role,omitempty" validate:"omitempty,oneof=normal blocked notallowed not_allowed"`

	// Root is the directory the account is jailed to
	Root string `mapstructure:"root" yaml:"root" validate:"required"`
}

// Load loads configuration from file, environment variables, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FTPJAIL_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath uses the default location, where a missing file is not
// an error. The result still needs at least one account to validate.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.UsersFile != "" {
		path := cfg.UsersFile
		if !filepath.IsAbs(path) && v.ConfigFileUsed() != "" {
			path = filepath.Join(filepath.Dir(v.ConfigFileUsed()), path)
		}
		users, err := LoadUsersFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Users = append(cfg.Users, users...)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FTPJAIL_SERVER_ADDRESS=:2121
	v.SetEnvPrefix("FTPJAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only consults keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.address",
	"server.public_host",
	"server.read_only",
	"server.shutdown_timeout",
	"metrics.enabled",
	"metrics.address",
	"users_file",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ftpjail")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ftpjail")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
