// Package config loads and validates process configuration for the
// ffxivsniff capture pipeline, layering CLI flags, environment variables,
// a YAML config file, and defaults via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/karashiiro/ffxivsniff/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the ffxivsniff process configuration.
//
// Configuration sources, in order of precedence:
//  1. CLI flags (highest priority)
//  2. Environment variables (FFXIVSNIFF_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Environment variables override only keys that the configuration file
// sets. When no configuration file is found, Load returns the defaults
// without reading the environment.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Capture configures the packet-capture device and filter.
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`

	// Region selects the opcode and constants tables used to interpret
	// IPC segments. One of: Global, Chinese, Korean.
	Region string `mapstructure:"region" yaml:"region"`

	// Assets configures how opcode/constants catalogs are fetched and cached.
	Assets AssetsConfig `mapstructure:"assets" yaml:"assets"`

	// FlowTTL is the idle duration after which a tracked flow is evicted
	// from the demultiplexer. Zero (unset) takes the 30-minute default; a
	// negative value disables eviction.
	FlowTTL time.Duration `mapstructure:"flow_ttl" yaml:"flow_ttl"`

	// MaxQueueBufferSize bounds how large a single flow's reassembly
	// buffer may grow. A push that would exceed it is rejected and that
	// payload is discarded; the flow and its already-buffered bytes stay.
	// Supports human-readable sizes: "1MB", "512Ki".
	MaxQueueBufferSize bytesize.ByteSize `mapstructure:"max_queue_buffer_size" yaml:"max_queue_buffer_size"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing and
// continuous profiling.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the HTTP server are active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint.
	Port int `mapstructure:"port" yaml:"port"`
}

// CaptureConfig configures the packet-capture device and BPF filter.
type CaptureConfig struct {
	// Device is the capture device identifier (interface name, or a pcap
	// file path when Offline is set).
	Device string `mapstructure:"device" yaml:"device"`

	// Offline, if set, replays packets from a pcap file at Device instead
	// of opening a live capture device.
	Offline bool `mapstructure:"offline" yaml:"offline"`

	// Filter is the BPF filter expression applied to the capture device.
	// Defaults to the well-known client/server port ranges.
	Filter string `mapstructure:"filter" yaml:"filter"`

	// SnapLen is the maximum number of bytes captured per packet.
	SnapLen int32 `mapstructure:"snap_len" yaml:"snap_len"`

	// Promiscuous controls whether the device is opened in promiscuous mode.
	Promiscuous bool `mapstructure:"promiscuous" yaml:"promiscuous"`
}

// DefaultBPFFilter is the default filter expression covering the
// well-known client/server frame port ranges.
const DefaultBPFFilter = "tcp portrange 54992-54994 or tcp portrange 55006-55007 or " +
	"tcp portrange 55021-55040 or tcp portrange 55296-55551"

// AssetsConfig configures how opcode/constants catalogs are sourced.
type AssetsConfig struct {
	// OpcodesURL is fetched for the opcode-to-name tables.
	OpcodesURL string `mapstructure:"opcodes_url" yaml:"opcodes_url"`

	// ConstantsURL is fetched for the region constants tables.
	ConstantsURL string `mapstructure:"constants_url" yaml:"constants_url"`

	// CacheDir is the directory used to persist the last-known-good
	// catalog response, consulted when the remote fetch fails.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// RefreshInterval controls how often the catalogs are re-fetched.
	// Zero disables periodic refresh; the cached catalog is used for the
	// life of the process.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`

	// FetchTimeout bounds a single catalog fetch attempt.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

const (
	defaultOpcodesURL   = "https://raw.githubusercontent.com/karashiiro/FFXIVOpcodes/master/opcodes.min.json"
	defaultConstantsURL = "https://raw.githubusercontent.com/karashiiro/FFXIVOpcodes/master/constants.min.json"
)

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that cfg is internally consistent.
func Validate(cfg *Config) error {
	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Logging.Level)
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}

	switch cfg.Region {
	case "Global", "Chinese", "Korean":
	default:
		return fmt.Errorf("region must be one of Global, Chinese, Korean, got %q", cfg.Region)
	}

	if cfg.Capture.Device == "" {
		return fmt.Errorf("capture.device is required")
	}

	if cfg.Telemetry.SampleRate < 0 || cfg.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", cfg.Telemetry.SampleRate)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be a valid TCP port, got %d", cfg.Metrics.Port)
	}

	return nil
}

// setupViper configures viper with environment variable and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FFXIVSNIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for ByteSize and
// time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ffxivsniff")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ffxivsniff")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
