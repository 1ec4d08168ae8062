package config

import (
	"strings"
	"time"

	"github.com/karashiiro/ffxivsniff/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default strategy: zero values (0, "", false, nil) are replaced with
// defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyCaptureDefaults(&cfg.Capture)
	applyAssetsDefaults(&cfg.Assets)

	if cfg.Region == "" {
		cfg.Region = "Global"
	}
	if cfg.FlowTTL == 0 {
		cfg.FlowTTL = 30 * time.Minute
	}
	if cfg.MaxQueueBufferSize == 0 {
		cfg.MaxQueueBufferSize = bytesize.MiB
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyCaptureDefaults(cfg *CaptureConfig) {
	if cfg.Filter == "" {
		cfg.Filter = DefaultBPFFilter
	}
	if cfg.SnapLen == 0 {
		cfg.SnapLen = 65536
	}
}

func applyAssetsDefaults(cfg *AssetsConfig) {
	if cfg.OpcodesURL == "" {
		cfg.OpcodesURL = defaultOpcodesURL
	}
	if cfg.ConstantsURL == "" {
		cfg.ConstantsURL = defaultConstantsURL
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = getConfigDir()
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
}

// GetDefaultConfig returns a Config with all defaults applied.
//
// This is useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Capture: CaptureConfig{
			Device: "any",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
