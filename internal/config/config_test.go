package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "Global", cfg.Region)
	assert.Equal(t, "any", cfg.Capture.Device)
	assert.Equal(t, DefaultBPFFilter, cfg.Capture.Filter)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Minute, cfg.FlowTTL)
	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsBadRegion(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Region = "Atlantis"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"
	assert.Error(t, Validate(cfg))
}

func TestValidateRequiresCaptureDevice(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Capture.Device = ""
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsBadSampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5
	assert.Error(t, Validate(cfg))
}

func TestLoadWithNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Global", cfg.Region)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Region = "Korean"
	cfg.Capture.Device = "eth0"

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Korean", loaded.Region)
	assert.Equal(t, "eth0", loaded.Capture.Device)
}

func TestByteSizeDecodeHook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Capture.Device = "eth0"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.MaxQueueBufferSize, loaded.MaxQueueBufferSize)
}
