package commands

import (
	"testing"

	"github.com/karashiiro/ffxivsniff/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestApplyCaptureFlagsOverlaysNonZeroValues(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Capture.Device = "any"
	cfg.Region = "Global"

	captureDevice = "eth0"
	captureOffline = true
	captureFilter = "tcp port 54993"
	captureSnapLen = 4096
	capturePromiscuous = true
	captureRegion = "Korean"
	defer func() {
		captureDevice = ""
		captureOffline = false
		captureFilter = ""
		captureSnapLen = 0
		capturePromiscuous = false
		captureRegion = ""
	}()

	applyCaptureFlags(cfg)

	assert.Equal(t, "eth0", cfg.Capture.Device)
	assert.True(t, cfg.Capture.Offline)
	assert.Equal(t, "tcp port 54993", cfg.Capture.Filter)
	assert.Equal(t, int32(4096), cfg.Capture.SnapLen)
	assert.True(t, cfg.Capture.Promiscuous)
	assert.Equal(t, "Korean", cfg.Region)
}

func TestApplyCaptureFlagsLeavesUnsetFlagsAlone(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Capture.Device = "any"
	cfg.Capture.Filter = "original-filter"

	captureDevice = ""
	captureOffline = false
	captureFilter = ""
	captureSnapLen = 0
	capturePromiscuous = false
	captureRegion = ""

	applyCaptureFlags(cfg)

	assert.Equal(t, "any", cfg.Capture.Device)
	assert.Equal(t, "original-filter", cfg.Capture.Filter)
	assert.False(t, cfg.Capture.Offline)
}
