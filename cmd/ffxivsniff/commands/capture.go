package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/karashiiro/ffxivsniff/internal/assets"
	"github.com/karashiiro/ffxivsniff/internal/capture"
	"github.com/karashiiro/ffxivsniff/internal/capturedrv"
	"github.com/karashiiro/ffxivsniff/internal/config"
	"github.com/karashiiro/ffxivsniff/internal/decode"
	"github.com/karashiiro/ffxivsniff/internal/eventbus"
	"github.com/karashiiro/ffxivsniff/internal/logger"
	"github.com/karashiiro/ffxivsniff/internal/metrics"
	"github.com/karashiiro/ffxivsniff/internal/opcodes"
	"github.com/karashiiro/ffxivsniff/internal/regionconst"
	"github.com/karashiiro/ffxivsniff/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	captureDevice      string
	captureOffline     bool
	captureFilter      string
	captureSnapLen     int32
	capturePromiscuous bool
	captureRegion      string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Observe and decode FFXIV client/server traffic",
	Long: `Capture opens a packet-capture device (or replays a pcap file), applies
a BPF filter over the well-known client/server frame port ranges, and
decodes observed frames into named IPC messages.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/ffxivsniff/config.yaml.

Examples:
  # Capture on a live interface
  ffxivsniff capture --device eth0

  # Replay a pcap file
  ffxivsniff capture --device dump.pcap --offline

  # Override a setting from the config file with an environment variable
  FFXIVSNIFF_LOGGING_LEVEL=DEBUG ffxivsniff capture --device eth0`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&captureDevice, "device", "", "capture device name, or pcap file path with --offline")
	captureCmd.Flags().BoolVar(&captureOffline, "offline", false, "replay --device as a pcap file instead of a live device")
	captureCmd.Flags().StringVar(&captureFilter, "filter", "", "BPF filter expression (default: well-known frame port ranges)")
	captureCmd.Flags().Int32Var(&captureSnapLen, "snap-len", 0, "maximum bytes captured per packet")
	captureCmd.Flags().BoolVar(&capturePromiscuous, "promiscuous", false, "open the device in promiscuous mode")
	captureCmd.Flags().StringVar(&captureRegion, "region", "", "region constants to decode with: Global, Chinese, Korean")
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyCaptureFlags(cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "ffxivsniff",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	sessionID := uuid.NewString()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "ffxivsniff",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		Tags: map[string]string{
			"session_id": sessionID,
			"region":     cfg.Region,
		},
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("ffxivsniff starting", "session_id", sessionID, "device", cfg.Capture.Device, "offline", cfg.Capture.Offline, "region", cfg.Region)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		metrics.Init()
		collector = metrics.NewCollector()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
		go serveMetrics(cfg.Metrics.Port)
	}

	region := regionconst.Region(cfg.Region)
	idx := opcodes.New()
	bus := eventbus.New()
	demux := capture.NewDemux(cfg.MaxQueueBufferSize, collector)

	loader := assets.NewLoader(assets.Config{
		OpcodesURL:   cfg.Assets.OpcodesURL,
		ConstantsURL: cfg.Assets.ConstantsURL,
		CacheDir:     cfg.Assets.CacheDir,
		FetchTimeout: cfg.Assets.FetchTimeout,
	}, collector)

	cat, err := loadAssets(ctx, loader, idx, bus, region)
	if err != nil {
		return fmt.Errorf("failed to load opcode/constants catalog: %w", err)
	}

	processor := capture.NewProcessor(idx, decode.NewRegistry(), cat.RegionConstants(region), bus, collector)

	subscribeLogging(bus)

	source := capturedrv.New(capturedrv.Config{
		Device:      cfg.Capture.Device,
		Offline:     cfg.Capture.Offline,
		Filter:      cfg.Capture.Filter,
		SnapLen:     cfg.Capture.SnapLen,
		Promiscuous: cfg.Capture.Promiscuous,
		Timeout:     time.Second,
	})
	if err := source.Open(ctx); err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Warn("error closing capture device", "error", err)
		}
	}()

	sweepDone := startSweepLoop(ctx, demux, cfg.FlowTTL)
	defer func() { <-sweepDone }()

	assetUpdates := startAssetRefreshLoop(ctx, loader, cfg.Assets.RefreshInterval)

	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		runCaptureLoop(ctx, source, demux, processor, idx, assetUpdates, region)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("capture running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		<-captureDone
	case <-captureDone:
		logger.Info("capture source closed")
	}

	logger.Info("ffxivsniff stopped")
	return nil
}

// applyCaptureFlags overlays non-zero CLI flags onto cfg, matching the
// CLI-flags-beat-everything precedence documented on config.Config.
func applyCaptureFlags(cfg *config.Config) {
	if captureDevice != "" {
		cfg.Capture.Device = captureDevice
	}
	if captureOffline {
		cfg.Capture.Offline = true
	}
	if captureFilter != "" {
		cfg.Capture.Filter = captureFilter
	}
	if captureSnapLen != 0 {
		cfg.Capture.SnapLen = captureSnapLen
	}
	if capturePromiscuous {
		cfg.Capture.Promiscuous = true
	}
	if captureRegion != "" {
		cfg.Region = captureRegion
	}
}

// loadAssets loads the opcode/constants catalog, rebuilds the index for
// region, and publishes the ready event consumers wait on before
// subscribing to message events. The loaded Catalog is returned so the
// caller can resolve the region constants the processor starts with.
func loadAssets(ctx context.Context, loader *assets.Loader, idx *opcodes.Index, bus *eventbus.Bus, region regionconst.Region) (*assets.Catalog, error) {
	cat, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx.Rebuild(cat.RegionLists(region))
	logger.Info("opcode catalog loaded", "region", region, "entries", idx.Len())
	bus.Publish(eventbus.EventReady, nil)
	return cat, nil
}

// startAssetRefreshLoop periodically reloads the opcode/constants
// catalog on a ticker, sending each successfully loaded Catalog on the
// returned channel. A failed refresh is logged and skipped rather than
// torn down, since the previously loaded catalog remains usable. The
// channel is closed (with no values ever sent) when interval is zero,
// matching AssetsConfig.RefreshInterval's documented "disables periodic
// refresh" zero value, or once ctx is canceled.
func startAssetRefreshLoop(ctx context.Context, loader *assets.Loader, interval time.Duration) <-chan *assets.Catalog {
	updates := make(chan *assets.Catalog)
	if interval <= 0 {
		close(updates)
		return updates
	}

	go func() {
		defer close(updates)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cat, err := loader.Load(ctx)
				if err != nil {
					logger.Warn("periodic asset refresh failed, continuing with previously loaded catalog", "error", err)
					continue
				}
				select {
				case updates <- cat:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return updates
}

// subscribeLogging wires a minimal set of event subscribers that log
// decoded messages and pipeline errors, standing in for a real consumer
// of the eventbus contract.
func subscribeLogging(bus *eventbus.Bus) {
	messages := bus.Subscribe(eventbus.EventMessage)
	errs := bus.Subscribe(eventbus.EventError)

	go func() {
		for v := range messages {
			msg, ok := v.(capture.Message)
			if !ok {
				continue
			}
			logger.Debug("message decoded", "name", msg.Name, "bytes", len(msg.Segment.IpcData))
		}
	}()

	go func() {
		for v := range errs {
			err, ok := v.(capture.ProcessingError)
			if !ok {
				continue
			}
			logger.Warn("pipeline error", "dest_port", err.DestPort, "error", err.Err)
		}
	}()
}

// runCaptureLoop drains TCP segments from source, appends PSH payloads to
// their flow's reassembly buffer, and processes every complete frame
// that becomes available. It also applies catalog refreshes arriving on
// assetUpdates: idx.Rebuild is safe from any goroutine, but
// processor.SetRegion must only be called from the goroutine that calls
// processor.Process, so the refresh is applied here rather than from
// the ticker goroutine that produced it.
func runCaptureLoop(ctx context.Context, source capturedrv.Source, demux *capture.Demux, processor *capture.Processor, idx *opcodes.Index, assetUpdates <-chan *assets.Catalog, region regionconst.Region) {
	for {
		select {
		case <-ctx.Done():
			return
		case cat, ok := <-assetUpdates:
			if !ok {
				assetUpdates = nil
				continue
			}
			idx.Rebuild(cat.RegionLists(region))
			processor.SetRegion(cat.RegionConstants(region))
			logger.Info("opcode/constants catalog refreshed", "region", region, "entries", idx.Len())
		case seg, ok := <-source.Segments():
			if !ok {
				return
			}
			if !seg.PSH || len(seg.Payload) == 0 {
				continue
			}

			qbuf, err := demux.Push(seg.DstPort, seg.Payload, seg.Seen)
			if err != nil {
				logger.Warn("flow buffer overflow, dropping flow data", "dest_port", seg.DstPort, "error", err)
				continue
			}

			for _, frame := range capture.DrainFrames(qbuf) {
				src := capture.Addr{IP: seg.SrcAddr, Port: seg.SrcPort}
				dst := capture.Addr{IP: seg.DstAddr, Port: seg.DstPort}
				processor.Process(ctx, src, dst, frame)
			}
		}
	}
}

// startSweepLoop periodically evicts idle flows from demux until ctx is
// canceled, returning a channel closed once the loop has exited.
func startSweepLoop(ctx context.Context, demux *capture.Demux, ttl time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if ttl <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if evicted := demux.Sweep(now, ttl); evicted > 0 {
					logger.Debug("swept idle flows", "evicted", evicted)
				}
			}
		}
	}()
	return done
}

// serveMetrics runs the Prometheus exposition HTTP server until the
// process exits; a bind failure is logged rather than fatal since
// metrics collection is optional.
func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server error", "error", err)
	}
}
