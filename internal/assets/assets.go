// Package assets fetches the opcode and region-constants catalogs from a
// remote source and caches the last-known-good response on disk, so a
// transient fetch failure degrades to stale data instead of blocking
// startup.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/karashiiro/ffxivsniff/internal/logger"
	"github.com/karashiiro/ffxivsniff/internal/metrics"
	"github.com/karashiiro/ffxivsniff/internal/opcodes"
	"github.com/karashiiro/ffxivsniff/internal/regionconst"
)

// opcodeEntry mirrors one {name, opcode} pair in the upstream catalog.
type opcodeEntry struct {
	Name   string `json:"name"`
	Opcode uint16 `json:"opcode"`
}

// opcodeRegion mirrors one region's entry in the upstream opcode catalog.
type opcodeRegion struct {
	Region string `json:"region"`
	Lists  struct {
		ServerZoneIpcType []opcodeEntry `json:"ServerZoneIpcType"`
		ClientZoneIpcType []opcodeEntry `json:"ClientZoneIpcType"`
	} `json:"lists"`
}

// constantsRegion mirrors one region's entry in the upstream constants
// catalog. Zero fields are left unset so RegionConstants can fall back
// to regionconst's shared default for anything the upstream entry
// omits.
type constantsRegion struct {
	Region              string `json:"region"`
	StatusEffectCount   int    `json:"statusEffectCount"`
	AppearanceByteCount int    `json:"appearanceByteCount"`
}

// Catalog is the fully loaded, parsed set of catalogs for every region
// the upstream source published.
type Catalog struct {
	Opcodes   map[regionconst.Region]opcodes.RegionLists
	Constants map[regionconst.Region]regionconst.Constants
}

// Config configures a Loader.
type Config struct {
	OpcodesURL   string
	ConstantsURL string
	CacheDir     string
	FetchTimeout time.Duration
}

// Loader fetches and caches the opcode/constants catalogs.
type Loader struct {
	cfg     Config
	client  *http.Client
	metrics *metrics.Collector
}

// NewLoader returns a Loader using cfg.FetchTimeout as the HTTP client
// timeout.
func NewLoader(cfg Config, collector *metrics.Collector) *Loader {
	return &Loader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		metrics: collector,
	}
}

// Load fetches the opcode and region-constants catalogs, falling back to
// the on-disk cache on failure, and writes a fresh cache copy on
// success. Returns AssetLoadFailure-class errors only when neither the
// network fetch nor the disk cache produced a usable opcode catalog;
// the constants catalog is treated as best-effort, since a missing or
// unreachable constants source still leaves decoders with
// regionconst's shared default layout.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	opcodeData, err := l.fetchOrCache("opcodes", ctx, l.cfg.OpcodesURL, "opcodes.min.json", func(b []byte) error {
		_, err := l.parseOpcodes(b)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("assets: opcode catalog unavailable: %w", err)
	}

	cat, err := l.parseOpcodes(opcodeData)
	if err != nil {
		return nil, err
	}

	cat.Constants = map[regionconst.Region]regionconst.Constants{}
	if l.cfg.ConstantsURL != "" {
		constantsData, err := l.fetchOrCache("constants", ctx, l.cfg.ConstantsURL, "constants.min.json", func(b []byte) error {
			_, err := l.parseConstants(b)
			return err
		})
		if err != nil {
			logger.Warn("region constants catalog unavailable, decoders will use the shared default layout", "error", err)
		} else if constants, err := l.parseConstants(constantsData); err != nil {
			logger.Warn("region constants catalog malformed, decoders will use the shared default layout", "error", err)
		} else {
			cat.Constants = constants
		}
	}

	return cat, nil
}

// fetchOrCache fetches url, falling back to the on-disk cache at
// cacheFile on failure and writing a fresh cache copy on success. A
// fetched body that validate rejects counts as a failed fetch and is not
// cached. kind labels the asset-refresh metric so opcode and constants
// refreshes are distinguishable.
func (l *Loader) fetchOrCache(kind string, ctx context.Context, url, cacheFile string, validate func([]byte) error) ([]byte, error) {
	data, err := l.fetch(ctx, url)
	if err == nil {
		err = validate(data)
	}
	if err != nil {
		l.metrics.ObserveAssetRefresh(kind + "_error")
		cached, cacheErr := l.readCache(cacheFile)
		if cacheErr != nil {
			return nil, fmt.Errorf("fetch failed (%w) and no usable cache: %v", err, cacheErr)
		}
		l.metrics.ObserveAssetRefresh(kind + "_stale_cache")
		return cached, nil
	}

	// A cache write failure is non-fatal: the fetch succeeded, and the
	// cache only matters as a fallback for the next failed fetch.
	_ = l.writeCache(cacheFile, data)
	l.metrics.ObserveAssetRefresh(kind + "_fetched")

	return data, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (l *Loader) parseOpcodes(data []byte) (*Catalog, error) {
	var regions []opcodeRegion
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("assets: parse opcode catalog: %w", err)
	}

	cat := &Catalog{Opcodes: make(map[regionconst.Region]opcodes.RegionLists, len(regions))}
	for _, r := range regions {
		region := regionconst.Region(r.Region)
		cat.Opcodes[region] = opcodes.RegionLists{
			Region:     region,
			ServerZone: toEntries(r.Lists.ServerZoneIpcType),
			ClientZone: toEntries(r.Lists.ClientZoneIpcType),
		}
	}
	return cat, nil
}

func (l *Loader) parseConstants(data []byte) (map[regionconst.Region]regionconst.Constants, error) {
	var regions []constantsRegion
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("assets: parse constants catalog: %w", err)
	}

	out := make(map[regionconst.Region]regionconst.Constants, len(regions))
	for _, r := range regions {
		region := regionconst.Region(r.Region)
		out[region] = regionconst.Constants{
			Region:              region,
			StatusEffectCount:   r.StatusEffectCount,
			AppearanceByteCount: r.AppearanceByteCount,
		}
	}
	return out, nil
}

func toEntries(in []opcodeEntry) []opcodes.Entry {
	out := make([]opcodes.Entry, len(in))
	for i, e := range in {
		out[i] = opcodes.Entry{Name: e.Name, Opcode: e.Opcode}
	}
	return out
}

func (l *Loader) cachePath(cacheFile string) string {
	return filepath.Join(l.cfg.CacheDir, cacheFile)
}

func (l *Loader) readCache(cacheFile string) ([]byte, error) {
	return os.ReadFile(l.cachePath(cacheFile))
}

func (l *Loader) writeCache(cacheFile string, data []byte) error {
	if err := os.MkdirAll(l.cfg.CacheDir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return os.WriteFile(l.cachePath(cacheFile), data, 0644)
}

// RegionLists returns the merged server/client opcode lists for region,
// or an empty RegionLists if the catalog has no entry for it.
func (c *Catalog) RegionLists(region regionconst.Region) opcodes.RegionLists {
	if c == nil {
		return opcodes.RegionLists{Region: region}
	}
	if lists, ok := c.Opcodes[region]; ok {
		return lists
	}
	return opcodes.RegionLists{Region: region}
}

// RegionConstants returns the numeric layout constants for region,
// starting from regionconst's shared default and overriding any field
// the catalog published a non-zero value for. A region absent from the
// catalog, or a catalog that was never loaded, decodes with the shared
// default layout.
func (c *Catalog) RegionConstants(region regionconst.Region) regionconst.Constants {
	base := regionconst.For(region)
	if c == nil {
		return base
	}
	override, ok := c.Constants[region]
	if !ok {
		return base
	}
	if override.StatusEffectCount != 0 {
		base.StatusEffectCount = override.StatusEffectCount
	}
	if override.AppearanceByteCount != 0 {
		base.AppearanceByteCount = override.AppearanceByteCount
	}
	return base
}
