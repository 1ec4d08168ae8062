package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/karashiiro/ffxivsniff/internal/regionconst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `[
  {
    "region": "Global",
    "lists": {
      "ServerZoneIpcType": [{"name": "NpcSpawn", "opcode": 323}],
      "ClientZoneIpcType": [{"name": "ChatMessage", "opcode": 512}]
    }
  }
]`

const sampleConstants = `[
  {"region": "Global", "statusEffectCount": 30, "appearanceByteCount": 26},
  {"region": "Chinese", "statusEffectCount": 30, "appearanceByteCount": 28}
]`

func TestLoadFetchesAndParsesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleCatalog))
	}))
	defer srv.Close()

	dir := t.TempDir()
	loader := NewLoader(Config{
		OpcodesURL:   srv.URL,
		CacheDir:     dir,
		FetchTimeout: time.Second,
	}, nil)

	cat, err := loader.Load(context.Background())
	require.NoError(t, err)

	lists := cat.RegionLists(regionconst.Global)
	require.Len(t, lists.ServerZone, 1)
	assert.Equal(t, "NpcSpawn", lists.ServerZone[0].Name)
	assert.Equal(t, uint16(323), lists.ServerZone[0].Opcode)

	cached, err := loader.readCache("opcodes.min.json")
	require.NoError(t, err)
	assert.NotEmpty(t, cached)
}

func TestLoadFallsBackToCacheOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "opcodes.min.json"), sampleCatalog))

	loader := NewLoader(Config{
		OpcodesURL:   srv.URL,
		CacheDir:     dir,
		FetchTimeout: time.Second,
	}, nil)

	srv.Close()

	cat, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, cat.RegionLists(regionconst.Global).ServerZone, 1)
}

func TestLoadFetchesAndMergesConstants(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/opcodes.min.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleCatalog))
	})
	mux.HandleFunc("/constants.min.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleConstants))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	loader := NewLoader(Config{
		OpcodesURL:   srv.URL + "/opcodes.min.json",
		ConstantsURL: srv.URL + "/constants.min.json",
		CacheDir:     dir,
		FetchTimeout: time.Second,
	}, nil)

	cat, err := loader.Load(context.Background())
	require.NoError(t, err)

	global := cat.RegionConstants(regionconst.Global)
	assert.Equal(t, 30, global.StatusEffectCount)
	assert.Equal(t, 26, global.AppearanceByteCount)

	chinese := cat.RegionConstants(regionconst.Chinese)
	assert.Equal(t, 28, chinese.AppearanceByteCount)

	cached, err := loader.readCache("constants.min.json")
	require.NoError(t, err)
	assert.NotEmpty(t, cached)
}

func TestRegionConstantsFallsBackToDefaultLayoutWhenUncataloged(t *testing.T) {
	cat := &Catalog{}
	rc := cat.RegionConstants(regionconst.Korean)
	assert.Equal(t, regionconst.For(regionconst.Korean), rc)
}

func TestLoadFailsWithoutNetworkOrCache(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(Config{
		OpcodesURL:   "http://127.0.0.1:0/does-not-exist",
		CacheDir:     dir,
		FetchTimeout: 100 * time.Millisecond,
	}, nil)

	_, err := loader.Load(context.Background())
	assert.Error(t, err)
}

func TestRegionListsUnknownRegionReturnsEmpty(t *testing.T) {
	cat := &Catalog{}
	lists := cat.RegionLists(regionconst.Korean)
	assert.Empty(t, lists.ServerZone)
	assert.Empty(t, lists.ClientZone)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0644)
}
