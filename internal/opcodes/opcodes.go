// Package opcodes maintains the region-scoped numeric opcode to message
// name index used to dispatch IPC segments to a decoder.
package opcodes

import (
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/karashiiro/ffxivsniff/internal/regionconst"
)

// UnknownName is returned for any opcode absent from the active index.
const UnknownName = "unknown"

// Entry is one name/opcode pair as published by the upstream opcode
// catalog, before the two source lists are merged.
type Entry struct {
	Name   string
	Opcode uint16
}

// RegionLists holds the raw server-zone and client-zone opcode lists for
// one region, as published by the remote catalog.
type RegionLists struct {
	Region      regionconst.Region
	ServerZone  []Entry
	ClientZone  []Entry
}

// Index is an opcode-to-name lookup table for a single active region. The
// zero value is empty and resolves every lookup to UnknownName.
type Index struct {
	table atomic.Pointer[map[uint16]string]
	mu    sync.Mutex
}

// New returns an empty Index.
func New() *Index {
	idx := &Index{}
	empty := map[uint16]string{}
	idx.table.Store(&empty)
	return idx
}

// Rebuild merges lists.ServerZone and lists.ClientZone into a single flat
// map and swaps it in atomically. A frame in flight observes either the
// old or new map in its entirety, never a partial merge. Collisions
// between the two lists resolve to the client-zone entry, applied last,
// mirroring the order observed in the upstream catalog.
func (idx *Index) Rebuild(lists RegionLists) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	merged := make(map[uint16]string, len(lists.ServerZone)+len(lists.ClientZone))
	for _, e := range lists.ServerZone {
		merged[e.Opcode] = lowerFirst(e.Name)
	}
	for _, e := range lists.ClientZone {
		merged[e.Opcode] = lowerFirst(e.Name)
	}

	idx.table.Store(&merged)
}

// Lookup returns the message name for opcode, or UnknownName if absent
// from the currently active map.
func (idx *Index) Lookup(opcode uint16) string {
	table := idx.table.Load()
	if table == nil {
		return UnknownName
	}
	if name, ok := (*table)[opcode]; ok {
		return name
	}
	return UnknownName
}

// Len returns the number of entries in the currently active map.
func (idx *Index) Len() int {
	table := idx.table.Load()
	if table == nil {
		return 0
	}
	return len(*table)
}

// lowerFirst lowercases the first rune of s, leaving the rest unchanged
// (e.g. "NpcSpawn" -> "npcSpawn").
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
