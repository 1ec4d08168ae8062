// Package decode maps IPC message names to the binary-body decoders that
// turn a raw segment body into a structured record. The full upstream
// catalog carries on the order of fifty entries; this package specifies
// one in full (npcSpawn, per the reference scenario) and a representative
// handful of others. The remainder are mechanical applications of the
// same ipcreader.Reader contract and are not included here.
package decode

import (
	"fmt"

	"github.com/karashiiro/ffxivsniff/internal/ipcreader"
	"github.com/karashiiro/ffxivsniff/internal/regionconst"
)

// Func decodes an IPC body positioned at the start of r into a typed
// record, using rc for any region-dependent array widths. A decoder is
// pure: it must not retain r or allocate buffers beyond the returned
// record.
type Func func(r *ipcreader.Reader, rc regionconst.Constants) (any, error)

// Registry is a static name-to-decoder table built once at construction.
// A name absent from the registry means "do not attempt to decode the
// body"; the caller still emits the message event with the raw body.
type Registry struct {
	decoders map[string]Func
}

// NewRegistry builds the registry of known decoders.
func NewRegistry() *Registry {
	return &Registry{
		decoders: map[string]Func{
			"npcSpawn":             decodeNpcSpawn,
			"actorMove":            decodeActorMove,
			"chatMessage":          decodeChatMessage,
			"statusEffectList":     decodeStatusEffectList,
			"inventoryTransaction": decodeInventoryTransaction,
		},
	}
}

// Lookup returns the decoder registered under name, or false if none is
// registered.
func (r *Registry) Lookup(name string) (Func, bool) {
	f, ok := r.decoders[name]
	return f, ok
}

// Len returns the number of registered decoders.
func (r *Registry) Len() int {
	return len(r.decoders)
}

// NpcSpawnBodySize returns the minimum IPC body length needed to decode
// an NpcSpawn record for the given region without the reader running
// truncated (including the name string's zero terminator).
func NpcSpawnBodySize(rc regionconst.Constants) int {
	fixed := 4 + 4 + 4 + 1 + 1 + 1 + 1 + 4 + 4 + 2 + 2 + 12 + 4 + 4
	perEffect := 2 + 2 + 4 + 4
	return fixed + perEffect*rc.StatusEffectCount + rc.AppearanceByteCount + 1
}

// StatusEffect is one entry in a fixed-length status effect array carried
// by several IPC messages.
type StatusEffect struct {
	EffectID      uint16
	Param         uint16
	Duration      float32
	SourceActorID uint32
}

// NpcSpawn is the fully specified reference decoder: an actor spawn
// notification carrying position, stats, and the actor's current status
// effect list.
type NpcSpawn struct {
	GimmickID       uint32
	ActorID         uint32
	OwnerID         uint32
	Kind            uint8
	SubKind         uint8
	Hostile         uint8
	Level           uint8
	CurrentHP       uint32
	MaxHP           uint32
	CurrentMP       uint16
	MaxMP           uint16
	Position        ipcreader.Position3
	Rotation        float32
	ModelChara      uint32
	Effects         []StatusEffect
	Appearance      []byte
	Name            string
}

func decodeNpcSpawn(r *ipcreader.Reader, rc regionconst.Constants) (any, error) {
	s := NpcSpawn{}

	s.GimmickID = r.NextUInt32()
	s.ActorID = r.NextUInt32()
	s.OwnerID = r.NextUInt32()
	s.Kind = r.NextUInt8()
	s.SubKind = r.NextUInt8()
	s.Hostile = r.NextUInt8()
	s.Level = r.NextUInt8()
	s.CurrentHP = r.NextUInt32()
	s.MaxHP = r.NextUInt32()
	s.CurrentMP = r.NextUInt16()
	s.MaxMP = r.NextUInt16()
	s.Position = r.NextPosition3()
	s.Rotation = r.NextFloat32()
	s.ModelChara = r.NextUInt32()

	s.Effects = make([]StatusEffect, rc.StatusEffectCount)
	for i := range s.Effects {
		s.Effects[i] = StatusEffect{
			EffectID: r.NextUInt16(),
			Param:    r.NextUInt16(),
			Duration: r.NextFloat32(),
		}
	}
	for i := range s.Effects {
		s.Effects[i].SourceActorID = r.NextUInt32()
	}

	s.Appearance = r.NextBytes(rc.AppearanceByteCount)
	s.Name = r.NextString()

	if r.Truncated() {
		return s, fmt.Errorf("decode: npcSpawn body truncated at offset %d", r.Position())
	}
	return s, nil
}

// ActorMove carries an actor's updated position and facing.
type ActorMove struct {
	ActorID  uint32
	Position ipcreader.Position3
	Rotation float32
	AnimType uint8
	AnimState uint8
}

func decodeActorMove(r *ipcreader.Reader, _ regionconst.Constants) (any, error) {
	m := ActorMove{}
	m.ActorID = r.NextUInt32()
	m.Position = r.NextPosition3()
	m.Rotation = r.NextFloat32()
	m.AnimType = r.NextUInt8()
	m.AnimState = r.NextUInt8()

	if r.Truncated() {
		return m, fmt.Errorf("decode: actorMove body truncated at offset %d", r.Position())
	}
	return m, nil
}

// ChatMessage carries a single chat line.
type ChatMessage struct {
	SenderActorID uint32
	ChannelType   uint16
	SenderName    string
	Message       string
}

func decodeChatMessage(r *ipcreader.Reader, _ regionconst.Constants) (any, error) {
	m := ChatMessage{}
	m.SenderActorID = r.NextUInt32()
	m.ChannelType = r.NextUInt16()
	r.Skip(2) // reserved
	m.SenderName = r.NextString()
	m.Message = r.NextString()

	if r.Truncated() {
		return m, fmt.Errorf("decode: chatMessage body truncated at offset %d", r.Position())
	}
	return m, nil
}

// StatusEffectListMsg carries the full status effect list for an actor,
// independent of a spawn event.
type StatusEffectListMsg struct {
	ActorID uint32
	Effects []StatusEffect
}

func decodeStatusEffectList(r *ipcreader.Reader, rc regionconst.Constants) (any, error) {
	m := StatusEffectListMsg{}
	m.ActorID = r.NextUInt32()

	m.Effects = make([]StatusEffect, rc.StatusEffectCount)
	for i := range m.Effects {
		m.Effects[i] = StatusEffect{
			EffectID: r.NextUInt16(),
			Param:    r.NextUInt16(),
			Duration: r.NextFloat32(),
			SourceActorID: r.NextUInt32(),
		}
	}

	if r.Truncated() {
		return m, fmt.Errorf("decode: statusEffectList body truncated at offset %d", r.Position())
	}
	return m, nil
}

// InventoryTransaction carries a single inventory slot mutation.
type InventoryTransaction struct {
	TransactionType uint16
	ContainerID     uint16
	SlotIndex       uint16
	ItemID          uint32
	Quantity        uint32
}

func decodeInventoryTransaction(r *ipcreader.Reader, _ regionconst.Constants) (any, error) {
	t := InventoryTransaction{}
	t.TransactionType = r.NextUInt16()
	t.ContainerID = r.NextUInt16()
	t.SlotIndex = r.NextUInt16()
	r.Skip(2) // reserved
	t.ItemID = r.NextUInt32()
	t.Quantity = r.NextUInt32()

	if r.Truncated() {
		return t, fmt.Errorf("decode: inventoryTransaction body truncated at offset %d", r.Position())
	}
	return t, nil
}
