package decode

import (
	"testing"

	"github.com/karashiiro/ffxivsniff/internal/ipcreader"
	"github.com/karashiiro/ffxivsniff/internal/regionconst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNpcSpawnMinimalZeroPaddedBody(t *testing.T) {
	rc := regionconst.For(regionconst.Global)
	body := make([]byte, NpcSpawnBodySize(rc))

	reg := NewRegistry()
	f, ok := reg.Lookup("npcSpawn")
	require.True(t, ok)

	rec, err := f(ipcreader.New(body), rc)
	require.NoError(t, err)

	spawn, ok := rec.(NpcSpawn)
	require.True(t, ok)
	assert.Equal(t, uint32(0), spawn.GimmickID)
	assert.Len(t, spawn.Effects, 30)
	assert.Equal(t, "", spawn.Name)
}

func TestNpcSpawnTruncatedBodyReportsError(t *testing.T) {
	rc := regionconst.For(regionconst.Global)
	body := make([]byte, 4)

	reg := NewRegistry()
	f, _ := reg.Lookup("npcSpawn")
	_, err := f(ipcreader.New(body), rc)
	assert.Error(t, err)
}

func TestChatMessageReadsSenderAndText(t *testing.T) {
	var body []byte
	body = append(body, 0x01, 0x00, 0x00, 0x00) // sender actor id
	body = append(body, 0x0A, 0x00)             // channel type
	body = append(body, 0x00, 0x00)             // reserved
	body = append(body, []byte("Alice\x00")...)
	body = append(body, []byte("hello\x00")...)

	reg := NewRegistry()
	f, ok := reg.Lookup("chatMessage")
	require.True(t, ok)

	rec, err := f(ipcreader.New(body), regionconst.For(regionconst.Global))
	require.NoError(t, err)

	msg := rec.(ChatMessage)
	assert.Equal(t, uint32(1), msg.SenderActorID)
	assert.Equal(t, uint16(10), msg.ChannelType)
	assert.Equal(t, "Alice", msg.SenderName)
	assert.Equal(t, "hello", msg.Message)
}

func TestUnknownNameNotInRegistry(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Lookup("unknown")
	assert.False(t, ok)
}

func TestRegistryLen(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 5, reg.Len())
}
