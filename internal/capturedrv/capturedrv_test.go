package capturedrv

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTCPPacket(t *testing.T, srcPort, dstPort layers.TCPPort, payload []byte, psh bool) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP("10.0.0.1").To4(),
		DstIP:    net.ParseIP("10.0.0.2").To4(),
	}
	tcp := &layers.TCP{
		SrcPort: srcPort,
		DstPort: dstPort,
		PSH:     psh,
		Window:  1024,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))

	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestToTCPSegmentExtractsAddressingAndPayload(t *testing.T) {
	pkt := buildTCPPacket(t, 55021, 54993, []byte("frame-bytes"), true)

	seg, ok := toTCPSegment(pkt)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", seg.SrcAddr)
	assert.Equal(t, uint16(55021), seg.SrcPort)
	assert.Equal(t, "10.0.0.2", seg.DstAddr)
	assert.Equal(t, uint16(54993), seg.DstPort)
	assert.Equal(t, []byte("frame-bytes"), []byte(seg.Payload))
	assert.True(t, seg.PSH)
}

func TestToTCPSegmentRejectsEmptyPayload(t *testing.T) {
	pkt := buildTCPPacket(t, 55021, 54993, nil, false)

	_, ok := toTCPSegment(pkt)
	assert.False(t, ok)
}
