// Package capturedrv is the capture driver boundary: it opens a
// packet-capture device (or replays a pcap file), applies a BPF filter,
// and yields decoded TCP segments. It does not reassemble, decompress,
// or interpret application bytes — that is package capture's job.
package capturedrv

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// TCPSegment is one observed TCP payload, stripped of its Ethernet/IPv4/
// TCP headers, ready to be appended to a flow's reassembly buffer.
type TCPSegment struct {
	SrcAddr string
	SrcPort uint16
	DstAddr string
	DstPort uint16
	Payload []byte
	PSH     bool
	Seen    time.Time
}

// Device describes one capturable network interface.
type Device struct {
	Name        string
	Description string
	Addresses   []string
}

// Devices lists the network interfaces pcap is able to open, mirroring
// the public surface's static getDevices() operation.
func Devices() ([]Device, error) {
	ifaces, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("capturedrv: list devices: %w", err)
	}

	devices := make([]Device, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs := make([]string, 0, len(iface.Addresses))
		for _, a := range iface.Addresses {
			addrs = append(addrs, a.IP.String())
		}
		devices = append(devices, Device{
			Name:        iface.Name,
			Description: iface.Description,
			Addresses:   addrs,
		})
	}
	return devices, nil
}

// Config configures a Source.
type Config struct {
	// Device is the interface name to open, or a pcap file path when
	// Offline is set.
	Device string

	// Offline, if set, replays packets from a pcap file at Device
	// instead of opening a live capture device.
	Offline bool

	// Filter is the BPF filter expression applied to the device.
	Filter string

	// SnapLen is the maximum number of bytes captured per packet.
	SnapLen int32

	// Promiscuous controls whether the device is opened in promiscuous
	// mode. Ignored for offline replay.
	Promiscuous bool

	// Timeout bounds how long a live read blocks before returning
	// control to the capture loop.
	Timeout time.Duration
}

// Source is the capture driver boundary consumed by the capture pipeline.
type Source interface {
	// Open opens the device (or file) and applies the configured filter.
	// A NetworkConfig-class failure (device not found, invalid filter,
	// insufficient permissions) is returned synchronously here; capture
	// never starts.
	Open(ctx context.Context) error

	// Segments returns the channel of observed TCP segments. Only valid
	// after a successful Open.
	Segments() <-chan TCPSegment

	// Close releases the device handle and stops delivery. In-flight
	// segments already sent to the channel are not discarded.
	Close() error
}

// pcapSource is the gopacket/pcap-backed Source implementation.
type pcapSource struct {
	cfg     Config
	handle  *pcap.Handle
	segChan chan TCPSegment
}

// New returns a Source backed by gopacket/pcap.
func New(cfg Config) Source {
	return &pcapSource{cfg: cfg}
}

func (s *pcapSource) Open(ctx context.Context) error {
	var handle *pcap.Handle
	var err error

	if s.cfg.Offline {
		handle, err = pcap.OpenOffline(s.cfg.Device)
	} else {
		handle, err = pcap.OpenLive(s.cfg.Device, s.cfg.SnapLen, s.cfg.Promiscuous, s.cfg.Timeout)
	}
	if err != nil {
		return fmt.Errorf("capturedrv: open %q: %w", s.cfg.Device, err)
	}

	if s.cfg.Filter != "" {
		if err := handle.SetBPFFilter(s.cfg.Filter); err != nil {
			handle.Close()
			return fmt.Errorf("capturedrv: set filter %q: %w", s.cfg.Filter, err)
		}
	}

	s.handle = handle
	s.segChan = make(chan TCPSegment, 1024)

	go s.readLoop(ctx, handle)

	return nil
}

func (s *pcapSource) readLoop(ctx context.Context, handle *pcap.Handle) {
	defer close(s.segChan)

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := source.Packets()

	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			seg, ok := toTCPSegment(pkt)
			if !ok {
				continue
			}
			select {
			case s.segChan <- seg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func toTCPSegment(pkt gopacket.Packet) (TCPSegment, bool) {
	netLayer := pkt.NetworkLayer()
	if netLayer == nil {
		return TCPSegment{}, false
	}

	tcpLayer := pkt.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return TCPSegment{}, false
	}
	tcp, ok := tcpLayer.(*layers.TCP)
	if !ok {
		return TCPSegment{}, false
	}

	var srcIP, dstIP string
	switch l := netLayer.(type) {
	case *layers.IPv4:
		srcIP = l.SrcIP.String()
		dstIP = l.DstIP.String()
	case *layers.IPv6:
		srcIP = l.SrcIP.String()
		dstIP = l.DstIP.String()
	default:
		return TCPSegment{}, false
	}

	if len(tcp.Payload) == 0 {
		return TCPSegment{}, false
	}

	observed := time.Now()
	if meta := pkt.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		observed = meta.Timestamp
	}

	return TCPSegment{
		SrcAddr: srcIP,
		SrcPort: uint16(tcp.SrcPort),
		DstAddr: dstIP,
		DstPort: uint16(tcp.DstPort),
		Payload: tcp.Payload,
		PSH:     tcp.PSH,
		Seen:    observed,
	}, true
}

func (s *pcapSource) Segments() <-chan TCPSegment {
	return s.segChan
}

func (s *pcapSource) Close() error {
	if s.handle != nil {
		s.handle.Close()
	}
	return nil
}
