package capture

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/karashiiro/ffxivsniff/internal/decode"
	"github.com/karashiiro/ffxivsniff/internal/eventbus"
	"github.com/karashiiro/ffxivsniff/internal/ipcreader"
	"github.com/karashiiro/ffxivsniff/internal/logger"
	"github.com/karashiiro/ffxivsniff/internal/metrics"
	"github.com/karashiiro/ffxivsniff/internal/opcodes"
	"github.com/karashiiro/ffxivsniff/internal/regionconst"
	"github.com/karashiiro/ffxivsniff/internal/telemetry"
	"github.com/karashiiro/ffxivsniff/internal/wire"
	"github.com/karashiiro/ffxivsniff/pkg/bufpool"
	"github.com/klauspost/compress/zlib"
)

// Processor turns a complete, reassembled RawFrame into the emitted event
// sequence: zero or more message/segment pairs, then packet, then
// diagnostics. All state here is mutated only from the capture callback
// goroutine; Bus subscribers may run on other goroutines.
type Processor struct {
	Opcodes    *opcodes.Index
	Decoders   *decode.Registry
	Region     regionconst.Constants
	Bus        *eventbus.Bus
	Metrics    *metrics.Collector
}

// NewProcessor returns a Processor wired to the given collaborators.
func NewProcessor(idx *opcodes.Index, decoders *decode.Registry, region regionconst.Constants, bus *eventbus.Bus, collector *metrics.Collector) *Processor {
	return &Processor{
		Opcodes:  idx,
		Decoders: decoders,
		Region:   region,
		Bus:      bus,
		Metrics:  collector,
	}
}

// SetRegion swaps the region constants used by subsequent decodes. A
// frame already in Process observes whichever value Region held when it
// read it; Go's memory model does not require synchronization here
// because the caller is expected to only change region from the same
// goroutine that calls Process.
func (p *Processor) SetRegion(rc regionconst.Constants) {
	p.Region = rc
}

// Process decompresses, iterates segments, dispatches IPC decoders, and
// emits the packet/segment/message/diagnostics/error events for one
// reassembled frame.
func (p *Processor) Process(ctx context.Context, src, dst Addr, raw RawFrame) {
	start := time.Now()

	ctx, span := telemetry.StartFrameSpan(ctx, dst.Port, src.IP,
		telemetry.FrameSize(raw.Header.Size),
		telemetry.Compressed(raw.Header.Compressed()),
		telemetry.SegmentCount(raw.Header.SegmentCount))
	defer span.End()

	body := raw.Bytes[wire.FrameHeaderSize:]

	if raw.Header.Compressed() {
		inflated, err := inflate(body)
		if err != nil {
			if err == zlib.ErrHeader {
				p.Metrics.ObserveFrame("encrypted", time.Since(start))
				return
			}
			p.Metrics.ObserveFrame("error", time.Since(start))
			p.Bus.Publish(eventbus.EventError, ProcessingError{DestPort: dst.Port, Err: fmt.Errorf("inflate: %w", err)})
			return
		}
		body = inflated
	}

	segments := p.processSegments(ctx, dst.Port, body, int(raw.Header.SegmentCount))

	packet := Packet{
		Source:      src,
		Destination: dst,
		Frame: Frame{
			Header:   raw.Header,
			Segments: segments,
		},
	}
	p.Bus.Publish(eventbus.EventPacket, packet)

	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0
	p.Bus.Publish(eventbus.EventDiagnostics, Diagnostics{
		DestPort:             dst.Port,
		LastProcessingTimeMs: elapsedMs,
	})
	p.Metrics.ObserveFrame("ok", time.Since(start))
}

// processSegments iterates up to declaredCount segments within body,
// stopping early (without error) if body is exhausted. Leftover trailing
// bytes are discarded with the frame.
func (p *Processor) processSegments(ctx context.Context, destPort uint16, body []byte, declaredCount int) []Segment {
	segments := make([]Segment, 0, declaredCount)

	o := 0
	for i := 0; i < declaredCount; i++ {
		if o+wire.SegHeaderSize > len(body) {
			break
		}
		segHdr := wire.ParseSegmentHeader(body[o:])
		if o+int(segHdr.Size) > len(body) {
			break
		}

		seg := p.processSegment(ctx, destPort, segHdr, body[o:o+int(segHdr.Size)])
		p.Bus.Publish(eventbus.EventSegment, seg)
		p.Metrics.ObserveSegment(int(segHdr.Type))

		segments = append(segments, seg)
		o += int(segHdr.Size)
	}

	return segments
}

// processSegment builds the Segment record for one on-wire segment,
// dispatching to the decoder registry for IPC segments.
func (p *Processor) processSegment(ctx context.Context, destPort uint16, segHdr wire.SegmentHeader, segBytes []byte) Segment {
	seg := Segment{Header: segHdr}

	if segHdr.Type != wire.SegmentTypeIPC {
		return seg
	}

	if len(segBytes) < wire.SegHeaderSize+wire.IpcHeaderSize {
		return seg
	}

	ipcBytes := segBytes[wire.SegHeaderSize:]
	ipcHdr := wire.ParseIpcHeader(ipcBytes)
	seg.IpcHeader = &ipcHdr

	bodyLen := len(ipcBytes) - wire.IpcHeaderSize
	if bodyLen < 0 {
		bodyLen = 0
	}
	rawIpcBody := ipcBytes[wire.IpcHeaderSize:]

	// Copy the body into a pooled buffer rounded up to the next power of
	// two, zeroing the tail. Decoders see only the first bodyLen bytes; a
	// read past that returns zero values from ipcreader and marks the
	// reader truncated instead of faulting.
	padded := bufpool.Get(nextPowerOfTwo(bodyLen))
	n := copy(padded, rawIpcBody)
	for i := n; i < len(padded); i++ {
		padded[i] = 0
	}
	seg.IpcData = padded[:bodyLen]

	name := p.Opcodes.Lookup(ipcHdr.Opcode)
	seg.MessageName = name

	seg.ParsedIpcData = p.runDecoder(ctx, destPort, ipcHdr.Opcode, name, padded[:bodyLen])

	p.Bus.Publish(eventbus.EventMessage, Message{Name: name, Segment: seg})

	return seg
}

// runDecoder invokes the registered decoder for name, if any, recovering
// from a decoder panic so a single bad body cannot take down the
// pipeline. A decoder failure (panic, or returned error) is reported via
// the error event; the segment and packet are still emitted.
func (p *Processor) runDecoder(ctx context.Context, destPort uint16, opcode uint16, name string, body []byte) (parsed any) {
	f, ok := p.Decoders.Lookup(name)
	if !ok {
		p.Metrics.ObserveDecode("unknown_opcode", 0)
		return nil
	}

	start := time.Now()
	_, span := telemetry.StartDecodeSpan(ctx, opcode, name)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("decoder panic for %q: %v", name, r)
			span.RecordError(err)
			p.Metrics.ObserveDecode("error", time.Since(start))
			p.Bus.Publish(eventbus.EventError, ProcessingError{DestPort: destPort, Err: err})
			logger.Warn("capture: decoder panicked", "message_name", name, "opcode", opcode, "error", err)
			parsed = nil
		}
	}()

	reader := ipcreader.New(body)
	rec, err := f(reader, p.Region)
	if err != nil {
		p.Metrics.ObserveDecode("error", time.Since(start))
		p.Bus.Publish(eventbus.EventError, ProcessingError{DestPort: destPort, Err: err})
		return nil
	}

	p.Metrics.ObserveDecode("decoded", time.Since(start))
	return rec
}

func inflate(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
