package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for capture pipeline spans.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Flow attributes
	// ========================================================================
	AttrSrcAddr  = "flow.src_addr"
	AttrSrcPort  = "flow.src_port"
	AttrDestAddr = "flow.dest_addr"
	AttrDestPort = "flow.dest_port"
	AttrRegion   = "flow.region"

	// ========================================================================
	// Frame & segment attributes
	// ========================================================================
	AttrFrameSize    = "frame.size"
	AttrCompressed   = "frame.compressed"
	AttrSegCount     = "frame.segment_count"
	AttrSegType      = "segment.type"
	AttrSegOffset    = "segment.offset"
	AttrOpcode       = "ipc.opcode"
	AttrMessageName  = "ipc.message_name"
	AttrDecoderError = "ipc.decoder_error"
)

// SrcAddr returns an attribute for a flow's source IP address.
func SrcAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrSrcAddr, addr)
}

// SrcPort returns an attribute for a flow's source port.
func SrcPort(port uint16) attribute.KeyValue {
	return attribute.Int(AttrSrcPort, int(port))
}

// DestAddr returns an attribute for a flow's destination IP address.
func DestAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrDestAddr, addr)
}

// DestPort returns an attribute for the destination port identifying a flow.
func DestPort(port uint16) attribute.KeyValue {
	return attribute.Int(AttrDestPort, int(port))
}

// Region returns an attribute for the active region.
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// FrameSize returns an attribute for a frame's total size.
func FrameSize(size uint32) attribute.KeyValue {
	return attribute.Int64(AttrFrameSize, int64(size))
}

// Compressed returns an attribute for the frame compression flag.
func Compressed(compressed bool) attribute.KeyValue {
	return attribute.Bool(AttrCompressed, compressed)
}

// SegmentCount returns an attribute for the declared segment count.
func SegmentCount(n uint16) attribute.KeyValue {
	return attribute.Int(AttrSegCount, int(n))
}

// SegmentType returns an attribute for a segment's type.
func SegmentType(t int) attribute.KeyValue {
	return attribute.Int(AttrSegType, t)
}

// SegmentOffset returns an attribute for a segment's offset within a frame body.
func SegmentOffset(off int) attribute.KeyValue {
	return attribute.Int(AttrSegOffset, off)
}

// Opcode returns an attribute for a numeric IPC opcode.
func Opcode(op uint16) attribute.KeyValue {
	return attribute.Int(AttrOpcode, int(op))
}

// MessageName returns an attribute for a decoded message name.
func MessageName(name string) attribute.KeyValue {
	return attribute.String(AttrMessageName, name)
}

// DecoderError returns an attribute for a decoder failure message.
func DecoderError(err error) attribute.KeyValue {
	if err == nil {
		return attribute.String(AttrDecoderError, "")
	}
	return attribute.String(AttrDecoderError, err.Error())
}

// StartFrameSpan starts a span covering the processing of a single frame,
// from header parse through the last emitted event.
func StartFrameSpan(ctx context.Context, destPort uint16, srcAddr string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		DestPort(destPort),
		SrcAddr(srcAddr),
	}
	return Tracer().Start(ctx, fmt.Sprintf("capture.process_frame[:%d]", destPort),
		trace.WithAttributes(append(base, attrs...)...))
}

// StartDecodeSpan starts a span covering a single IPC segment decode.
func StartDecodeSpan(ctx context.Context, opcode uint16, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		Opcode(opcode),
		MessageName(name),
	}
	return Tracer().Start(ctx, "capture.decode_ipc",
		trace.WithAttributes(append(base, attrs...)...))
}
