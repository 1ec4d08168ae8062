package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that log
// aggregation and querying can group on them regardless of which
// component emitted the line.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Flow identification
	// ========================================================================
	KeyDestPort  = "dest_port"  // Destination TCP port identifying the flow
	KeySrcAddr   = "src_addr"   // Source IP address
	KeySrcPort   = "src_port"   // Source TCP port
	KeyRegion    = "region"     // Active region (Global, Chinese, Korean, ...)
	KeyFlowCount = "flow_count" // Number of live flows tracked by the demultiplexer

	// ========================================================================
	// Frame & segment
	// ========================================================================
	KeyFrameSize     = "frame_size"     // FrameHeader.Size
	KeyCompressed    = "compressed"     // FrameHeader.IsCompressed
	KeySegmentCount  = "segment_count"  // FrameHeader.SegmentCount
	KeySegmentType   = "segment_type"   // SegmentHeader.Type
	KeySegmentOffset = "segment_offset" // byte offset of a segment within the frame body
	KeyOpcode        = "opcode"         // numeric IPC opcode
	KeyMessageName   = "message_name"   // decoded message name, or "unknown"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeySource     = "source"      // Originating subsystem: capture, reassembler, decoder, assets
	KeyOperation  = "operation"   // Sub-operation name

	// ========================================================================
	// Asset loading
	// ========================================================================
	KeyAssetURL    = "asset_url"    // URL an opcode/constants catalog was fetched from
	KeyAssetCached = "asset_cached" // whether a stale-but-usable cache entry was used
	KeyAttempt     = "attempt"      // retry attempt number
	KeyMaxRetries  = "max_retries"  // maximum retry attempts

	// ========================================================================
	// Capture device
	// ========================================================================
	KeyDevice = "device" // capture device identifier
	KeyFilter = "filter" // BPF filter expression
)

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for the OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for the OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Flow identification
// ----------------------------------------------------------------------------

// DestPort returns a slog.Attr for the destination port identifying a flow
func DestPort(port uint16) slog.Attr {
	return slog.Any(KeyDestPort, port)
}

// SrcAddr returns a slog.Attr for a source IP address
func SrcAddr(addr string) slog.Attr {
	return slog.String(KeySrcAddr, addr)
}

// SrcPort returns a slog.Attr for a source port
func SrcPort(port uint16) slog.Attr {
	return slog.Any(KeySrcPort, port)
}

// Region returns a slog.Attr for the active region
func Region(region string) slog.Attr {
	return slog.String(KeyRegion, region)
}

// FlowCount returns a slog.Attr for the number of live flows
func FlowCount(n int) slog.Attr {
	return slog.Int(KeyFlowCount, n)
}

// ----------------------------------------------------------------------------
// Frame & segment
// ----------------------------------------------------------------------------

// FrameSize returns a slog.Attr for a frame's total size
func FrameSize(size uint32) slog.Attr {
	return slog.Any(KeyFrameSize, size)
}

// Compressed returns a slog.Attr for the frame compression flag
func Compressed(compressed bool) slog.Attr {
	return slog.Bool(KeyCompressed, compressed)
}

// SegmentCount returns a slog.Attr for the declared segment count
func SegmentCount(n uint16) slog.Attr {
	return slog.Any(KeySegmentCount, n)
}

// SegmentType returns a slog.Attr for a segment's type
func SegmentType(t int) slog.Attr {
	return slog.Int(KeySegmentType, t)
}

// SegmentOffset returns a slog.Attr for a segment's offset within a frame body
func SegmentOffset(off int) slog.Attr {
	return slog.Int(KeySegmentOffset, off)
}

// Opcode returns a slog.Attr for a numeric IPC opcode
func Opcode(op uint16) slog.Attr {
	return slog.Any(KeyOpcode, op)
}

// MessageName returns a slog.Attr for a decoded message name
func MessageName(name string) slog.Attr {
	return slog.String(KeyMessageName, name)
}

// ----------------------------------------------------------------------------
// Operation metadata
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for an operation duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error value. Returns a no-op attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Source returns a slog.Attr for the originating subsystem
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// Operation returns a slog.Attr for a sub-operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// ----------------------------------------------------------------------------
// Asset loading
// ----------------------------------------------------------------------------

// AssetURL returns a slog.Attr for a catalog fetch URL
func AssetURL(url string) slog.Attr {
	return slog.String(KeyAssetURL, url)
}

// AssetCached returns a slog.Attr indicating stale-cache use
func AssetCached(cached bool) slog.Attr {
	return slog.Bool(KeyAssetCached, cached)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// ----------------------------------------------------------------------------
// Capture device
// ----------------------------------------------------------------------------

// Device returns a slog.Attr for a capture device identifier
func Device(name string) slog.Attr {
	return slog.String(KeyDevice, name)
}

// Filter returns a slog.Attr for a BPF filter expression
func Filter(expr string) slog.Attr {
	return slog.String(KeyFilter, expr)
}

// Any returns a slog.Attr built from an arbitrary key/value, for
// call sites that don't have a dedicated helper above.
func Any(key string, value any) slog.Attr {
	if stringer, ok := value.(fmt.Stringer); ok {
		return slog.String(key, stringer.String())
	}
	return slog.Any(key, value)
}
