package capture

import (
	"github.com/karashiiro/ffxivsniff/internal/queuebuf"
	"github.com/karashiiro/ffxivsniff/internal/wire"
)

// RawFrame is one complete, popped frame awaiting processing: the parsed
// header plus the full frame bytes (header included) it was parsed from.
type RawFrame struct {
	Header wire.FrameHeader
	Bytes  []byte
}

// DrainFrames pops every complete, well-formed frame currently buffered
// in qbuf, in arrival order. It stops as soon as it cannot make further
// progress: insufficient bytes for a header, a non-magical candidate
// header (no scan for the next magic is made), a declared size smaller
// than the frame header itself, or a frame whose declared size exceeds
// what has arrived so far. Any of those conditions leaves the remaining
// bytes in qbuf for the next push.
func DrainFrames(qbuf *queuebuf.QueueBuffer) []RawFrame {
	var frames []RawFrame

	for {
		candidate := qbuf.Peek(wire.FrameHeaderSize)
		if candidate == nil {
			return frames
		}

		header := wire.ParseFrameHeader(candidate)
		if !wire.IsMagical(header) {
			return frames
		}

		if int(header.Size) < wire.FrameHeaderSize {
			return frames
		}

		if qbuf.Size() < int(header.Size) {
			return frames
		}

		raw := qbuf.Pop(int(header.Size))
		frames = append(frames, RawFrame{Header: header, Bytes: raw})
	}
}
