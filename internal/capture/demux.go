package capture

import (
	"sync"
	"time"

	"github.com/karashiiro/ffxivsniff/internal/bytesize"
	"github.com/karashiiro/ffxivsniff/internal/metrics"
	"github.com/karashiiro/ffxivsniff/internal/queuebuf"
)

// flowEntry is one tracked flow's reassembly buffer and idle tracking.
type flowEntry struct {
	buf      *queuebuf.QueueBuffer
	lastSeen time.Time
}

// Demux is the flow demultiplexer: destination port is the flow key, and
// packets sharing a destination port are appended to a single
// QueueBuffer regardless of source address. Lookup is lazy-insert.
//
// The source protocol never evicts flow buffers, which leaks memory over
// a long session (see package capturedrv's caller for the sweep loop).
// This implementation adds an idle-TTL sweep the caller may invoke
// periodically via Sweep.
type Demux struct {
	mu         sync.Mutex
	flows      map[uint16]*flowEntry
	maxSize    bytesize.ByteSize
	metrics    *metrics.Collector
}

// NewDemux returns an empty Demux. maxSize bounds each flow's QueueBuffer.
func NewDemux(maxSize bytesize.ByteSize, collector *metrics.Collector) *Demux {
	return &Demux{
		flows:   make(map[uint16]*flowEntry),
		maxSize: maxSize,
		metrics: collector,
	}
}

// Push appends data to the QueueBuffer for destPort, creating it on first
// sight of the port, and returns that buffer for the caller to drain.
func (d *Demux) Push(destPort uint16, data []byte, now time.Time) (*queuebuf.QueueBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.flows[destPort]
	if !ok {
		entry = &flowEntry{buf: queuebuf.New(d.maxSize)}
		d.flows[destPort] = entry
		d.metrics.SetFlowCount(len(d.flows))
	}
	entry.lastSeen = now

	if err := entry.buf.Push(data); err != nil {
		return entry.buf, err
	}

	d.metrics.SetQueueBufferBytes(destPort, entry.buf.Size())
	return entry.buf, nil
}

// Sweep evicts flows whose last push is older than ttl relative to now.
// A zero ttl disables eviction. Returns the number of flows evicted.
func (d *Demux) Sweep(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	evicted := 0
	for port, entry := range d.flows {
		if now.Sub(entry.lastSeen) > ttl {
			delete(d.flows, port)
			evicted++
			d.metrics.RecordFlowEviction()
		}
	}
	if evicted > 0 {
		d.metrics.SetFlowCount(len(d.flows))
	}
	return evicted
}

// FlowCount returns the number of currently tracked flows.
func (d *Demux) FlowCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.flows)
}
