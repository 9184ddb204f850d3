package pools

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Buffer pool sizes
const (
	SmallBufferSize  = 2 * 1024  // 2KB for status and short text responses
	MediumBufferSize = 8 * 1024  // 8KB for typical JSON
	LargeBufferSize  = 32 * 1024 // 32KB for larger documents
)

// BufferPool hands out response buffers in three capacity tiers.
// Buffers grown beyond LargeBufferSize are dropped on Put.
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool

	// Statistics
	gets      atomic.Uint64
	puts      atomic.Uint64
	discarded atomic.Uint64
}

func newBuffer(size int) func() any {
	return func() any {
		return bytes.NewBuffer(make([]byte, 0, size))
	}
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small:  sync.Pool{New: newBuffer(SmallBufferSize)},
		medium: sync.Pool{New: newBuffer(MediumBufferSize)},
		large:  sync.Pool{New: newBuffer(LargeBufferSize)},
	}
}

// Get acquires an empty buffer sized for sizeHint bytes
func (bp *BufferPool) Get(sizeHint int) *bytes.Buffer {
	bp.gets.Add(1)

	var buf *bytes.Buffer
	switch {
	case sizeHint <= SmallBufferSize:
		buf = bp.small.Get().(*bytes.Buffer)
	case sizeHint <= MediumBufferSize:
		buf = bp.medium.Get().(*bytes.Buffer)
	default:
		buf = bp.large.Get().(*bytes.Buffer)
	}
	buf.Reset()
	return buf
}

// Put returns a buffer to the tier matching its capacity
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buf.Reset()

	switch c := buf.Cap(); {
	case c <= SmallBufferSize:
		bp.small.Put(buf)
	case c <= MediumBufferSize:
		bp.medium.Put(buf)
	case c <= LargeBufferSize:
		bp.large.Put(buf)
	default:
		// Oversized buffers are left to the GC
		bp.discarded.Add(1)
		return
	}
	bp.puts.Add(1)
}

// Stats returns buffer pool statistics
func (bp *BufferPool) Stats() BufferStats {
	return BufferStats{
		Gets:      bp.gets.Load(),
		Puts:      bp.puts.Load(),
		Discarded: bp.discarded.Load(),
	}
}

// BufferStats contains buffer pool statistics
type BufferStats struct {
	Gets      uint64
	Puts      uint64
	Discarded uint64
}
