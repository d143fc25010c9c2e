package audio

import "fmt"

// Blocker re-slices an incoming little-endian PCM16 byte stream into
// fixed-size blocks of mono float samples and hands every complete block to
// an emit callback. Writes may be of any length and may split a sample
// across two calls; the dangling byte is carried over to the next write.
//
// The block passed to emit is an internal buffer that is reused for the
// following block, so the callback must not retain it past the call. This
// keeps the steady-state ingest path free of per-block allocations.
//
// Create one Blocker per stream; it is not safe for concurrent use.
type Blocker struct {
	blockSize int
	emit      func(block []float64)

	block  []float64
	filled int

	carry    byte
	hasCarry bool
}

// NewBlocker creates a Blocker that emits blocks of blockSize samples.
// blockSize must be positive and emit must be non-nil.
func NewBlocker(blockSize int, emit func(block []float64)) (*Blocker, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("audio: block size %d must be positive", blockSize)
	}
	if emit == nil {
		return nil, fmt.Errorf("audio: blocker emit callback must not be nil")
	}
	return &Blocker{
		blockSize: blockSize,
		emit:      emit,
		block:     make([]float64, blockSize),
	}, nil
}

// Write consumes pcm, emitting a block every time blockSize samples have
// accumulated. It implements io.Writer; the returned error is always nil
// and n is always len(pcm).
func (b *Blocker) Write(pcm []byte) (int, error) {
	written := len(pcm)

	// Complete a sample that was split across the previous write.
	if b.hasCarry && len(pcm) > 0 {
		s := int16(b.carry) | int16(pcm[0])<<8
		b.push(float64(s) / 32768.0)
		b.hasCarry = false
		pcm = pcm[1:]
	}

	for len(pcm) >= 2 {
		space := b.blockSize - b.filled
		take := len(pcm) / 2
		if take > space {
			take = space
		}
		got := SamplesFromPCM16(b.block[b.filled:b.filled+take], pcm)
		b.filled += got
		pcm = pcm[got*2:]
		if b.filled == b.blockSize {
			b.emit(b.block)
			b.filled = 0
		}
	}

	if len(pcm) == 1 {
		b.carry = pcm[0]
		b.hasCarry = true
	}

	return written, nil
}

// push appends one sample, emitting when the block fills.
func (b *Blocker) push(sample float64) {
	b.block[b.filled] = sample
	b.filled++
	if b.filled == b.blockSize {
		b.emit(b.block)
		b.filled = 0
	}
}

// Pending returns the number of samples buffered towards the next block.
// A partial tail at end of stream is never emitted; callers that care can
// inspect Pending after the final write.
func (b *Blocker) Pending() int {
	return b.filled
}

// Reset discards any buffered partial block and carried byte. Use it when
// the stream restarts so stale samples cannot leak into the next block.
func (b *Blocker) Reset() {
	b.filled = 0
	b.hasCarry = false
}
