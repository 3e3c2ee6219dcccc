package audioring

import (
	"fmt"

	"github.com/smallnest/ringbuffer"
	"github.com/xpanvictor/aria/pkg/io/pcm"
)

type rb_impl struct {
	capacity   int
	frameBytes int
	recordSize int
	count      int
	voiced     int
	scratch    []byte
	rb         *ringbuffer.RingBuffer
}

// Capacity implements FrameRing.
func (r *rb_impl) Capacity() int {
	return r.capacity
}

// Len implements FrameRing.
func (r *rb_impl) Len() int {
	return r.count
}

// Voiced implements FrameRing.
func (r *rb_impl) Voiced() int {
	return r.voiced
}

// VoicedRatio implements FrameRing.
func (r *rb_impl) VoicedRatio() float64 {
	return float64(r.voiced) / float64(r.capacity)
}

// UnvoicedRatio implements FrameRing.
func (r *rb_impl) UnvoicedRatio() float64 {
	return float64(r.count-r.voiced) / float64(r.capacity)
}

// Push implements FrameRing.
func (r *rb_impl) Push(f pcm.ClassifiedFrame) error {
	if len(f.Data) != r.frameBytes {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(f.Data), r.frameBytes)
	}

	// Make space by removing the oldest record
	if r.count == r.capacity {
		if err := r.removeOldest(); err != nil {
			// Counters no longer trustworthy; start over rather than misreport ratios
			r.Reset()
		}
	}

	marshalRecord(r.scratch, f)
	if _, err := r.rb.Write(r.scratch); err != nil {
		return fmt.Errorf("audioring: write record: %w", err)
	}
	r.count++
	if f.Voiced {
		r.voiced++
	}
	return nil
}

// removeOldest drops one complete record from the front.
func (r *rb_impl) removeOldest() error {
	n, err := r.rb.Read(r.scratch)
	if err != nil {
		return err
	}
	if n != r.recordSize {
		return ErrCorruptRecord
	}
	r.count--
	if r.scratch[0] == 1 {
		r.voiced--
	}
	return nil
}

// Snapshot implements FrameRing.
func (r *rb_impl) Snapshot() []pcm.ClassifiedFrame {
	out := make([]pcm.ClassifiedFrame, 0, r.count)
	if r.rb.IsEmpty() {
		return out
	}

	buf := make([]byte, r.rb.Length())
	buf = r.rb.Bytes(buf)
	for off := 0; off+r.recordSize <= len(buf); off += r.recordSize {
		out = append(out, unmarshalRecord(buf[off:off+r.recordSize]))
	}
	return out
}

// Drain implements FrameRing.
func (r *rb_impl) Drain() []pcm.ClassifiedFrame {
	out := make([]pcm.ClassifiedFrame, 0, r.count)
	for !r.rb.IsEmpty() {
		n, err := r.rb.Read(r.scratch)
		if err != nil || n != r.recordSize {
			break
		}
		out = append(out, unmarshalRecord(r.scratch))
	}
	r.Reset()
	return out
}

// Reset implements FrameRing.
func (r *rb_impl) Reset() {
	r.rb.Reset()
	r.count = 0
	r.voiced = 0
}

// New allocates a ring holding capacity frames of exactly frameBytes each.
func New(capacity, frameBytes int) (FrameRing, error) {
	if capacity <= 0 || frameBytes <= 0 {
		return nil, ErrBadCapacity
	}
	recordSize := headerSize + frameBytes
	return &rb_impl{
		capacity:   capacity,
		frameBytes: frameBytes,
		recordSize: recordSize,
		scratch:    make([]byte, recordSize),
		// Non-blocking; eviction keeps writes within capacity
		rb: ringbuffer.New(capacity * recordSize).SetBlocking(false),
	}, nil
}
