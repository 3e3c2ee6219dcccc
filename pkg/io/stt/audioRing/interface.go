package audioring

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/xpanvictor/aria/pkg/io/pcm"
)

var (
	ErrFrameSize     = errors.New("audioring: frame size does not match ring record size")
	ErrBadCapacity   = errors.New("audioring: capacity and frame size must be positive")
	ErrCorruptRecord = errors.New("audioring: corrupt record")
)

// header layout: voiced(1) + seq(8) + offset(8)
const headerSize = 1 + 8 + 8

func marshalRecord(dst []byte, f pcm.ClassifiedFrame) {
	if f.Voiced {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	binary.LittleEndian.PutUint64(dst[1:], f.Seq)
	binary.LittleEndian.PutUint64(dst[9:], uint64(f.Offset))
	copy(dst[headerSize:], f.Data)
}

func unmarshalRecord(src []byte) pcm.ClassifiedFrame {
	data := make([]byte, len(src)-headerSize)
	copy(data, src[headerSize:])
	return pcm.ClassifiedFrame{
		Frame: pcm.Frame{
			Data:   data,
			Seq:    binary.LittleEndian.Uint64(src[1:]),
			Offset: time.Duration(binary.LittleEndian.Uint64(src[9:])),
		},
		Voiced: src[0] == 1,
	}
}

// FrameRing is a fixed-capacity FIFO of classified frames. Once full, every
// Push evicts the oldest entry.
type FrameRing interface {
	Push(f pcm.ClassifiedFrame) error
	Len() int
	Capacity() int
	Voiced() int
	// VoicedRatio and UnvoicedRatio are relative to Capacity, not Len, so a
	// partially filled ring can never cross a threshold early.
	VoicedRatio() float64
	UnvoicedRatio() float64
	// Snapshot copies the contents oldest-first without consuming them.
	Snapshot() []pcm.ClassifiedFrame
	// Drain returns the contents oldest-first and leaves the ring empty.
	Drain() []pcm.ClassifiedFrame
	Reset()
}
