package device

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/xpanvictor/aria/pkg/Logger"
	"github.com/xpanvictor/aria/pkg/io/pcm"
)

// Source pulls fixed-size frames from a Handle, stamping each with its
// sequence number and stream offset. Wrong-sized reads are dropped and
// counted; they never reach the caller.
type Source struct {
	handle  Handle
	spec    pcm.Spec
	index   int
	logger  *Logger.Logger
	verbose bool

	seq     uint64
	offset  time.Duration
	dropped int
}

// SourceOption tunes a Source.
type SourceOption func(*Source)

// WithDropWarnings logs every dropped frame at warn level instead of debug.
func WithDropWarnings(on bool) SourceOption {
	return func(s *Source) { s.verbose = on }
}

// WithDeviceIndex sets the index reported in *Error values.
func WithDeviceIndex(i int) SourceOption {
	return func(s *Source) { s.index = i }
}

func NewSource(h Handle, spec pcm.Spec, logger *Logger.Logger, opts ...SourceOption) *Source {
	s := &Source{
		handle: h,
		spec:   spec,
		logger: Logger.OrNop(logger),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Next blocks until a full frame is read. It returns ErrEndOfStream at a
// clean end, ctx.Err() when cancelled, and an *Error on device failure.
func (s *Source) Next(ctx context.Context) (pcm.Frame, error) {
	want := s.spec.FrameBytes()
	for {
		if err := ctx.Err(); err != nil {
			return pcm.Frame{}, err
		}

		data, err := s.handle.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return pcm.Frame{}, ErrEndOfStream
			case ctx.Err() != nil:
				return pcm.Frame{}, ctx.Err()
			case errors.Is(err, ErrDevice):
				return pcm.Frame{}, err
			}
			return pcm.Frame{}, &Error{Op: "read", Index: s.index, Err: err}
		}

		seq, offset := s.seq, s.offset
		s.seq++
		s.offset += s.spec.DurationOf(len(data))

		if len(data) != want {
			s.dropped++
			if s.verbose {
				s.logger.Warnf("skipping frame %d: got %d bytes, expected %d", seq, len(data), want)
			} else {
				s.logger.Debugf("skipping frame %d: got %d bytes, expected %d", seq, len(data), want)
			}
			continue
		}

		return pcm.Frame{Data: data, Seq: seq, Offset: offset}, nil
	}
}

// Dropped is the number of malformed frames discarded so far.
func (s *Source) Dropped() int {
	return s.dropped
}

// Spec is the frame layout this source enforces.
func (s *Source) Spec() pcm.Spec {
	return s.spec
}

// Close releases the underlying handle.
func (s *Source) Close() error {
	return s.handle.Close()
}
