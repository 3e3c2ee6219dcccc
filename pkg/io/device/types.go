// Package device is the capture-side boundary: a Device opens a Handle on
// some audio input, and a Source turns a Handle into well-formed frames.
package device

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDevice marks capture hardware or driver failure. It aborts the
	// session and is never retried by the capture loop.
	ErrDevice = errors.New("device error")
	// ErrEndOfStream is returned once the input is exhausted.
	ErrEndOfStream = errors.New("device: end of stream")
	// ErrMalformedFrame marks a read whose byte length differs from the
	// configured frame size.
	ErrMalformedFrame = errors.New("device: malformed frame")
)

// Error describes a failed device operation. errors.Is(err, ErrDevice)
// holds for every *Error.
type Error struct {
	Op    string
	Index int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %d: %s: %v", e.Index, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrDevice }

// Params is what a capture session asks the device for.
type Params struct {
	// DeviceIndex selects the input; negative means the system default.
	DeviceIndex  int
	SampleRate   int
	Channels     int
	FrameSamples int
}

// Handle is an open capture stream.
type Handle interface {
	// Read blocks until one frame worth of PCM (FrameSamples*Channels int16
	// little-endian samples) is available. io.EOF signals a clean end.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Device opens capture streams.
type Device interface {
	Open(ctx context.Context, p Params) (Handle, error)
	Name() string
}
