// Package mock provides a scripted device.Device for tests.
//
//	dev := &mock.Device{Reads: []mock.Read{{Data: frame}, {Err: io.EOF}}}
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/xpanvictor/aria/pkg/io/device"
)

// Read is one scripted Handle.Read result.
type Read struct {
	Data []byte
	Err  error
}

// Device is a mock implementation of device.Device. Every Open returns a
// handle replaying Reads from the start; after the script io.EOF is returned.
type Device struct {
	mu sync.Mutex

	Reads []Read

	// Generate, if set, is consulted before Reads for every read index.
	// Returning ok=false falls through to Reads.
	Generate func(i int) (data []byte, err error, ok bool)

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// BlockAfterScript makes reads block until ctx is cancelled instead of
	// returning io.EOF.
	BlockAfterScript bool

	OpenCalls  []device.Params
	CloseCalls int
}

// Name implements device.Device.
func (d *Device) Name() string { return "mock" }

// Open implements device.Device.
func (d *Device) Open(ctx context.Context, p device.Params) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, p)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	return &Handle{dev: d}, nil
}

// Closes returns how many handles were closed. Thread-safe.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CloseCalls
}

// Handle is the mock device.Handle.
type Handle struct {
	dev *Device
	pos int
}

// Read implements device.Handle.
func (h *Handle) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := h.pos
	h.pos++
	if h.dev.Generate != nil {
		if data, err, ok := h.dev.Generate(i); ok {
			return data, err
		}
	}
	if i < len(h.dev.Reads) {
		r := h.dev.Reads[i]
		return r.Data, r.Err
	}
	if h.dev.BlockAfterScript {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, io.EOF
}

// Close implements device.Handle.
func (h *Handle) Close() error {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	h.dev.CloseCalls++
	return nil
}

var (
	_ device.Device = (*Device)(nil)
	_ device.Handle = (*Handle)(nil)
)
