//go:build !cgo

package portaudio

import (
	"context"
	"errors"

	"github.com/xpanvictor/aria/pkg/io/device"
)

var errNoCgo = errors.New("portaudio capture requires cgo")

// Mic is unavailable without cgo; Open always fails with a device error.
type Mic struct{}

func New() *Mic { return &Mic{} }

func (m *Mic) Name() string { return "portaudio" }

func (m *Mic) Open(ctx context.Context, p device.Params) (device.Handle, error) {
	return nil, &device.Error{Op: "open", Index: p.DeviceIndex, Err: errNoCgo}
}

func Devices() ([]string, error) { return nil, errNoCgo }

var _ device.Device = (*Mic)(nil)
