//go:build cgo

// Package portaudio captures microphone input through PortAudio.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"
	"github.com/xpanvictor/aria/pkg/io/device"
	"github.com/xpanvictor/aria/pkg/io/pcm"
)

// Mic is a device.Device backed by the host's PortAudio input devices.
type Mic struct{}

func New() *Mic { return &Mic{} }

// Name implements device.Device.
func (m *Mic) Name() string { return "portaudio" }

// Open implements device.Device. PortAudio is initialized per handle and
// terminated on Close, so nothing outlives the session.
func (m *Mic) Open(ctx context.Context, p device.Params) (device.Handle, error) {
	if err := pa.Initialize(); err != nil {
		return nil, &device.Error{Op: "initialize", Index: p.DeviceIndex, Err: err}
	}

	in, err := inputDevice(p.DeviceIndex)
	if err != nil {
		pa.Terminate()
		return nil, &device.Error{Op: "select", Index: p.DeviceIndex, Err: err}
	}

	channels := p.Channels
	if channels <= 0 {
		channels = 1
	}
	buf := make([]int16, p.FrameSamples*channels)

	params := pa.LowLatencyParameters(in, nil)
	params.Input.Channels = channels
	params.Output.Channels = 0
	params.SampleRate = float64(p.SampleRate)
	params.FramesPerBuffer = p.FrameSamples

	stream, err := pa.OpenStream(params, buf)
	if err != nil {
		pa.Terminate()
		return nil, &device.Error{Op: "open", Index: p.DeviceIndex, Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, &device.Error{Op: "start", Index: p.DeviceIndex, Err: err}
	}

	return &handle{stream: stream, buf: buf, index: p.DeviceIndex}, nil
}

func inputDevice(index int) (*pa.DeviceInfo, error) {
	if index < 0 {
		return pa.DefaultInputDevice()
	}
	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	if index >= len(devices) {
		return nil, fmt.Errorf("no input device at index %d (%d devices)", index, len(devices))
	}
	d := devices[index]
	if d.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %q has no input channels", d.Name)
	}
	return d, nil
}

type handle struct {
	mu     sync.Mutex
	stream *pa.Stream
	buf    []int16
	index  int
	closed bool
}

// Read implements device.Handle.
func (h *handle) Read(ctx context.Context) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &device.Error{Op: "read", Index: h.index, Err: errors.New("stream closed")}
	}
	// Overflow loses older samples but the buffer is still a full frame.
	if err := h.stream.Read(); err != nil && !errors.Is(err, pa.InputOverflowed) {
		return nil, &device.Error{Op: "read", Index: h.index, Err: err}
	}
	return pcm.Encode(h.buf), nil
}

// Close implements device.Handle.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	errStop := h.stream.Stop()
	errClose := h.stream.Close()
	errTerm := pa.Terminate()
	return errors.Join(errStop, errClose, errTerm)
}

// Devices lists the input-capable devices with their indexes, for picking
// capture.input_device_index.
func Devices() ([]string, error) {
	if err := pa.Initialize(); err != nil {
		return nil, err
	}
	defer pa.Terminate()
	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	var out []string
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			out = append(out, fmt.Sprintf("%d: %s (%d ch, %.0f Hz)", i, d.Name, d.MaxInputChannels, d.DefaultSampleRate))
		}
	}
	return out, nil
}

var _ device.Device = (*Mic)(nil)
