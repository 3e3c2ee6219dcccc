// Package wavfile replays a 16-bit PCM WAV file as a capture device.
package wavfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/xpanvictor/aria/pkg/io/device"
	"github.com/xpanvictor/aria/pkg/io/stt/wavsink"
)

// File is a device.Device reading frames from Path. Like a microphone it
// does not rewind: each Open resumes where the last handle stopped reading,
// and once the file is consumed every handle reports end of stream.
type File struct {
	Path string
	// Paced sleeps one frame period per read to mimic a live microphone.
	Paced bool

	mu     sync.Mutex
	offset int
}

func New(path string, paced bool) *File {
	return &File{Path: path, Paced: paced}
}

// Name implements device.Device.
func (f *File) Name() string { return "wavfile" }

// Open implements device.Device. The file must match the requested rate and
// channel count; no resampling is done.
func (f *File) Open(ctx context.Context, p device.Params) (device.Handle, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, &device.Error{Op: "open", Index: p.DeviceIndex, Err: err}
	}
	defer fh.Close()

	format, data, err := wavsink.Decode(fh)
	if err != nil {
		return nil, &device.Error{Op: "decode", Index: p.DeviceIndex, Err: err}
	}
	channels := p.Channels
	if channels <= 0 {
		channels = 1
	}
	if format.SampleRate != p.SampleRate || format.Channels != channels {
		return nil, &device.Error{
			Op:    "open",
			Index: p.DeviceIndex,
			Err:   fmt.Errorf("%s is %dHz/%dch, capture wants %dHz/%dch", f.Path, format.SampleRate, format.Channels, p.SampleRate, channels),
		}
	}

	f.mu.Lock()
	pos := min(f.offset, len(data))
	f.mu.Unlock()

	h := &handle{file: f, data: data, pos: pos, chunk: p.FrameSamples * channels * 2}
	if f.Paced && p.SampleRate > 0 {
		h.period = time.Duration(int64(p.FrameSamples) * int64(time.Second) / int64(p.SampleRate))
	}
	return h, nil
}

// Rewind makes the next Open start from the beginning of the file again.
func (f *File) Rewind() {
	f.mu.Lock()
	f.offset = 0
	f.mu.Unlock()
}

type handle struct {
	file   *File
	data   []byte
	pos    int
	chunk  int
	period time.Duration
}

// Read implements device.Handle. The trailing partial frame, if any, is
// returned short and left for the Source to drop.
func (h *handle) Read(ctx context.Context) ([]byte, error) {
	if h.pos >= len(h.data) {
		return nil, io.EOF
	}
	if h.period > 0 {
		t := time.NewTimer(h.period)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	end := min(h.pos+h.chunk, len(h.data))
	out := make([]byte, end-h.pos)
	copy(out, h.data[h.pos:end])
	h.pos = end
	return out, nil
}

// Close implements device.Handle and records how far the file was read.
func (h *handle) Close() error {
	if h.data == nil {
		return nil
	}
	h.file.mu.Lock()
	h.file.offset = h.pos
	h.file.mu.Unlock()
	h.data = nil
	return nil
}

var _ device.Device = (*File)(nil)
