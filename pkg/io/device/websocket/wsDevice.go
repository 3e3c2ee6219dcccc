// Package websocket captures PCM streamed by a remote microphone over a
// websocket. Binary messages may be any length; the handle re-chunks them
// into frames of the size requested at Open.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xpanvictor/aria/pkg/io/device"
)

// Hello is sent once after dialing so the remote end knows what to stream.
type Hello struct {
	SampleRate   int `json:"sampleRate"`
	Channels     int `json:"channels"`
	FrameSamples int `json:"frameSamples"`
}

type wsDevice struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
}

// New returns a device.Device that dials url on every Open.
func New(url string, header http.Header) device.Device {
	return &wsDevice{
		url:    url,
		header: header,
		dialer: websocket.DefaultDialer,
	}
}

// Name implements device.Device.
func (w *wsDevice) Name() string { return "websocket" }

// Open implements device.Device.
func (w *wsDevice) Open(ctx context.Context, p device.Params) (device.Handle, error) {
	conn, _, err := w.dialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		return nil, &device.Error{Op: "dial", Index: p.DeviceIndex, Err: err}
	}
	hello := Hello{SampleRate: p.SampleRate, Channels: p.Channels, FrameSamples: p.FrameSamples}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, &device.Error{Op: "hello", Index: p.DeviceIndex, Err: err}
	}
	channels := max(p.Channels, 1)
	return &wsHandle{conn: conn, index: p.DeviceIndex, chunk: p.FrameSamples * channels * 2}, nil
}

type wsHandle struct {
	conn    *websocket.Conn
	index   int
	chunk   int
	pending []byte
	ended   bool
}

// Read implements device.Handle. It returns exactly one frame of bytes,
// buffering across messages. A normal close from the remote is a clean end of
// stream; a trailing partial frame is returned short before io.EOF.
func (h *wsHandle) Read(ctx context.Context) ([]byte, error) {
	if h.chunk <= 0 {
		return h.readMessage(ctx)
	}
	for !h.ended && len(h.pending) < h.chunk {
		data, err := h.readMessage(ctx)
		if errors.Is(err, io.EOF) {
			h.ended = true
			break
		}
		if err != nil {
			return nil, err
		}
		h.pending = append(h.pending, data...)
	}
	if len(h.pending) == 0 {
		return nil, io.EOF
	}
	n := min(h.chunk, len(h.pending))
	out := make([]byte, n)
	copy(out, h.pending)
	h.pending = h.pending[n:]
	return out, nil
}

// readMessage returns the next binary message; text messages are ignored.
func (h *wsHandle) readMessage(ctx context.Context) ([]byte, error) {
	// Unblock ReadMessage when ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		_ = h.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := h.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, &device.Error{Op: "read", Index: h.index, Err: err}
		}
		if kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close implements device.Handle.
func (h *wsHandle) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture finished")
	errWrite := h.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	errClose := h.conn.Close()
	if errWrite != nil && !errors.Is(errWrite, websocket.ErrCloseSent) {
		return fmt.Errorf("websocket close: %w", errors.Join(errWrite, errClose))
	}
	return errClose
}
