// Package pcm holds the frame types shared by the capture pipeline and a few
// helpers over 16-bit little-endian mono PCM.
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// BytesPerSample is fixed: the pipeline only carries signed 16-bit samples.
const BytesPerSample = 2

// Frame is one fixed-duration block of PCM captured from a device.
type Frame struct {
	Data []byte
	// Seq is the zero-based index of the frame within its session, counting
	// dropped frames too.
	Seq uint64
	// Offset is the stream time at which the frame starts.
	Offset time.Duration
}

// End is the stream time just after the last sample of the frame.
func (f Frame) End(spec Spec) time.Duration {
	return f.Offset + spec.DurationOf(len(f.Data))
}

// ClassifiedFrame pairs a frame with the classifier's verdict.
type ClassifiedFrame struct {
	Frame
	Voiced bool
}

// Spec describes the shape of every frame in a stream.
type Spec struct {
	SampleRate    int
	Channels      int
	FrameDuration time.Duration
}

// DefaultSpec is 16 kHz mono with 30 ms frames.
func DefaultSpec() Spec {
	return Spec{SampleRate: 16000, Channels: 1, FrameDuration: 30 * time.Millisecond}
}

// FrameSamples is the per-channel sample count of one frame.
func (s Spec) FrameSamples() int {
	return int(int64(s.SampleRate) * s.FrameDuration.Milliseconds() / 1000)
}

// FrameBytes is the exact byte length a well-formed frame must have.
func (s Spec) FrameBytes() int {
	return s.FrameSamples() * s.channels() * BytesPerSample
}

// BytesPerSecond of the raw stream.
func (s Spec) BytesPerSecond() int {
	return s.SampleRate * s.channels() * BytesPerSample
}

// DurationOf converts a byte count into stream time.
func (s Spec) DurationOf(n int) time.Duration {
	bps := s.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// FramesIn returns how many whole frames fit in d.
func (s Spec) FramesIn(d time.Duration) int {
	if s.FrameDuration <= 0 {
		return 0
	}
	return int(d / s.FrameDuration)
}

func (s Spec) channels() int {
	if s.Channels <= 0 {
		return 1
	}
	return s.Channels
}

func (s Spec) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", s.SampleRate, s.channels(), s.FrameDuration)
}

// Samples decodes little-endian int16 PCM. A trailing odd byte is ignored.
func Samples(raw []byte) []int16 {
	n := len(raw) / BytesPerSample
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}

// Encode is the inverse of Samples.
func Encode(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// RMS is the root-mean-square amplitude of the PCM, normalized to [0, 1].
func RMS(raw []byte) float64 {
	n := len(raw) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
