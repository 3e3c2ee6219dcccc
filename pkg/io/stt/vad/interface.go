package vad

import (
	"errors"
	"fmt"
	"time"
)

// ErrClassifier marks a frame the classifier could not judge. The capture
// loop treats such frames as unvoiced.
var ErrClassifier = errors.New("vad: classification failed")

// Classifier decides whether one PCM frame contains speech. It is expected to
// be deterministic for a fixed configuration.
type Classifier interface {
	IsSpeech(frame []byte, sampleRate int) (bool, error)
	Close() error
}

// Kind selects a classifier backend.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindWebRTC Kind = "webrtc"
	KindEnergy Kind = "energy"
)

// Config contains configuration for a classifier
type Config struct {
	Kind           Kind          `json:"kind"`
	Aggressiveness int           `json:"aggressiveness"` // 0..3, higher is stricter about calling a frame voiced
	SampleRate     int           `json:"sampleRate"`
	FrameDuration  time.Duration `json:"frameDuration"`
}

// DefaultConfig matches the capture defaults: strictest mode, 16 kHz, 30 ms.
func DefaultConfig() Config {
	return Config{
		Kind:           KindAuto,
		Aggressiveness: 3,
		SampleRate:     16000,
		FrameDuration:  30 * time.Millisecond,
	}
}

var supportedRates = []int{8000, 16000, 32000, 48000}

// Validate checks the combination is one a frame-level VAD can handle.
func (c Config) Validate() error {
	switch c.Kind {
	case KindAuto, KindWebRTC, KindEnergy:
	default:
		return fmt.Errorf("vad: unknown classifier kind %q, want auto, webrtc or energy", c.Kind)
	}
	if c.Aggressiveness < 0 || c.Aggressiveness > 3 {
		return fmt.Errorf("vad: aggressiveness %d outside 0..3", c.Aggressiveness)
	}
	ok := false
	for _, r := range supportedRates {
		if r == c.SampleRate {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("vad: unsupported sample rate %d, supported rates: 8000, 16000, 32000, 48000", c.SampleRate)
	}
	switch c.FrameDuration {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
	default:
		return fmt.Errorf("vad: unsupported frame duration %s, want 10, 20 or 30ms", c.FrameDuration)
	}
	return nil
}

// frameBytes is the expected 16-bit mono frame length at rate.
func (c Config) frameBytes(rate int) int {
	return int(int64(rate)*c.FrameDuration.Milliseconds()/1000) * 2
}

func checkFrame(c Config, frame []byte, rate int) error {
	if rate != c.SampleRate {
		return fmt.Errorf("%w: sample rate %d, configured %d", ErrClassifier, rate, c.SampleRate)
	}
	if want := c.frameBytes(rate); len(frame) != want {
		return fmt.Errorf("%w: frame is %d bytes, want %d", ErrClassifier, len(frame), want)
	}
	return nil
}
