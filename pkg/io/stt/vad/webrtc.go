//go:build cgo

package vad

import (
	"fmt"
	"sync"

	"github.com/baabaaox/go-webrtcvad"
)

// WebRTC wraps the WebRTC GMM voice activity detector.
type WebRTC struct {
	mu     sync.Mutex
	inst   webrtcvad.VadInst
	config Config
	closed bool
}

// NewWebRTC creates and initializes a detector in the configured mode.
func NewWebRTC(cfg Config) (*WebRTC, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inst := webrtcvad.Create()
	if inst == nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD instance")
	}
	if err := webrtcvad.Init(inst); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("failed to initialize WebRTC VAD: %w", err)
	}
	if err := webrtcvad.SetMode(inst, cfg.Aggressiveness); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("failed to set WebRTC VAD mode: %w", err)
	}

	return &WebRTC{inst: inst, config: cfg}, nil
}

// IsSpeech implements Classifier.
func (w *WebRTC) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := checkFrame(w.config, frame, sampleRate); err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false, fmt.Errorf("%w: detector closed", ErrClassifier)
	}

	active, err := webrtcvad.Process(w.inst, sampleRate, frame, len(frame)/2)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrClassifier, err)
	}
	return active, nil
}

// Close implements Classifier.
func (w *WebRTC) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		webrtcvad.Free(w.inst)
		w.closed = true
	}
	return nil
}
