package vad

import (
	"github.com/xpanvictor/aria/pkg/io/pcm"
)

// Normalized RMS needed to call a frame voiced, indexed by aggressiveness.
var energyThresholds = [4]float64{0.005, 0.010, 0.015, 0.020}

// Energy is a pure-Go classifier comparing frame RMS against a fixed floor.
// It is stateless, unlike a smoothing VAD, so the segmenter's ring stays the
// only source of hysteresis.
type Energy struct {
	config    Config
	threshold float64
}

// NewEnergy builds an energy classifier for cfg.
func NewEnergy(cfg Config) (*Energy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Energy{config: cfg, threshold: energyThresholds[cfg.Aggressiveness]}, nil
}

// IsSpeech implements Classifier.
func (e *Energy) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := checkFrame(e.config, frame, sampleRate); err != nil {
		return false, err
	}
	return pcm.RMS(frame) >= e.threshold, nil
}

// Threshold reports the RMS floor in use.
func (e *Energy) Threshold() float64 {
	return e.threshold
}

// Close implements Classifier.
func (e *Energy) Close() error { return nil }
