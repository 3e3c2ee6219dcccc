//go:build !cgo

package vad

import "fmt"

// New returns the configured backend. Without cgo only the energy detector
// is available.
func New(cfg Config) (Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Kind == KindWebRTC {
		return nil, fmt.Errorf("vad: webrtc classifier requires cgo")
	}
	return NewEnergy(cfg)
}
