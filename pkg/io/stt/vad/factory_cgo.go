//go:build cgo

package vad

// New returns the configured backend. Auto prefers WebRTC.
func New(cfg Config) (Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindEnergy:
		return NewEnergy(cfg)
	default:
		return NewWebRTC(cfg)
	}
}
