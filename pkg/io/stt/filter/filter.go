// Package filter rejects finalized utterances that are too short, or too
// quiet when an amplitude floor is configured.
package filter

import (
	"fmt"
	"time"

	"github.com/xpanvictor/aria/pkg/io/pcm"
	"github.com/xpanvictor/aria/pkg/io/stt/segmenter"
)

// Result of an evaluation.
type Result int

const (
	Accepted Result = iota
	TooShort
	TooQuiet
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case TooShort:
		return "too-short"
	case TooQuiet:
		return "too-quiet"
	default:
		return "unknown"
	}
}

type Config struct {
	// MinDuration is compared with the triggered duration (trigger to end).
	MinDuration time.Duration `json:"minDuration"`
	// MinRMS is a normalized amplitude floor in [0,1]; 0 disables it.
	MinRMS float64 `json:"minRms"`
}

func DefaultConfig() Config {
	return Config{MinDuration: 1800 * time.Millisecond}
}

func (c Config) Validate() error {
	if c.MinDuration < 0 {
		return fmt.Errorf("filter: negative min duration %s", c.MinDuration)
	}
	if c.MinRMS < 0 || c.MinRMS > 1 {
		return fmt.Errorf("filter: min rms %v outside [0,1]", c.MinRMS)
	}
	return nil
}

// Verdict carries the decision plus the measurements it was based on. RMS is
// always filled in, even for rejected utterances.
type Verdict struct {
	Result   Result
	Duration time.Duration
	RMS      float64
	PCM      []byte
}

func (v Verdict) Accepted() bool { return v.Result == Accepted }

type Filter struct {
	cfg Config
}

func New(cfg Config) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Filter{cfg: cfg}, nil
}

// Evaluate never returns audio for a rejected utterance.
func (f *Filter) Evaluate(u *segmenter.Utterance) Verdict {
	raw := u.PCM()
	v := Verdict{
		Duration: u.TriggeredDuration(),
		RMS:      pcm.RMS(raw),
	}
	switch {
	case v.Duration < f.cfg.MinDuration:
		v.Result = TooShort
	case f.cfg.MinRMS > 0 && v.RMS < f.cfg.MinRMS:
		v.Result = TooQuiet
	default:
		v.Result = Accepted
		v.PCM = raw
	}
	return v
}
