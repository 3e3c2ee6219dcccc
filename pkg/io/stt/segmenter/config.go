package segmenter

import (
	"fmt"
	"time"

	"github.com/xpanvictor/aria/pkg/io/pcm"
)

// Config contains the timing and threshold knobs of the segmenter
type Config struct {
	Spec pcm.Spec `json:"spec"`
	// Padding is the lookback window; ring capacity is Padding/FrameDuration.
	Padding time.Duration `json:"padding"`
	// TriggerRatio: idle -> triggered once voiced/capacity exceeds it.
	TriggerRatio float64 `json:"triggerRatio"`
	// ReleaseRatio: triggered -> done once unvoiced/capacity exceeds it and
	// PostTrigger has elapsed.
	ReleaseRatio float64 `json:"releaseRatio"`
	// PostTrigger is the minimum speaking floor before release is considered.
	PostTrigger time.Duration `json:"postTrigger"`
	// MaxUtterance forces release after this long in triggered; 0 disables.
	MaxUtterance time.Duration `json:"maxUtterance"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Spec:         pcm.DefaultSpec(),
		Padding:      1500 * time.Millisecond,
		TriggerRatio: 0.95,
		ReleaseRatio: 0.90,
		PostTrigger:  2500 * time.Millisecond,
	}
}

// RingCapacity is the number of frames in the lookback/hysteresis window.
func (c Config) RingCapacity() int {
	return c.Spec.FramesIn(c.Padding)
}

func (c Config) Validate() error {
	if c.Spec.SampleRate <= 0 || c.Spec.FrameDuration <= 0 {
		return fmt.Errorf("segmenter: invalid frame spec %s", c.Spec)
	}
	if c.Spec.FrameSamples() <= 0 {
		return fmt.Errorf("segmenter: frame spec %s yields no samples", c.Spec)
	}
	if c.Padding%c.Spec.FrameDuration != 0 || c.RingCapacity() < 1 {
		return fmt.Errorf("segmenter: padding %s must be a positive multiple of the frame duration %s", c.Padding, c.Spec.FrameDuration)
	}
	if c.TriggerRatio <= 0 || c.TriggerRatio >= 1 {
		return fmt.Errorf("segmenter: trigger ratio %v outside (0,1)", c.TriggerRatio)
	}
	if c.ReleaseRatio <= 0 || c.ReleaseRatio >= 1 {
		return fmt.Errorf("segmenter: release ratio %v outside (0,1)", c.ReleaseRatio)
	}
	if c.PostTrigger < 0 || c.MaxUtterance < 0 {
		return fmt.Errorf("segmenter: durations must not be negative")
	}
	if c.MaxUtterance > 0 && c.MaxUtterance < c.PostTrigger {
		return fmt.Errorf("segmenter: max utterance %s shorter than post-trigger floor %s", c.MaxUtterance, c.PostTrigger)
	}
	return nil
}
