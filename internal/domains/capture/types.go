package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/aria/pkg/io/pcm"
	"github.com/xpanvictor/aria/pkg/io/stt/filter"
	"github.com/xpanvictor/aria/pkg/io/stt/segmenter"
	"github.com/xpanvictor/aria/pkg/io/stt/vad"
)

// Common errors
var (
	ErrSessionActive   = errors.New("capture session already active")
	ErrSessionUsed     = errors.New("capture session already ran")
	ErrSegmentTooShort = errors.New("segment too short")
	ErrSegmentTooQuiet = errors.New("segment too quiet")
	ErrNoSpeech        = errors.New("input ended before speech")
	ErrCancelled       = errors.New("capture cancelled")
	ErrSink            = errors.New("utterance sink failed")
	ErrInternal        = errors.New("capture pipeline fault")
)

// Kind classifies how a session ended.
type Kind string

const (
	KindAccepted     Kind = "accepted"
	KindTooShort     Kind = "too_short"
	KindTooQuiet     Kind = "too_quiet"
	KindNoSpeech     Kind = "no_speech"
	KindCancelled    Kind = "cancelled"
	KindDeviceFailed Kind = "device_failed"
	KindSinkFailed   Kind = "sink_failed"
	KindInternal     Kind = "internal"
)

// Rearm reports whether a caller may silently start the next session. An
// input that ended before speech is not one of them: a finite source would
// only end again.
func (k Kind) Rearm() bool {
	switch k {
	case KindTooShort, KindTooQuiet:
		return true
	}
	return false
}

// Stats counts what a session saw, frame by frame.
type Stats struct {
	FramesRead       int `json:"framesRead"`
	FramesDropped    int `json:"framesDropped"`
	ClassifierErrors int `json:"classifierErrors"`
	VoicedFrames     int `json:"voicedFrames"`
}

// Outcome is the result of one capture session. PCM and Path are only set
// for accepted utterances.
type Outcome struct {
	SessionID  uuid.UUID        `json:"sessionId"`
	Kind       Kind             `json:"kind"`
	Path       string           `json:"path,omitempty"`
	PCM        []byte           `json:"-"`
	SampleRate int              `json:"sampleRate"`
	Duration   time.Duration    `json:"duration"`
	Audio      time.Duration    `json:"audio"`
	RMS        float64          `json:"rms"`
	Ending     segmenter.Ending `json:"ending"`
	Stats      Stats            `json:"stats"`
}

// Sink persists an accepted utterance.
type Sink interface {
	Write(path string, pcm []byte, sampleRate int) error
}

// ClassifierFactory builds the per-session classifier.
type ClassifierFactory func(cfg vad.Config) (vad.Classifier, error)

// Config for a Recorder.
type Config struct {
	Segmenter   segmenter.Config `json:"segmenter"`
	Filter      filter.Config    `json:"filter"`
	VAD         vad.Config       `json:"vad"`
	DeviceIndex int              `json:"deviceIndex"`
	OutputDir   string           `json:"outputDir"`
	// WarnFrameErrors logs dropped frames and classifier failures at warn
	// level instead of debug.
	WarnFrameErrors bool `json:"warnFrameErrors"`
	// LogTiming logs wall-clock session timings.
	LogTiming bool `json:"logTiming"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Segmenter:   segmenter.DefaultConfig(),
		Filter:      filter.DefaultConfig(),
		VAD:         vad.DefaultConfig(),
		DeviceIndex: -1,
		OutputDir:   "recordings",
	}
}

func (c Config) Spec() pcm.Spec {
	return c.Segmenter.Spec
}

func (c Config) Validate() error {
	if err := c.Segmenter.Validate(); err != nil {
		return err
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if err := c.VAD.Validate(); err != nil {
		return err
	}
	spec := c.Spec()
	if c.VAD.SampleRate != spec.SampleRate || c.VAD.FrameDuration != spec.FrameDuration {
		return fmt.Errorf("capture: classifier expects %dHz/%s frames, stream is %s",
			c.VAD.SampleRate, c.VAD.FrameDuration, spec)
	}
	return nil
}
