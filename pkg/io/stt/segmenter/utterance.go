package segmenter

import (
	"time"

	"github.com/xpanvictor/aria/pkg/io/pcm"
)

// Ending says why a segment was closed.
type Ending int

const (
	// EndedBySilence is the normal release: floor elapsed and trailing window
	// mostly unvoiced.
	EndedBySilence Ending = iota
	// EndedByCeiling means MaxUtterance forced the release.
	EndedByCeiling
	// EndedByStream means the input ran out while triggered.
	EndedByStream
)

func (e Ending) String() string {
	switch e {
	case EndedBySilence:
		return "silence"
	case EndedByCeiling:
		return "ceiling"
	case EndedByStream:
		return "end-of-stream"
	default:
		return "unknown"
	}
}

// Utterance is a finalized segment: the lookback frames recovered at the
// trigger followed by every frame seen while triggered, in capture order.
type Utterance struct {
	Frames []pcm.Frame
	Spec   pcm.Spec
	// StartAt is the stream offset of the first frame.
	StartAt time.Duration
	// TriggerAt is the stream time at which the trigger fired.
	TriggerAt time.Duration
	// EndAt is the stream time just after the last frame.
	EndAt  time.Duration
	Ending Ending
}

// PCM concatenates the frame payloads.
func (u *Utterance) PCM() []byte {
	n := 0
	for _, f := range u.Frames {
		n += len(f.Data)
	}
	out := make([]byte, 0, n)
	for _, f := range u.Frames {
		out = append(out, f.Data...)
	}
	return out
}

// TriggeredDuration is the time spent in the triggered state.
func (u *Utterance) TriggeredDuration() time.Duration {
	return u.EndAt - u.TriggerAt
}

// AudioDuration is the length of audio the utterance carries.
func (u *Utterance) AudioDuration() time.Duration {
	return time.Duration(len(u.Frames)) * u.Spec.FrameDuration
}

// LookbackFrames is how many leading frames came from the ring at trigger.
func (u *Utterance) LookbackFrames() int {
	n := 0
	for _, f := range u.Frames {
		if f.Offset >= u.TriggerAt {
			break
		}
		n++
	}
	return n
}
