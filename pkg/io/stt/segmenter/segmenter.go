// Package segmenter decides, frame by frame, where a spoken utterance starts
// and ends in a continuous stream of classified PCM frames.
//
// A Segmenter is single-use: it starts idle, may trigger once, and finishes
// either released (an Utterance is available) or aborted. Start a new one
// for the next utterance.
//
// Idle: every frame goes into a ring of Padding/FrameDuration frames. When
// voiced/capacity exceeds TriggerRatio the ring is drained into the
// utterance, so the speech onset is kept, and the segmenter triggers.
//
// Triggered: frames are appended to the utterance and pushed into the same,
// now empty, ring. Release happens only when more than PostTrigger has passed
// since the trigger and unvoiced/capacity exceeds ReleaseRatio.
//
// Time is stream time taken from frame offsets, so a given frame sequence
// always segments the same way.
package segmenter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/xpanvictor/aria/pkg/Logger"
	"github.com/xpanvictor/aria/pkg/io/pcm"
	audioring "github.com/xpanvictor/aria/pkg/io/stt/audioRing"
)

var (
	// ErrFinished is returned by Feed after release or abort.
	ErrFinished = errors.New("segmenter: already finished")
	// ErrNotTriggered is returned by Flush while idle.
	ErrNotTriggered = errors.New("segmenter: not triggered")
)

// State names, also the fsm state names.
type State string

const (
	StateIdle      State = "idle"
	StateTriggered State = "triggered"
	StateDone      State = "done"
	StateAborted   State = "aborted"
)

const (
	evTrigger = "trigger"
	evRelease = "release"
	evAbort   = "abort"
)

// Event reports what a Feed call changed.
type Event int

const (
	EventNone Event = iota
	EventTriggered
	EventReleased
)

func (e Event) String() string {
	switch e {
	case EventTriggered:
		return "triggered"
	case EventReleased:
		return "released"
	default:
		return "none"
	}
}

// phase is the state-specific data. Only the variant for the current state
// exists, so a trigger timestamp cannot outlive the triggered state.
type phase interface{ state() State }

type idlePhase struct {
	ring audioring.FrameRing
}

func (idlePhase) state() State { return StateIdle }

type triggeredPhase struct {
	ring      audioring.FrameRing
	startAt   time.Duration
	triggerAt time.Duration
	frames    []pcm.Frame
}

func (triggeredPhase) state() State { return StateTriggered }

type finishedPhase struct {
	final State
}

func (p finishedPhase) state() State { return p.final }

// Segmenter is the two-state onset/offset machine. Not safe for concurrent
// use; the capture loop feeds it from a single goroutine.
type Segmenter struct {
	cfg    Config
	logger *Logger.Logger
	fsm    *fsm.FSM
	phase  phase
	result *Utterance
	frames uint64
}

// New builds an idle segmenter with a fresh ring.
func New(cfg Config, logger *Logger.Logger) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ring, err := audioring.New(cfg.RingCapacity(), cfg.Spec.FrameBytes())
	if err != nil {
		return nil, err
	}

	s := &Segmenter{
		cfg:    cfg,
		logger: Logger.OrNop(logger).Named("segmenter"),
		phase:  idlePhase{ring: ring},
	}
	s.fsm = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evTrigger, Src: []string{string(StateIdle)}, Dst: string(StateTriggered)},
			{Name: evRelease, Src: []string{string(StateTriggered)}, Dst: string(StateDone)},
			{Name: evAbort, Src: []string{string(StateIdle), string(StateTriggered)}, Dst: string(StateAborted)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debugf("segmenter %s -> %s after %d frames", e.Src, e.Dst, s.frames)
			},
		},
	)
	return s, nil
}

// State is the current machine state.
func (s *Segmenter) State() State {
	return State(s.fsm.Current())
}

// Config returns the configuration the segmenter was built with.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// Feed advances the machine by one classified frame.
func (s *Segmenter) Feed(cf pcm.ClassifiedFrame) (Event, error) {
	switch p := s.phase.(type) {
	case idlePhase:
		return s.feedIdle(p, cf)
	case *triggeredPhase:
		return s.feedTriggered(p, cf)
	default:
		return EventNone, ErrFinished
	}
}

func (s *Segmenter) feedIdle(p idlePhase, cf pcm.ClassifiedFrame) (Event, error) {
	if err := p.ring.Push(cf); err != nil {
		return EventNone, err
	}
	s.frames++
	if p.ring.VoicedRatio() <= s.cfg.TriggerRatio {
		return EventNone, nil
	}

	lookback := p.ring.Drain()
	frames := make([]pcm.Frame, 0, len(lookback)+s.cfg.RingCapacity())
	for _, f := range lookback {
		frames = append(frames, f.Frame)
	}
	next := &triggeredPhase{
		ring:      p.ring,
		startAt:   frames[0].Offset,
		triggerAt: cf.End(s.cfg.Spec),
		frames:    frames,
	}
	if err := s.transition(evTrigger); err != nil {
		return EventNone, err
	}
	s.phase = next
	s.logger.Debugf("triggered at %s with %d lookback frames", next.triggerAt, len(frames))
	return EventTriggered, nil
}

func (s *Segmenter) feedTriggered(p *triggeredPhase, cf pcm.ClassifiedFrame) (Event, error) {
	if err := p.ring.Push(cf); err != nil {
		return EventNone, err
	}
	p.frames = append(p.frames, cf.Frame)
	s.frames++

	end := cf.End(s.cfg.Spec)
	elapsed := end - p.triggerAt

	if s.cfg.MaxUtterance > 0 && elapsed >= s.cfg.MaxUtterance {
		return EventReleased, s.finish(p, end, EndedByCeiling)
	}
	if elapsed > s.cfg.PostTrigger && p.ring.UnvoicedRatio() > s.cfg.ReleaseRatio {
		return EventReleased, s.finish(p, end, EndedBySilence)
	}
	return EventNone, nil
}

func (s *Segmenter) finish(p *triggeredPhase, end time.Duration, why Ending) error {
	if err := s.transition(evRelease); err != nil {
		return err
	}
	s.result = &Utterance{
		Frames:    p.frames,
		Spec:      s.cfg.Spec,
		StartAt:   p.startAt,
		TriggerAt: p.triggerAt,
		EndAt:     end,
		Ending:    why,
	}
	p.ring.Reset()
	s.phase = finishedPhase{final: StateDone}
	s.logger.Debugf("released (%s) after %s triggered, %d frames", why, s.result.TriggeredDuration(), len(p.frames))
	return nil
}

// Flush closes a triggered segment because the input ended. It returns
// ErrNotTriggered while idle and ErrFinished after release or abort.
func (s *Segmenter) Flush() (*Utterance, error) {
	switch p := s.phase.(type) {
	case idlePhase:
		return nil, ErrNotTriggered
	case *triggeredPhase:
		end := p.triggerAt
		if n := len(p.frames); n > 0 {
			end = p.frames[n-1].End(s.cfg.Spec)
		}
		if err := s.finish(p, end, EndedByStream); err != nil {
			return nil, err
		}
		return s.result, nil
	default:
		return nil, ErrFinished
	}
}

// Abort discards everything collected so far. Partial utterances are never
// exposed after an abort.
func (s *Segmenter) Abort() {
	switch p := s.phase.(type) {
	case idlePhase:
		p.ring.Reset()
	case *triggeredPhase:
		p.ring.Reset()
		p.frames = nil
	default:
		return
	}
	if err := s.transition(evAbort); err != nil {
		s.logger.Warnf("abort: %v", err)
	}
	s.phase = finishedPhase{final: StateAborted}
	s.result = nil
}

// Utterance returns the released utterance, or nil before release.
func (s *Segmenter) Utterance() *Utterance {
	return s.result
}

func (s *Segmenter) transition(event string) error {
	if err := s.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("segmenter: %s from %s: %w", event, s.fsm.Current(), err)
	}
	return nil
}
