package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xpanvictor/aria/pkg/io/device"
	"github.com/xpanvictor/aria/pkg/io/pcm"
	"github.com/xpanvictor/aria/pkg/io/stt/filter"
	"github.com/xpanvictor/aria/pkg/io/stt/segmenter"
)

// Run reads frames until the segmenter releases, the input ends, the
// context is cancelled or the device fails. Every non-accepted outcome comes
// with an error naming why: ErrSegmentTooShort and ErrSegmentTooQuiet are
// safe to re-arm on. ErrNoSpeech means the input is exhausted, and
// device.ErrDevice, ErrSink and ErrInternal are failures.
// Partial utterances are discarded on cancellation and device failure.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return s.outcome(KindCancelled), ErrSessionUsed
	}
	s.ran = true
	s.mu.Unlock()
	s.started = time.Now()
	defer s.logTiming()

	spec := s.source.Spec()
	for {
		frame, err := s.source.Next(ctx)
		if err != nil {
			s.count(func(st *Stats) { st.FramesDropped = s.source.Dropped() })
			return s.stop(err)
		}

		cf := pcm.ClassifiedFrame{Frame: frame, Voiced: s.classify(frame, spec.SampleRate)}
		s.count(func(st *Stats) {
			st.FramesRead++
			st.FramesDropped = s.source.Dropped()
			if cf.Voiced {
				st.VoicedFrames++
			}
		})

		ev, err := s.segmenter.Feed(cf)
		if err != nil {
			s.segmenter.Abort()
			s.logger.Errorf("segmenter rejected frame %d: %v", frame.Seq, err)
			return s.outcome(KindInternal), fmt.Errorf("%w: segmenter: %w", ErrInternal, err)
		}
		switch ev {
		case segmenter.EventTriggered:
			s.logger.Infof("speech started at %s", frame.End(spec))
		case segmenter.EventReleased:
			return s.finish(s.segmenter.Utterance())
		}
	}
}

// Stats is a snapshot of the session counters. Safe to call while Run is
// in progress.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// classify never fails the session: a classifier error counts the frame as
// unvoiced.
func (s *Session) classify(frame pcm.Frame, sampleRate int) bool {
	voiced, err := s.classifier.IsSpeech(frame.Data, sampleRate)
	if err == nil {
		return voiced
	}
	s.count(func(st *Stats) { st.ClassifierErrors++ })
	if s.recorder.cfg.WarnFrameErrors {
		s.logger.Warnf("classifier failed on frame %d, treating as unvoiced: %v", frame.Seq, err)
	} else {
		s.logger.Debugf("classifier failed on frame %d, treating as unvoiced: %v", frame.Seq, err)
	}
	return false
}

func (s *Session) stop(err error) (Outcome, error) {
	switch {
	case errors.Is(err, device.ErrEndOfStream):
		if s.segmenter.State() != segmenter.StateTriggered {
			s.segmenter.Abort()
			return s.outcome(KindNoSpeech), ErrNoSpeech
		}
		u, ferr := s.segmenter.Flush()
		if ferr != nil {
			return s.outcome(KindInternal), fmt.Errorf("%w: flush: %w", ErrInternal, ferr)
		}
		s.logger.Debugf("input ended while speech was open, flushing")
		return s.finish(u)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.segmenter.Abort()
		s.logger.Infof("capture cancelled after %d frames", s.Stats().FramesRead)
		return s.outcome(KindCancelled), fmt.Errorf("%w: %w", ErrCancelled, err)

	default:
		s.segmenter.Abort()
		s.logger.Errorf("capture device failed: %v", err)
		return s.outcome(KindDeviceFailed), err
	}
}

func (s *Session) finish(u *segmenter.Utterance) (Outcome, error) {
	v := s.recorder.filter.Evaluate(u)
	out := s.outcome(KindAccepted)
	out.Duration = v.Duration
	out.Audio = u.AudioDuration()
	out.RMS = v.RMS
	out.Ending = u.Ending

	switch v.Result {
	case filter.TooShort:
		out.Kind = KindTooShort
		s.logger.Infof("discarding %s segment (rms %.4f): shorter than %s", v.Duration, v.RMS, s.recorder.cfg.Filter.MinDuration)
		return out, ErrSegmentTooShort
	case filter.TooQuiet:
		out.Kind = KindTooQuiet
		s.logger.Infof("discarding %s segment: rms %.4f below %.4f", v.Duration, v.RMS, s.recorder.cfg.Filter.MinRMS)
		return out, ErrSegmentTooQuiet
	}

	if err := s.recorder.sink.Write(s.path, v.PCM, u.Spec.SampleRate); err != nil {
		out.Kind = KindSinkFailed
		s.logger.Errorf("failed to write utterance: %v", err)
		if errors.Is(err, ErrSink) {
			return out, err
		}
		return out, fmt.Errorf("%w: %w", ErrSink, err)
	}

	out.Path = s.path
	out.PCM = v.PCM
	s.logger.Infof("utterance saved to %s (%s, %d frames, rms %.4f, ended by %s)",
		s.path, v.Duration, len(u.Frames), v.RMS, u.Ending)
	return out, nil
}

func (s *Session) outcome(kind Kind) Outcome {
	return Outcome{
		SessionID:  s.id,
		Kind:       kind,
		SampleRate: s.source.Spec().SampleRate,
		Stats:      s.Stats(),
	}
}

func (s *Session) logTiming() {
	if !s.recorder.cfg.LogTiming {
		return
	}
	st := s.Stats()
	s.logger.Infof("session took %s wall clock, %d frames read, %d dropped, %d classifier errors",
		time.Since(s.started), st.FramesRead, st.FramesDropped, st.ClassifierErrors)
}
