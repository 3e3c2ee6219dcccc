// Package listener keeps the microphone armed: it runs capture sessions back
// to back and delivers each accepted utterance downstream.
package listener

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/xpanvictor/aria/internal/domains/capture"
	"github.com/xpanvictor/aria/pkg/Logger"
	"github.com/xpanvictor/aria/pkg/io/handoff"
	"github.com/xpanvictor/aria/pkg/io/stt/whisper"
)

// Common errors
var (
	ErrAlreadyRunning = errors.New("listener already running")
	ErrNotRunning     = errors.New("listener not running")
)

// State of the listening loop
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Publisher hands accepted utterances to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, msg handoff.Ready) error
}

// Status is a snapshot of the listener
type Status struct {
	State     State     `json:"state"`
	Running   bool      `json:"running"`
	Sessions  int       `json:"sessions"`
	Accepted  int       `json:"accepted"`
	Rejected  int       `json:"rejected"`
	LastError string    `json:"lastError,omitempty"`
	Last      *Record   `json:"last,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// ListenerService defines the interface for the listening loop
type ListenerService interface {
	Start(ctx context.Context) error
	Stop() error
	Status() Status
	// ListenOnce runs a single capture session and delivers its utterance.
	ListenOnce(ctx context.Context) (capture.Outcome, *Record, error)
	Utterances(limit int) ([]Record, error)
	ClearUtterances() error
}

// Deps groups the optional collaborators; nil members are skipped.
type Deps struct {
	Transcriber whisper.Transcriber
	Ledger      Ledger
	Publisher   Publisher
}

type listenerService struct {
	recorder *capture.Recorder
	deps     Deps
	logger   *Logger.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

func New(recorder *capture.Recorder, deps Deps, logger *Logger.Logger) ListenerService {
	return &listenerService{
		recorder: recorder,
		deps:     deps,
		logger:   Logger.OrNop(logger).Named("listener"),
		status:   Status{State: StateIdle},
	}
}

// Start launches the loop in the background. The loop outlives ctx's
// cancellation but keeps its values; use Stop to end it.
func (s *listenerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.status.Running = true
	s.status.State = StateListening
	s.status.LastError = ""
	s.status.StartedAt = time.Now()

	go s.loop(loopCtx, s.done)
	s.logger.Info("listener started")
	return nil
}

// Stop cancels the running session, discarding any partial utterance, and
// waits for the loop to exit.
func (s *listenerService) Stop() error {
	s.mu.Lock()
	if !s.status.Running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *listenerService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *listenerService) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	final, cause := StateStopped, error(nil)
	defer func() {
		s.mu.Lock()
		s.status.Running = false
		s.status.State = final
		if cause != nil {
			s.status.LastError = cause.Error()
		}
		s.mu.Unlock()
		s.logger.Infof("listener exited (%s)", final)
	}()

	for {
		out, rec, err := s.ListenOnce(ctx)
		switch {
		case err == nil:
			if rec != nil && isStopCommand(rec.Transcript) {
				s.logger.Infof("stop command heard: %q", rec.Transcript)
				return
			}
		case out.Kind.Rearm():
			s.logger.Debugf("re-arming after %s", out.Kind)
		case out.Kind == capture.KindCancelled:
			return
		case out.Kind == capture.KindNoSpeech:
			s.logger.Info("input ended, listener stopping")
			return
		case out.Kind == capture.KindSinkFailed:
			s.setError(err)
		default:
			final, cause = StateFailed, err
			s.logger.Errorf("capture failed, listener stopping: %v", err)
			return
		}
	}
}

// ListenOnce implements ListenerService
func (s *listenerService) ListenOnce(ctx context.Context) (capture.Outcome, *Record, error) {
	sess, err := s.recorder.Begin(ctx)
	if err != nil {
		return capture.Outcome{Kind: capture.KindDeviceFailed}, nil, err
	}
	defer sess.Close()

	out, err := sess.Run(ctx)
	s.count(out, err)
	if err != nil {
		return out, nil, err
	}
	rec := s.deliver(ctx, out)
	return out, rec, nil
}

func (s *listenerService) count(out capture.Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Sessions++
	switch {
	case err == nil:
		s.status.Accepted++
	case out.Kind == capture.KindTooShort || out.Kind == capture.KindTooQuiet:
		s.status.Rejected++
	}
}

func (s *listenerService) setError(err error) {
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()
}

// deliver transcribes, records and publishes an accepted utterance. Failures
// past the WAV file are logged; the utterance stays on disk either way.
func (s *listenerService) deliver(ctx context.Context, out capture.Outcome) *Record {
	rec := &Record{
		SessionID: out.SessionID,
		Path:      out.Path,
		Duration:  out.Duration,
		RMS:       out.RMS,
	}

	if s.deps.Transcriber != nil {
		tr, err := s.deps.Transcriber.Transcribe(ctx, out.Path)
		if err != nil {
			s.logger.Warnf("transcription failed for %s: %v", out.Path, err)
		} else {
			rec.Transcript = tr.Text
			s.logger.Infof("heard: %q", tr.Text)
		}
	}

	if isClearCommand(rec.Transcript) && s.deps.Ledger != nil {
		if err := s.deps.Ledger.Clear(); err != nil {
			s.logger.Errorf("failed to clear utterance memory: %v", err)
		} else {
			s.logger.Info("utterance memory cleared")
		}
	}

	if s.deps.Ledger != nil {
		if err := s.deps.Ledger.Create(rec); err != nil {
			s.logger.Errorf("failed to record utterance: %v", err)
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if s.deps.Publisher != nil {
		msg := handoff.Ready{
			ID:         rec.ID,
			SessionID:  rec.SessionID,
			Path:       rec.Path,
			SampleRate: out.SampleRate,
			Duration:   rec.Duration,
			Transcript: rec.Transcript,
			CreatedAt:  rec.CreatedAt,
		}
		if err := s.deps.Publisher.Publish(ctx, msg); err != nil {
			s.logger.Errorf("failed to hand off utterance: %v", err)
		}
	}

	s.mu.Lock()
	s.status.Last = rec
	s.mu.Unlock()
	return rec
}

// Utterances implements ListenerService
func (s *listenerService) Utterances(limit int) ([]Record, error) {
	if s.deps.Ledger == nil {
		return []Record{}, nil
	}
	return s.deps.Ledger.List(limit)
}

// ClearUtterances implements ListenerService
func (s *listenerService) ClearUtterances() error {
	if s.deps.Ledger == nil {
		return nil
	}
	return s.deps.Ledger.Clear()
}

var stopPhrases = []string{"bye", "goodbye", "bye bye", "exit", "shutdown", "stop listening"}

func isStopCommand(text string) bool {
	words := " " + normalize(text) + " "
	for _, p := range stopPhrases {
		if strings.Contains(words, " "+p+" ") {
			return true
		}
	}
	return false
}

func isClearCommand(text string) bool {
	return strings.Contains(" "+normalize(text)+" ", " clear memory ")
}

// normalize lowercases and collapses everything but letters and digits into
// single spaces.
func normalize(text string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
