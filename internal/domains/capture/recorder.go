// Package capture runs capture sessions: one device, one classifier and one
// segmenter per session, strictly sequential from frame read to WAV file.
package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/aria/pkg/Logger"
	"github.com/xpanvictor/aria/pkg/io/device"
	"github.com/xpanvictor/aria/pkg/io/stt/filter"
	"github.com/xpanvictor/aria/pkg/io/stt/segmenter"
	"github.com/xpanvictor/aria/pkg/io/stt/vad"
	"github.com/xpanvictor/aria/pkg/io/stt/wavsink"
)

// Recorder owns a single capture device. At most one Session holds it at a
// time; the holder gives it back with Session.Close.
type Recorder struct {
	cfg         Config
	device      device.Device
	classifiers ClassifierFactory
	sink        Sink
	filter      *filter.Filter
	logger      *Logger.Logger

	// token has capacity one; a session owns the device while it holds it.
	token chan struct{}
}

// Option tunes a Recorder.
type Option func(*Recorder)

// WithClassifierFactory overrides vad.New.
func WithClassifierFactory(f ClassifierFactory) Option {
	return func(r *Recorder) { r.classifiers = f }
}

// WithSink overrides the WAV file sink.
func WithSink(s Sink) Option {
	return func(r *Recorder) { r.sink = s }
}

func NewRecorder(dev device.Device, cfg Config, logger *Logger.Logger, opts ...Option) (*Recorder, error) {
	if dev == nil {
		return nil, errors.New("capture: nil device")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f, err := filter.New(cfg.Filter)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		cfg:         cfg,
		device:      dev,
		classifiers: vad.New,
		sink:        wavsink.Sink{},
		filter:      f,
		logger:      Logger.OrNop(logger).Named("capture"),
		token:       make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Config returns the recorder configuration.
func (r *Recorder) Config() Config {
	return r.cfg
}

// Busy reports whether a session currently holds the device.
func (r *Recorder) Busy() bool {
	return len(r.token) == 1
}

// Begin opens the device and prepares a fresh session. It fails fast with
// ErrSessionActive rather than queueing behind the current holder.
func (r *Recorder) Begin(ctx context.Context) (*Session, error) {
	select {
	case r.token <- struct{}{}:
	default:
		return nil, ErrSessionActive
	}

	s, err := r.open(ctx)
	if err != nil {
		<-r.token
		return nil, err
	}
	return s, nil
}

func (r *Recorder) open(ctx context.Context) (*Session, error) {
	spec := r.cfg.Spec()
	id := uuid.New()
	logger := r.logger.With("session", id.String())

	seg, err := segmenter.New(r.cfg.Segmenter, logger)
	if err != nil {
		return nil, err
	}
	classifier, err := r.classifiers(r.cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("capture: classifier: %w", err)
	}

	params := device.Params{
		DeviceIndex:  r.cfg.DeviceIndex,
		SampleRate:   spec.SampleRate,
		Channels:     1,
		FrameSamples: spec.FrameSamples(),
	}
	handle, err := r.device.Open(ctx, params)
	if err != nil {
		classifier.Close()
		if errors.Is(err, device.ErrDevice) {
			return nil, err
		}
		return nil, &device.Error{Op: "open", Index: r.cfg.DeviceIndex, Err: err}
	}
	logger.Debugf("opened %s (index %d) at %s", r.device.Name(), r.cfg.DeviceIndex, spec)

	return &Session{
		id:         id,
		recorder:   r,
		source:     device.NewSource(handle, spec, logger, device.WithDeviceIndex(r.cfg.DeviceIndex), device.WithDropWarnings(r.cfg.WarnFrameErrors)),
		classifier: classifier,
		segmenter:  seg,
		logger:     logger,
		path:       filepath.Join(r.cfg.OutputDir, fmt.Sprintf("utterance-%s.wav", id)),
	}, nil
}

func (r *Recorder) release() {
	select {
	case <-r.token:
	default:
	}
}

// Session is one pass of the capture loop. It is single-use.
type Session struct {
	id         uuid.UUID
	recorder   *Recorder
	source     *device.Source
	classifier vad.Classifier
	segmenter  *segmenter.Segmenter
	logger     *Logger.Logger
	path       string

	mu        sync.Mutex
	ran       bool
	closeOnce sync.Once
	closeErr  error
	stats     Stats
	started   time.Time
}

// ID is the session identifier, also used in the output file name.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Close releases the device handle, the classifier and the recorder. Safe
// to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.source.Close(), s.classifier.Close())
		s.recorder.release()
	})
	return s.closeErr
}
