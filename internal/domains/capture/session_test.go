package capture

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/aria/pkg/io/device"
	devmock "github.com/xpanvictor/aria/pkg/io/device/mock"
	"github.com/xpanvictor/aria/pkg/io/pcm"
	"github.com/xpanvictor/aria/pkg/io/stt/segmenter"
	"github.com/xpanvictor/aria/pkg/io/stt/vad"
	vadmock "github.com/xpanvictor/aria/pkg/io/stt/vad/mock"
	"github.com/xpanvictor/aria/pkg/io/stt/wavsink"
)

var (
	spec   = pcm.DefaultSpec()
	loud   = tone(4000)
	silent = tone(0)
)

func tone(amp int16) []byte {
	samples := make([]int16, spec.FrameSamples())
	for i := range samples {
		samples[i] = amp
	}
	return pcm.Encode(samples)
}

type run struct {
	n      int
	voiced bool
}

func pattern(runs ...run) []bool {
	var out []bool
	for _, r := range runs {
		for i := 0; i < r.n; i++ {
			out = append(out, r.voiced)
		}
	}
	return out
}

// scripted plays the pattern and then reports end of stream.
func scripted(p []bool) *devmock.Device {
	return &devmock.Device{
		Generate: func(i int) ([]byte, error, bool) {
			if i >= len(p) {
				return nil, nil, false
			}
			if p[i] {
				return loud, nil, true
			}
			return silent, nil, true
		},
	}
}

func energyClassifier() *vadmock.Classifier {
	return &vadmock.Classifier{Func: func(f []byte) bool { return pcm.RMS(f) > 0.01 }}
}

func newRecorder(t *testing.T, dev device.Device, cls vad.Classifier, mutate func(*Config), opts ...Option) (*Recorder, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = dir
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithClassifierFactory(func(vad.Config) (vad.Classifier, error) { return cls, nil })}, opts...)
	rec, err := NewRecorder(dev, cfg, nil, opts...)
	require.NoError(t, err)
	return rec, dir
}

func runOnce(t *testing.T, rec *Recorder, ctx context.Context) (Outcome, error) {
	t.Helper()
	sess, err := rec.Begin(ctx)
	require.NoError(t, err)
	defer sess.Close()
	return sess.Run(ctx)
}

func assertNoFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessionAcceptsUtterance(t *testing.T) {
	dev := scripted(pattern(run{20, false}, run{48, true}, run{100, false}))
	rec, _ := newRecorder(t, dev, energyClassifier(), nil)

	out, err := runOnce(t, rec, context.Background())
	require.NoError(t, err)

	assert.Equal(t, KindAccepted, out.Kind)
	assert.Equal(t, segmenter.EndedBySilence, out.Ending)
	assert.Equal(t, 2520*time.Millisecond, out.Duration)
	assert.Equal(t, 134*30*time.Millisecond, out.Audio)
	assert.Equal(t, 16000, out.SampleRate)
	assert.Equal(t, Stats{FramesRead: 152, VoicedFrames: 48}, out.Stats)
	assert.Greater(t, out.RMS, 0.0)

	f, err := os.Open(out.Path)
	require.NoError(t, err)
	defer f.Close()
	format, data, err := wavsink.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, wavsink.Mono16(16000), format)
	assert.Equal(t, out.PCM, data)
	assert.Len(t, data, 134*spec.FrameBytes())

	// Lookback starts at frame 18: two silent frames, then the burst
	assert.Equal(t, silent, data[:spec.FrameBytes()])
	assert.Equal(t, loud, data[2*spec.FrameBytes():3*spec.FrameBytes()])

	require.Len(t, dev.OpenCalls, 1)
	assert.Equal(t, device.Params{DeviceIndex: -1, SampleRate: 16000, Channels: 1, FrameSamples: 480}, dev.OpenCalls[0])
	assert.Equal(t, 1, dev.Closes())
}

func TestSessionShortBurstEndedByStream(t *testing.T) {
	dev := scripted(pattern(run{20, false}, run{48, true}, run{17, false}))
	rec, dir := newRecorder(t, dev, energyClassifier(), nil)

	out, err := runOnce(t, rec, context.Background())
	assert.ErrorIs(t, err, ErrSegmentTooShort)
	assert.Equal(t, KindTooShort, out.Kind)
	assert.True(t, out.Kind.Rearm())
	assert.Equal(t, segmenter.EndedByStream, out.Ending)
	assert.Equal(t, 510*time.Millisecond, out.Duration)
	assert.Empty(t, out.Path)
	assert.Nil(t, out.PCM)
	assertNoFiles(t, dir)
}

func TestSessionShortBurstWithLowFloor(t *testing.T) {
	dev := scripted(pattern(run{48, true}, run{200, false}))
	rec, dir := newRecorder(t, dev, energyClassifier(), func(c *Config) {
		c.Segmenter.PostTrigger = time.Second
	})

	out, err := runOnce(t, rec, context.Background())
	assert.ErrorIs(t, err, ErrSegmentTooShort)
	assert.Equal(t, segmenter.EndedBySilence, out.Ending)
	assert.Equal(t, 1380*time.Millisecond, out.Duration)
	assertNoFiles(t, dir)
}

func TestSessionTooQuiet(t *testing.T) {
	dev := scripted(pattern(run{48, true}, run{100, false}))
	rec, dir := newRecorder(t, dev, energyClassifier(), func(c *Config) {
		c.Filter.MinRMS = 0.5
	})

	out, err := runOnce(t, rec, context.Background())
	assert.ErrorIs(t, err, ErrSegmentTooQuiet)
	assert.Equal(t, KindTooQuiet, out.Kind)
	assertNoFiles(t, dir)
}

func TestSessionDeviceFailureDiscards(t *testing.T) {
	unplugged := errors.New("usb unplugged")
	dev := &devmock.Device{
		Generate: func(i int) ([]byte, error, bool) {
			if i == 90 {
				return nil, unplugged, true
			}
			return loud, nil, true
		},
	}
	rec, dir := newRecorder(t, dev, energyClassifier(), nil)

	out, err := runOnce(t, rec, context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrDevice)
	assert.ErrorIs(t, err, unplugged)
	assert.Equal(t, KindDeviceFailed, out.Kind)
	assert.False(t, out.Kind.Rearm())
	assert.Nil(t, out.PCM)
	assert.Equal(t, 90, out.Stats.FramesRead)
	assertNoFiles(t, dir)
	assert.False(t, rec.Busy())
}

func TestSessionOpenFailure(t *testing.T) {
	dev := &devmock.Device{OpenErr: errors.New("no such device")}
	cls := energyClassifier()
	rec, _ := newRecorder(t, dev, cls, nil)

	_, err := rec.Begin(context.Background())
	assert.ErrorIs(t, err, device.ErrDevice)
	assert.True(t, cls.Closed)
	assert.False(t, rec.Busy())
}

func TestSessionCountsDroppedFrames(t *testing.T) {
	p := pattern(run{20, false}, run{2, false}, run{48, true}, run{100, false})
	dev := &devmock.Device{
		Generate: func(i int) ([]byte, error, bool) {
			switch {
			case i == 20 || i == 21:
				return make([]byte, 100), nil, true
			case i >= len(p):
				return nil, nil, false
			case p[i]:
				return loud, nil, true
			}
			return silent, nil, true
		},
	}
	rec, _ := newRecorder(t, dev, energyClassifier(), nil)

	out, err := runOnce(t, rec, context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{FramesRead: 152, FramesDropped: 2, VoicedFrames: 48}, out.Stats)
}

func TestSessionClassifierErrorsAreUnvoiced(t *testing.T) {
	dev := scripted(pattern(run{20, false}, run{60, true}, run{100, false}))
	cls := energyClassifier()
	cls.Errs = map[int]error{25: vad.ErrClassifier, 26: vad.ErrClassifier}
	rec, _ := newRecorder(t, dev, cls, nil)

	out, err := runOnce(t, rec, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Stats.ClassifierErrors)
	assert.Equal(t, 58, out.Stats.VoicedFrames)
	// trigger slips to frame 69, release 84 frames later
	assert.Equal(t, 154, out.Stats.FramesRead)
	assert.True(t, cls.Closed)
}

func TestSessionCancelDiscards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dev := &devmock.Device{
		Generate: func(i int) ([]byte, error, bool) {
			if i == 70 {
				cancel()
			}
			return loud, nil, true
		},
	}
	rec, dir := newRecorder(t, dev, energyClassifier(), nil)

	out, err := runOnce(t, rec, ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCancelled, out.Kind)
	assert.Nil(t, out.PCM)
	assertNoFiles(t, dir)
}

func TestSessionNoSpeech(t *testing.T) {
	rec, dir := newRecorder(t, scripted(pattern(run{30, false})), energyClassifier(), nil)

	out, err := runOnce(t, rec, context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)
	assert.Equal(t, KindNoSpeech, out.Kind)
	assert.False(t, out.Kind.Rearm())
	assertNoFiles(t, dir)
}

func TestSegmenterFaultIsInternal(t *testing.T) {
	rec, dir := newRecorder(t, scripted(pattern(run{10, false})), energyClassifier(), nil)

	sess, err := rec.Begin(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	// 20 ms ring records cannot hold the 30 ms frames the source delivers
	cfg := segmenter.DefaultConfig()
	cfg.Spec.FrameDuration = 20 * time.Millisecond
	cfg.Padding = 1000 * time.Millisecond
	seg, err := segmenter.New(cfg, nil)
	require.NoError(t, err)
	sess.segmenter = seg

	out, err := sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrInternal)
	assert.NotErrorIs(t, err, device.ErrDevice)
	assert.Equal(t, KindInternal, out.Kind)
	assert.False(t, out.Kind.Rearm())
	assert.Equal(t, 1, out.Stats.FramesRead)
	assertNoFiles(t, dir)
}

func TestRearmKinds(t *testing.T) {
	for _, k := range []Kind{KindTooShort, KindTooQuiet} {
		assert.True(t, k.Rearm(), k)
	}
	for _, k := range []Kind{KindAccepted, KindNoSpeech, KindCancelled, KindDeviceFailed, KindSinkFailed, KindInternal} {
		assert.False(t, k.Rearm(), k)
	}
}

type failingSink struct{}

func (failingSink) Write(string, []byte, int) error { return errors.New("disk full") }

func TestSessionSinkFailure(t *testing.T) {
	dev := scripted(pattern(run{48, true}, run{100, false}))
	rec, _ := newRecorder(t, dev, energyClassifier(), nil, WithSink(failingSink{}))

	out, err := runOnce(t, rec, context.Background())
	assert.ErrorIs(t, err, ErrSink)
	assert.Equal(t, KindSinkFailed, out.Kind)
	assert.Empty(t, out.Path)
}

func TestRecorderOwnsDeviceExclusively(t *testing.T) {
	dev := &devmock.Device{BlockAfterScript: true}
	rec, _ := newRecorder(t, dev, energyClassifier(), nil)
	ctx := context.Background()

	first, err := rec.Begin(ctx)
	require.NoError(t, err)
	assert.True(t, rec.Busy())

	_, err = rec.Begin(ctx)
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Len(t, dev.OpenCalls, 1)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())
	assert.False(t, rec.Busy())

	second, err := rec.Begin(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
	second.Close()
}

func TestSessionRunsOnce(t *testing.T) {
	rec, _ := newRecorder(t, scripted(nil), energyClassifier(), nil)
	sess, err := rec.Begin(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)
	_, err = sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrSessionUsed)
}

func TestConfigRejectsMismatchedClassifier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VAD.SampleRate = 8000
	_, err := NewRecorder(&devmock.Device{}, cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.VAD.Kind = "silero"
	_, err = NewRecorder(&devmock.Device{}, cfg, nil)
	assert.ErrorContains(t, err, "unknown classifier kind")
}
