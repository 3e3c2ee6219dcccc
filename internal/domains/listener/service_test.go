package listener

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/aria/internal/domains/capture"
	"github.com/xpanvictor/aria/pkg/io/device"
	devmock "github.com/xpanvictor/aria/pkg/io/device/mock"
	"github.com/xpanvictor/aria/pkg/io/device/wavfile"
	"github.com/xpanvictor/aria/pkg/io/handoff"
	"github.com/xpanvictor/aria/pkg/io/pcm"
	"github.com/xpanvictor/aria/pkg/io/stt/vad"
	vadmock "github.com/xpanvictor/aria/pkg/io/stt/vad/mock"
	"github.com/xpanvictor/aria/pkg/io/stt/wavsink"
	"github.com/xpanvictor/aria/pkg/io/stt/whisper"
)

var errUnplugged = errors.New("usb unplugged")

func tone(amp int16) []byte {
	samples := make([]int16, pcm.DefaultSpec().FrameSamples())
	for i := range samples {
		samples[i] = amp
	}
	return pcm.Encode(samples)
}

type step struct {
	n    int
	data []byte
	err  error
}

// stream is a device script shared by every session the recorder opens,
// so consecutive sessions see consecutive audio.
func stream(steps ...step) *devmock.Device {
	var pos atomic.Int64
	return &devmock.Device{
		Generate: func(int) ([]byte, error, bool) {
			g := int(pos.Add(1) - 1)
			for _, s := range steps {
				if g < s.n {
					return s.data, s.err, true
				}
				g -= s.n
			}
			return nil, errUnplugged, true
		},
	}
}

var (
	loud   = tone(4000)
	silent = tone(0)
)

func utterance() []step {
	return []step{{20, silent, nil}, {48, loud, nil}, {100, silent, nil}}
}

func newRecorder(t *testing.T, dev device.Device) *capture.Recorder {
	t.Helper()
	cfg := capture.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cls := &vadmock.Classifier{Func: func(f []byte) bool { return pcm.RMS(f) > 0.01 }}
	rec, err := capture.NewRecorder(dev, cfg, nil, capture.WithClassifierFactory(func(vad.Config) (vad.Classifier, error) {
		return cls, nil
	}))
	require.NoError(t, err)
	return rec
}

type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (*whisper.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.texts) {
		return nil, whisper.ErrEmptyTranscript
	}
	return &whisper.Transcript{Text: f.texts[i]}, nil
}

type memLedger struct {
	mu      sync.Mutex
	records []Record
	clears  int
}

func (m *memLedger) Create(r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.records = append(m.records, *r)
	return nil
}

func (m *memLedger) List(limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memLedger) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.clears++
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []handoff.Ready
}

func (p *fakePublisher) Publish(ctx context.Context, msg handoff.Ready) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func waitStopped(t *testing.T, svc ListenerService) Status {
	t.Helper()
	require.Eventually(t, func() bool { return !svc.Status().Running }, 5*time.Second, 5*time.Millisecond)
	return svc.Status()
}

func TestListenOnceDelivers(t *testing.T) {
	ledger := &memLedger{}
	pub := &fakePublisher{}
	svc := New(newRecorder(t, stream(utterance()...)), Deps{
		Transcriber: &fakeTranscriber{texts: []string{"what time is it"}},
		Ledger:      ledger,
		Publisher:   pub,
	}, nil)

	out, rec, err := svc.ListenOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, capture.KindAccepted, out.Kind)
	assert.Equal(t, "what time is it", rec.Transcript)
	assert.Equal(t, out.Path, rec.Path)
	assert.Equal(t, out.SessionID, rec.SessionID)

	require.Len(t, ledger.records, 1)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, rec.ID, pub.msgs[0].ID)
	assert.Equal(t, 16000, pub.msgs[0].SampleRate)
	assert.Equal(t, 2520*time.Millisecond, pub.msgs[0].Duration)

	st := svc.Status()
	assert.Equal(t, 1, st.Accepted)
	assert.Equal(t, rec, st.Last)
}

func TestLoopRearmsThenStopsOnDeviceFailure(t *testing.T) {
	steps := []step{{48, loud, nil}, {17, silent, nil}, {1, nil, io.EOF}}
	steps = append(steps, utterance()...)
	ledger := &memLedger{}
	svc := New(newRecorder(t, stream(steps...)), Deps{Ledger: ledger}, nil)

	require.NoError(t, svc.Start(context.Background()))
	st := waitStopped(t, svc)

	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, 3, st.Sessions)
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 1, st.Accepted)
	assert.Contains(t, st.LastError, "usb unplugged")
	assert.Len(t, ledger.records, 1)
	assert.ErrorIs(t, svc.Stop(), ErrNotRunning)
}

func TestLoopStopsWhenInputEnds(t *testing.T) {
	// every Open replays the same silence, then end of stream
	dev := &devmock.Device{Reads: []devmock.Read{{Data: silent}, {Data: silent}, {Data: silent}, {Err: io.EOF}}}
	svc := New(newRecorder(t, dev), Deps{}, nil)

	require.NoError(t, svc.Start(context.Background()))
	st := waitStopped(t, svc)

	assert.Equal(t, StateStopped, st.State)
	assert.Equal(t, 1, st.Sessions)
	assert.Zero(t, st.Accepted)
	assert.Zero(t, st.Rejected)
	assert.Empty(t, st.LastError)
	assert.Len(t, dev.OpenCalls, 1)
}

func TestLoopDeliversFileOnce(t *testing.T) {
	var audio []byte
	for _, s := range utterance() {
		for i := 0; i < s.n; i++ {
			audio = append(audio, s.data...)
		}
	}
	path := filepath.Join(t.TempDir(), "input.wav")
	require.NoError(t, wavsink.Write(path, audio, wavsink.Mono16(16000)))

	ledger := &memLedger{}
	pub := &fakePublisher{}
	svc := New(newRecorder(t, wavfile.New(path, false)), Deps{Ledger: ledger, Publisher: pub}, nil)

	require.NoError(t, svc.Start(context.Background()))
	st := waitStopped(t, svc)

	// the second session picks up the trailing silence and runs out
	assert.Equal(t, StateStopped, st.State)
	assert.Equal(t, 2, st.Sessions)
	assert.Equal(t, 1, st.Accepted)
	assert.Len(t, ledger.records, 1)
	assert.Len(t, pub.msgs, 1)
}

func TestStartTwiceAndStop(t *testing.T) {
	dev := &devmock.Device{BlockAfterScript: true}
	rec := newRecorder(t, dev)
	svc := New(rec, Deps{}, nil)

	require.NoError(t, svc.Start(context.Background()))
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, svc.Status().Running)
	require.Eventually(t, rec.Busy, time.Second, time.Millisecond)

	// a manual session cannot steal the device
	_, _, err := svc.ListenOnce(context.Background())
	assert.ErrorIs(t, err, capture.ErrSessionActive)

	require.NoError(t, svc.Stop())
	st := svc.Status()
	assert.False(t, st.Running)
	assert.Equal(t, StateStopped, st.State)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 1, dev.Closes())
}

func TestStartOutlivesRequestContext(t *testing.T) {
	dev := &devmock.Device{BlockAfterScript: true}
	svc := New(newRecorder(t, dev), Deps{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Start(ctx))
	cancel()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, svc.Status().Running)
	require.NoError(t, svc.Stop())
}

func TestVoiceCommands(t *testing.T) {
	steps := append(utterance(), utterance()...)
	steps = append(steps, utterance()...)
	ledger := &memLedger{}
	svc := New(newRecorder(t, stream(steps...)), Deps{
		Transcriber: &fakeTranscriber{texts: []string{"note this", "Clear memory, please.", "OK, bye-bye!"}},
		Ledger:      ledger,
	}, nil)

	require.NoError(t, svc.Start(context.Background()))
	st := waitStopped(t, svc)

	assert.Equal(t, StateStopped, st.State)
	assert.Equal(t, 3, st.Accepted)
	assert.Equal(t, 1, ledger.clears)
	recs, err := svc.Utterances(0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "OK, bye-bye!", recs[0].Transcript)
	assert.Equal(t, "Clear memory, please.", recs[1].Transcript)
}

func TestCommandMatching(t *testing.T) {
	assert.True(t, isStopCommand("Goodbye."))
	assert.True(t, isStopCommand("please stop listening now"))
	assert.False(t, isStopCommand("I'm exiting the building"))
	assert.False(t, isStopCommand(""))
	assert.True(t, isClearCommand("CLEAR MEMORY"))
	assert.False(t, isClearCommand("clear memorycard"))
}

func TestLedgerlessService(t *testing.T) {
	svc := New(newRecorder(t, stream()), Deps{}, nil)
	recs, err := svc.Utterances(10)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, svc.ClearUtterances())
}
