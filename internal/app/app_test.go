package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/aria/internal/config"
	"github.com/xpanvictor/aria/internal/database"
	"github.com/xpanvictor/aria/pkg/Logger"
	"github.com/xpanvictor/aria/pkg/io/stt/whisper"
)

func settings(t *testing.T) *config.Settings {
	t.Helper()
	t.Setenv("ENV", "none")
	t.Setenv("ARIA_CAPTURE_DEVICE", "wav")
	t.Setenv("ARIA_CAPTURE_WAV_PATH", "in.wav")
	t.Setenv("ARIA_DATABASE_PATH", filepath.Join(t.TempDir(), "aria.db"))
	cfg, err := config.LoadFrom(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestNewAppWiresLedger(t *testing.T) {
	cfg := settings(t)
	db, err := database.InitDB(cfg)
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))

	a, err := NewApp(cfg, Logger.Nop(), db, nil)
	require.NoError(t, err)
	assert.Equal(t, "wavfile", a.Device.Name())
	assert.NotNil(t, a.Ledger)
	assert.NotNil(t, a.GetServerDependencies().ListenerService)
	assert.False(t, a.ListenerService.Status().Running)

	recs, err := a.ListenerService.Utterances(5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNewAppWithoutStores(t *testing.T) {
	a, err := NewApp(settings(t), Logger.Nop(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Ledger)
}

func TestNewDevice(t *testing.T) {
	for kind, name := range map[string]string{
		config.DevicePortAudio: "portaudio",
		config.DeviceWebsocket: "websocket",
		config.DeviceWav:       "wavfile",
	} {
		dev, err := NewDevice(config.CaptureConfig{Device: kind, DeviceURL: "ws://mic:8000", WavPath: "a.wav"})
		require.NoError(t, err)
		assert.Equal(t, name, dev.Name())
	}
	_, err := NewDevice(config.CaptureConfig{Device: "alsa"})
	assert.Error(t, err)
}

func TestNewTranscriber(t *testing.T) {
	tr, err := NewTranscriber(config.TranscriberConfig{Provider: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = NewTranscriber(config.TranscriberConfig{Provider: "whisper", URL: "http://asr:9000"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &whisper.HTTPClient{}, tr)

	_, err = NewTranscriber(config.TranscriberConfig{Provider: "openai"}, nil)
	assert.Error(t, err)

	tr, err = NewTranscriber(config.TranscriberConfig{Provider: "openai", APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &whisper.OpenAI{}, tr)
}
