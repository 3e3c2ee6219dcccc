package app

import (
	"fmt"

	"github.com/xpanvictor/aria/internal/config"
	"github.com/xpanvictor/aria/pkg/Logger"
	"github.com/xpanvictor/aria/pkg/io/device"
	"github.com/xpanvictor/aria/pkg/io/device/portaudio"
	"github.com/xpanvictor/aria/pkg/io/device/wavfile"
	"github.com/xpanvictor/aria/pkg/io/device/websocket"
	"github.com/xpanvictor/aria/pkg/io/stt/whisper"
)

// NewDevice builds the capture device selected by capture.device.
func NewDevice(cfg config.CaptureConfig) (device.Device, error) {
	switch cfg.Device {
	case config.DevicePortAudio:
		return portaudio.New(), nil
	case config.DeviceWebsocket:
		return websocket.New(cfg.DeviceURL, nil), nil
	case config.DeviceWav:
		return wavfile.New(cfg.WavPath, cfg.WavPaced), nil
	default:
		return nil, fmt.Errorf("unknown capture device %q", cfg.Device)
	}
}

// NewTranscriber builds the transcriber selected by transcriber.provider.
// "none" yields a nil Transcriber; utterances are then saved untranscribed.
func NewTranscriber(cfg config.TranscriberConfig, logger *Logger.Logger) (whisper.Transcriber, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "whisper":
		return whisper.NewHTTPClient(cfg.URL, cfg.Language, cfg.Timeout(), logger), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("transcriber.api_key is required for openai")
		}
		return whisper.NewOpenAI(cfg.APIKey, cfg.Model, cfg.Language), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Provider)
	}
}
