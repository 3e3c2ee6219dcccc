package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xpanvictor/aria/internal/domains/capture"
	"github.com/xpanvictor/aria/pkg/io/pcm"
	"github.com/xpanvictor/aria/pkg/io/stt/vad"
)

// CaptureConfig mirrors the capture.* keys.
type CaptureConfig struct {
	Aggressiveness       int     `mapstructure:"aggressiveness"`
	SampleRateHz         int     `mapstructure:"sample_rate_hz"`
	FrameDurationMs      int     `mapstructure:"frame_duration_ms"`
	PaddingDurationMs    int     `mapstructure:"padding_duration_ms"`
	PostTriggerDurationS float64 `mapstructure:"post_trigger_duration_s"`
	MinRecordDurationS   float64 `mapstructure:"min_record_duration_s"`
	InputDeviceIndex     int     `mapstructure:"input_device_index"`
	TriggerRatio         float64 `mapstructure:"trigger_ratio"`
	ReleaseRatio         float64 `mapstructure:"release_ratio"`
	MinRMS               float64 `mapstructure:"min_rms"`
	MaxUtteranceS        float64 `mapstructure:"max_utterance_s"`
	OutputDir            string  `mapstructure:"output_dir"`
	// Classifier is auto, webrtc or energy.
	Classifier string `mapstructure:"classifier"`
	// Device is portaudio, websocket or wav.
	Device    string `mapstructure:"device"`
	DeviceURL string `mapstructure:"device_url"`
	WavPath   string `mapstructure:"wav_path"`
	WavPaced  bool   `mapstructure:"wav_paced"`
}

const (
	DevicePortAudio = "portaudio"
	DeviceWebsocket = "websocket"
	DeviceWav       = "wav"
)

type DBConfig struct {
	// Driver is mysql or sqlite.
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	// Path is the sqlite file; ":memory:" works too.
	Path     string `mapstructure:"path"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (d DBConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
	// QueueKey is the list accepted utterances are pushed to.
	QueueKey string `mapstructure:"queue_key"`
}

type TranscriberConfig struct {
	// Provider is whisper, openai or none.
	Provider string `mapstructure:"provider"`
	URL      string `mapstructure:"url"`
	Language string `mapstructure:"language"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	TimeoutS int    `mapstructure:"timeout_s"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type Settings struct {
	Env            string            `mapstructure:"env"`
	Debug          bool              `mapstructure:"debug"`
	DebugVADErrors bool              `mapstructure:"debug_vad_errors"`
	DebugTiming    bool              `mapstructure:"debug_timing"`
	Capture        CaptureConfig     `mapstructure:"capture"`
	DB             DBConfig          `mapstructure:"database"`
	Redis          RedisConfig       `mapstructure:"redis"`
	Transcriber    TranscriberConfig `mapstructure:"transcriber"`
	Server         ServerConfig      `mapstructure:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("debug", false)
	v.SetDefault("debug_vad_errors", false)
	v.SetDefault("debug_timing", false)

	v.SetDefault("capture.aggressiveness", 3)
	v.SetDefault("capture.sample_rate_hz", 16000)
	v.SetDefault("capture.frame_duration_ms", 30)
	v.SetDefault("capture.padding_duration_ms", 1500)
	v.SetDefault("capture.post_trigger_duration_s", 2.5)
	v.SetDefault("capture.min_record_duration_s", 1.8)
	v.SetDefault("capture.input_device_index", -1)
	v.SetDefault("capture.trigger_ratio", 0.95)
	v.SetDefault("capture.release_ratio", 0.90)
	v.SetDefault("capture.min_rms", 0.0)
	v.SetDefault("capture.max_utterance_s", 0.0)
	v.SetDefault("capture.output_dir", "recordings")
	v.SetDefault("capture.classifier", string(vad.KindAuto))
	v.SetDefault("capture.device", DevicePortAudio)
	v.SetDefault("capture.device_url", "")
	v.SetDefault("capture.wav_path", "")
	v.SetDefault("capture.wav_paced", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "aria")
	v.SetDefault("database.path", "aria.db")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.pass", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_key", "aria:utterances")

	v.SetDefault("transcriber.provider", "none")
	v.SetDefault("transcriber.url", "http://localhost:9000")
	v.SetDefault("transcriber.language", "en")
	v.SetDefault("transcriber.model", "whisper-1")
	v.SetDefault("transcriber.api_key", "")
	v.SetDefault("transcriber.timeout_s", 60)

	v.SetDefault("server.addr", ":8088")
}

// Load reads .env, then config_<env>.yaml from the working directory, then
// ARIA_* environment variables.
func Load() (*Settings, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit directory for .env and the config file.
// A missing config file is not an error; defaults and env vars still apply.
func LoadFrom(dir string) (*Settings, error) {
	// .env is optional
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config_" + genEnv())
	v.AddConfigPath(dir)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ARIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

func genEnv() string {
	for _, key := range []string{"ARIA_ENV", "ENV"} {
		if env := os.Getenv(key); env != "" {
			return env
		}
	}
	return "dev"
}

// Validate rejects settings the capture pipeline cannot run with.
func (s *Settings) Validate() error {
	c := s.Capture
	switch vad.Kind(c.Classifier) {
	case vad.KindAuto, vad.KindWebRTC, vad.KindEnergy:
	default:
		return fmt.Errorf("config: unknown classifier %q", c.Classifier)
	}
	switch c.Device {
	case DevicePortAudio:
	case DeviceWebsocket:
		if c.DeviceURL == "" {
			return errors.New("config: capture.device_url is required for the websocket device")
		}
	case DeviceWav:
		if c.WavPath == "" {
			return errors.New("config: capture.wav_path is required for the wav device")
		}
	default:
		return fmt.Errorf("config: unknown capture device %q", c.Device)
	}
	if c.PaddingDurationMs <= 0 {
		return fmt.Errorf("config: capture.padding_duration_ms must be positive, got %d", c.PaddingDurationMs)
	}
	switch s.DB.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unknown database driver %q", s.DB.Driver)
	}
	switch s.Transcriber.Provider {
	case "none", "whisper", "openai":
	default:
		return fmt.Errorf("config: unknown transcriber %q", s.Transcriber.Provider)
	}
	if err := s.RecorderConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RecorderConfig translates the capture keys into the capture domain's
// configuration.
func (s *Settings) RecorderConfig() capture.Config {
	c := s.Capture
	cfg := capture.DefaultConfig()

	frame := time.Duration(c.FrameDurationMs) * time.Millisecond
	cfg.Segmenter.Spec = pcm.Spec{SampleRate: c.SampleRateHz, Channels: 1, FrameDuration: frame}
	cfg.Segmenter.Padding = time.Duration(c.PaddingDurationMs) * time.Millisecond
	cfg.Segmenter.TriggerRatio = c.TriggerRatio
	cfg.Segmenter.ReleaseRatio = c.ReleaseRatio
	cfg.Segmenter.PostTrigger = seconds(c.PostTriggerDurationS)
	cfg.Segmenter.MaxUtterance = seconds(c.MaxUtteranceS)

	cfg.Filter.MinDuration = seconds(c.MinRecordDurationS)
	cfg.Filter.MinRMS = c.MinRMS

	cfg.VAD = vad.Config{
		Kind:           vad.Kind(c.Classifier),
		Aggressiveness: c.Aggressiveness,
		SampleRate:     c.SampleRateHz,
		FrameDuration:  frame,
	}

	cfg.DeviceIndex = c.InputDeviceIndex
	cfg.OutputDir = c.OutputDir
	cfg.WarnFrameErrors = s.DebugVADErrors
	cfg.LogTiming = s.DebugTiming
	return cfg
}

func (t TranscriberConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutS) * time.Second
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
