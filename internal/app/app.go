package app

import (
	"fmt"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/aria/internal/config"
	"github.com/xpanvictor/aria/internal/domains/capture"
	"github.com/xpanvictor/aria/internal/domains/listener"
	utteranceRepo "github.com/xpanvictor/aria/internal/repository/utterance"
	"github.com/xpanvictor/aria/internal/server"
	"github.com/xpanvictor/aria/pkg/Logger"
	"github.com/xpanvictor/aria/pkg/io/device"
	"github.com/xpanvictor/aria/pkg/io/handoff"
	"gorm.io/gorm"
)

// App represents the application with all its dependencies
type App struct {
	Config   *config.Settings
	Logger   *Logger.Logger
	DB       *gorm.DB
	RC       *redis.Client
	Device   device.Device
	Recorder *capture.Recorder
	// services
	Ledger          listener.Ledger
	ListenerService listener.ListenerService
	ServerDeps      server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly
// wired. db and rc may be nil: the ledger and the hand-off queue are then
// left out.
func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		RC:     rc,
	}

	if err := app.setupDependencies(); err != nil {
		return nil, err
	}

	return app, nil
}

// setupDependencies initializes all application dependencies
func (a *App) setupDependencies() error {
	// 1. capture device and recorder
	dev, err := NewDevice(a.Config.Capture)
	if err != nil {
		return err
	}
	a.Device = dev

	a.Recorder, err = capture.NewRecorder(dev, a.Config.RecorderConfig(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to build recorder: %w", err)
	}

	// 2. downstream collaborators
	deps := listener.Deps{}
	deps.Transcriber, err = NewTranscriber(a.Config.Transcriber, a.Logger)
	if err != nil {
		return err
	}
	if a.DB != nil {
		a.Ledger = utteranceRepo.NewGormUtteranceRepo(a.DB)
		deps.Ledger = a.Ledger
	}
	if a.RC != nil {
		deps.Publisher = handoff.New(a.RC, a.Config.Redis.QueueKey)
	}

	// 3. services
	a.ListenerService = listener.New(a.Recorder, deps, a.Logger)
	a.ServerDeps = server.NewServerDependencies(a.ListenerService, a.Logger)

	a.Logger.Infof("capture on %s (index %d), classifier %s, transcriber %s",
		dev.Name(), a.Config.Capture.InputDeviceIndex, a.Config.Capture.Classifier, a.Config.Transcriber.Provider)
	return nil
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}
