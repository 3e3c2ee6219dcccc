package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xpanvictor/aria/internal/app"
	"github.com/xpanvictor/aria/internal/config"
	"github.com/xpanvictor/aria/internal/database"
	"github.com/xpanvictor/aria/internal/domains/capture"
	"github.com/xpanvictor/aria/pkg/Logger"
	"gorm.io/gorm"
)

type listenResult struct {
	Kind       string  `json:"kind"`
	Path       string  `json:"path,omitempty"`
	DurationS  float64 `json:"durationSeconds"`
	RMS        float64 `json:"rms"`
	Ending     string  `json:"ending,omitempty"`
	Transcript string  `json:"transcript,omitempty"`
	Error      string  `json:"error,omitempty"`
	Frames     int     `json:"frames"`
	Dropped    int     `json:"dropped"`
}

func listenCmd() *cobra.Command {
	var (
		from   string
		paced  bool
		noDB   bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Capture one utterance and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if from != "" {
				cfg.Capture.Device = config.DeviceWav
				cfg.Capture.WavPath = from
				cfg.Capture.WavPaced = paced
			}
			if output != "" {
				cfg.Capture.OutputDir = output
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return listen(cmd.Context(), cfg, !noDB)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "read audio from a 16-bit mono WAV file instead of the microphone")
	cmd.Flags().BoolVar(&paced, "paced", false, "with --from, deliver frames in real time")
	cmd.Flags().BoolVar(&noDB, "no-db", false, "do not record the utterance in the ledger")
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory for the WAV file (overrides capture.output_dir)")
	return cmd
}

func listen(parent context.Context, cfg *config.Settings, withDB bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := Logger.New(cfg.Debug)
	defer logger.Sync()

	var db *gorm.DB
	if withDB {
		var err error
		if db, err = database.InitDB(cfg); err != nil {
			return err
		}
		if err := database.MigrateDB(db); err != nil {
			return err
		}
	}

	a, err := app.NewApp(cfg, logger, db, nil)
	if err != nil {
		return err
	}

	out, rec, err := a.ListenerService.ListenOnce(ctx)
	res := listenResult{
		Kind:      string(out.Kind),
		Path:      out.Path,
		DurationS: out.Duration.Seconds(),
		RMS:       out.RMS,
		Frames:    out.Stats.FramesRead,
		Dropped:   out.Stats.FramesDropped,
	}
	if out.Duration > 0 {
		res.Ending = out.Ending.String()
	}
	if rec != nil {
		res.Transcript = rec.Transcript
	}
	if err != nil {
		res.Error = err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(res); encErr != nil {
		return encErr
	}
	// rejected or empty input is a result, already printed above
	if err != nil && !out.Kind.Rearm() && out.Kind != capture.KindNoSpeech {
		return err
	}
	return nil
}
