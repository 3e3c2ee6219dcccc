package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xpanvictor/aria/internal/app"
	"github.com/xpanvictor/aria/internal/config"
	"github.com/xpanvictor/aria/internal/database"
	"github.com/xpanvictor/aria/internal/server"
	"github.com/xpanvictor/aria/pkg/Logger"
)

func serveCmd() *cobra.Command {
	var autostart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control API and listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(autostart)
		},
	}
	cmd.Flags().BoolVar(&autostart, "listen", false, "start listening immediately")
	return cmd
}

func serve(autostart bool) error {
	// fetch cfg
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	// load global logger
	logger := Logger.New(cfg.Debug)
	defer logger.Sync()
	logger.Info("Logger initialized")

	// fetch database connection
	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	// handle migrations
	if err := database.MigrateDB(db); err != nil {
		return err
	}
	rc, err := database.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	if rc == nil {
		logger.Warn("redis.addr not set, hand-off queue disabled")
	} else {
		defer rc.Close()
	}

	a, err := app.NewApp(cfg, logger, db, rc)
	if err != nil {
		return err
	}

	// compose router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	server.InitializeRoutes(router, a.GetServerDependencies())

	if autostart {
		if err := a.ListenerService.Start(context.Background()); err != nil {
			return err
		}
	}

	// listen with graceful exit
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router.Handler(),
	}
	go func() {
		logger.Infof("control API listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server exiting %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if a.ListenerService.Status().Running {
		if err := a.ListenerService.Stop(); err != nil {
			logger.Warnf("stop listener: %v", err)
		}
	}

	// 5 secs then cancel
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown err %v", err)
	}
	logger.Info("Shutdown system")
	return nil
}
