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

	"github.com/gatherlab/gatherd/internal/common/config"
	"github.com/gatherlab/gatherd/internal/database"
	"github.com/gatherlab/gatherd/internal/server"
	"github.com/gatherlab/gatherd/internal/session"
	"github.com/gatherlab/gatherd/pkg/helper"
	"github.com/gatherlab/gatherd/pkg/logger"
	"github.com/gatherlab/gatherd/pkg/metrics"
	"github.com/gatherlab/gatherd/pkg/utils"
	"github.com/gatherlab/gatherd/pkg/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gatherd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gatherd version %s\n", version.Get())
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop a running gatherd instance",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, _, err := config.LoadConfig(resolveConfigPath())
			if err != nil {
				fmt.Printf("Failed to load configuration: %v\n", err)
				os.Exit(1)
			}
			if err := utils.SendSignalToPIDFile(helper.GetPIDPath(cfg.Server.PID), syscall.SIGTERM); err != nil {
				fmt.Printf("Failed to stop gatherd: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Sent stop signal to gatherd")
		},
	}

	rootCmd = &cobra.Command{
		Use:   "gatherd",
		Short: "Gatherd social event server",
		Long:  `Gatherd serves the line-based TCP protocol for accounts, friends and scheduled events`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(stopCmd)
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("GATHERD_CONF"); envPath != "" {
		return envPath
	}
	return "configs/gatherd.yaml"
}

func run() {
	cfg, cfgPath, err := config.LoadConfig(resolveConfigPath())
	if err != nil {
		fmt.Printf("Failed to load configuration from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting gatherd",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	if cfg.Server.PID != "" {
		pidPath := helper.GetPIDPath(cfg.Server.PID)
		pidManager := utils.NewPIDManagerFromConfig(pidPath)
		if err := pidManager.WritePID(); err != nil {
			log.Fatal("failed to write PID file",
				zap.String("path", pidPath),
				zap.Error(err))
		}
		defer func() {
			_ = pidManager.RemovePID()
		}()
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("failed to initialize database",
			zap.String("type", cfg.Database.Type),
			zap.Error(err))
	}
	defer db.Close()

	sessions, err := session.NewStore(log, &cfg.Session)
	if err != nil {
		log.Fatal("failed to initialize session store",
			zap.String("type", cfg.Session.Type),
			zap.Error(err))
	}

	m := metrics.New(cfg.Metrics)
	hub := server.NewHub()
	dispatcher := server.NewDispatcher(log, m)
	server.NewHandlers(log, db, sessions, hub, m).RegisterAll(dispatcher)
	srv := server.New(log, &cfg.Server, sessions, dispatcher, hub, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background expiry sweep. The stores also expire lazily on access, so
	// the sweep only bounds how long an abandoned session lingers.
	if cfg.Session.SweepInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Session.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := sessions.SweepExpired(ctx); n > 0 {
						log.Info("expired sessions reclaimed", zap.Int("count", n))
					}
					m.SetActiveSessions(sessions.Count(ctx))
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", zap.Error(err))
		}
	}

	cancel()
	srv.Shutdown()
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info("gatherd stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
