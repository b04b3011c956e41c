package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/cognitive/internal/metrics"
	"github.com/user/cognitive/internal/scheduler"
	"github.com/user/cognitive/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cognitive HTTP daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func pidPath(dataDir string) string {
	return filepath.Join(dataDir, "cognitive.pid")
}

func writePIDFile(dataDir string) (string, error) {
	path := pidPath(dataDir)
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	pidFile, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidFile)

	collector := metrics.New()
	detach := collector.Attach(a.client)
	defer detach()

	// Maintenance jobs
	maintenance := &scheduler.Maintenance{
		Provider:  a.provider,
		Threshold: time.Duration(cfg.Cognitive.DowntimeThreshold),
	}
	sched := scheduler.New(maintenance.Jobs(cfg.Maintenance.Schedule)...)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started", "schedule", cfg.Maintenance.Schedule)

	srv := server.New(a.client, a.registry, a.journal, collector.Handler())
	srv.LimitGenerations(cfg.Server.MaxConcurrent)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server started", "listen", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
	}()

	slog.Info("cognitive started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"backends", cfg.BackendNames(),
		"preferences", cfg.Preferences.Backend,
		"actions", len(a.registry.Types()),
		"max_concurrent", cfg.Server.MaxConcurrent,
		"pid_file", pidFile,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-serveErr:
			return fmt.Errorf("http server: %w", err)
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				slog.Info("received SIGHUP, restarting")
				execPath, err := os.Executable()
				if err != nil {
					slog.Error("failed to get executable path", "error", err)
					continue
				}
				// Clean up PID file before re-exec
				os.Remove(pidFile)
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					slog.Error("failed to re-exec", "error", err)
					if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
						slog.Error("failed to re-write PID file", "error", writeErr)
					}
				}
				continue
			}
			slog.Info("shutting down", "signal", sig)
			return nil
		}
	}
}
