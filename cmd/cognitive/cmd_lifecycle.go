package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd, statusCmd)
}

var errNotRunning = errors.New("daemon is not running")

// findDaemon resolves the PID file in dataDir to a live process.
func findDaemon(dataDir string) (*os.Process, error) {
	data, err := os.ReadFile(pidPath(dataDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no PID file in %s", errNotRunning, dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse PID file: %w", err)
	}
	// FindProcess always succeeds on unix; signal 0 probes for existence.
	proc, _ := os.FindProcess(pid)
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return nil, fmt.Errorf("%w: stale PID %d", errNotRunning, pid)
	}
	return proc, nil
}

func signalCmd(use, short string, sig syscall.Signal) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := findDaemon(loadConfig().DataDir)
			if err != nil {
				return err
			}
			if err := proc.Signal(sig); err != nil {
				return fmt.Errorf("send %v to %d: %w", sig, proc.Pid, err)
			}
			fmt.Fprintf(os.Stdout, "Sent %v to daemon (PID %d).\n", sig, proc.Pid)
			return nil
		},
	}
}

var (
	stopCmd    = signalCmd("stop", "Stop the running daemon", syscall.SIGTERM)
	restartCmd = signalCmd("restart", "Re-exec the running daemon with the current binary", syscall.SIGHUP)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is up and answering",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		proc, err := findDaemon(cfg.DataDir)
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 3 * time.Second}
		resp, err := client.Get("http://" + cfg.Server.Addr + "/health")
		if err != nil {
			return fmt.Errorf("daemon PID %d is not answering on %s: %w", proc.Pid, cfg.Server.Addr, err)
		}
		resp.Body.Close()
		fmt.Fprintf(os.Stdout, "running (PID %d) on %s, health %s\n", proc.Pid, cfg.Server.Addr, resp.Status)
		return nil
	},
}
