package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"longbox/internal/app"
	"longbox/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon",
	}
	cmd.AddCommand(newDaemonStartCommand(ctx))
	cmd.AddCommand(newDaemonStopCommand(ctx))
	cmd.AddCommand(newDaemonStatusCommand(ctx))
	return cmd
}

// newDaemonStartCommand runs the daemon in the foreground until a signal
// arrives or a remote stop request lands on the API.
func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Path:   filepath.Join(cfg.Paths.LogDir, "longboxd.log"),
			})
			if err != nil {
				return err
			}

			a, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.NewDaemon()
			if err != nil {
				return err
			}
			if err := d.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daemon started (pid %d)\n", os.Getpid())

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(signals)

			select {
			case <-signals:
				d.Stop()
			case <-d.Done():
				// Stopped remotely via the API.
			case <-cmd.Context().Done():
				d.Stop()
			}
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Status string `json:"status"`
			}
			if err := ctx.apiPost("/api/stop", &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "daemon stopping")
			return nil
		},
	}
}

type daemonStatusPayload struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid"`
	DatabasePath string   `json:"databasePath"`
	LockFilePath string   `json:"lockFilePath"`
	Pipelines    []string `json:"pipelines"`
	Library      struct {
		Total       int `json:"Total"`
		Unprocessed int `json:"Unprocessed"`
		Processing  int `json:"Processing"`
		Stable      int `json:"Stable"`
		Scraped     int `json:"Scraped"`
		Purging     int `json:"Purging"`
		Removed     int `json:"Removed"`
	} `json:"library"`
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status daemonStatusPayload
			if err := ctx.apiGet("/api/status", &status); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			rows := [][]string{
				{"Running", yesNo(status.Running)},
				{"PID", strconv.Itoa(status.PID)},
				{"Database", status.DatabasePath},
				{"Lock file", status.LockFilePath},
				{"Comics", strconv.Itoa(status.Library.Total)},
				{"Unprocessed", strconv.Itoa(status.Library.Unprocessed)},
				{"Stable", strconv.Itoa(status.Library.Stable)},
				{"Scraped", strconv.Itoa(status.Library.Scraped)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
