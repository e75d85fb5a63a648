package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"longbox/internal/app"
	"longbox/internal/pipeline"
)

// newRunCommand executes a pipeline in-process with the assembled service
// graph. When a daemon holds the database lock the run still works because
// SQLite access is shared, but the usual path is running this while the
// daemon is stopped or via the daemon API.
func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		overrides  []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a pipeline once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := pipeline.ParseOverrides(overrides)
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app.App) error {
				params, err := pipeline.DefaultParams(a.Config).WithOverrides(parsed)
				if err != nil {
					return err
				}
				report, runErr := a.Registry.Run(cmd.Context(), args[0], params)
				if runErr != nil && report.RunID == "" {
					return runErr
				}
				if jsonOutput {
					return writeJSON(cmd, reportRow(report))
				}
				printReport(cmd, report)
				if runErr != nil {
					return fmt.Errorf("run finished with status %s", report.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "Override a run parameter (key=value, repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show pipeline run history from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload struct {
				Pipelines []string    `json:"pipelines"`
				History   []reportDTO `json:"history"`
			}
			if err := ctx.apiGet("/api/runs", &payload); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, payload)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pipelines: %s\n", strings.Join(payload.Pipelines, ", "))
			if len(payload.History) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}
			rows := make([][]string, 0, len(payload.History))
			for i := len(payload.History) - 1; i >= 0; i-- {
				h := payload.History[i]
				rows = append(rows, []string{
					h.Pipeline,
					h.Status,
					strconv.Itoa(h.Processed),
					strconv.Itoa(h.Skipped),
					strconv.Itoa(h.Written),
					h.Started,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Pipeline", "Status", "Processed", "Skipped", "Written", "Started"},
				rows, 2, 3, 4))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// reportDTO mirrors the daemon API run payload.
type reportDTO struct {
	RunID     string `json:"runId"`
	Pipeline  string `json:"pipeline"`
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Dropped   int    `json:"dropped"`
	Written   int    `json:"written"`
	Started   string `json:"started"`
	Finished  string `json:"finished"`
	Error     string `json:"error,omitempty"`
}

func reportRow(report pipeline.Report) reportDTO {
	return reportDTO{
		RunID:     report.RunID,
		Pipeline:  report.Pipeline,
		Status:    string(report.Status),
		Processed: report.Processed,
		Skipped:   report.Skipped,
		Dropped:   report.Dropped,
		Written:   report.Written,
		Started:   report.Started.Format("2006-01-02 15:04:05"),
		Finished:  report.Finished.Format("2006-01-02 15:04:05"),
		Error:     report.Error,
	}
}

func printReport(cmd *cobra.Command, report pipeline.Report) {
	rows := [][]string{
		{"Run", report.RunID},
		{"Pipeline", report.Pipeline},
		{"Status", string(report.Status)},
		{"Processed", strconv.Itoa(report.Processed)},
		{"Skipped", strconv.Itoa(report.Skipped)},
		{"Dropped", strconv.Itoa(report.Dropped)},
		{"Written", strconv.Itoa(report.Written)},
		{"Duration", report.Duration().Round(time.Millisecond).String()},
	}
	if report.Error != "" {
		rows = append(rows, []string{"Error", report.Error})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
}
