package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/history"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/pipeline"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or show the stages of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "Run history is disabled ([history] enabled = false)")
				return nil
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			colorize := shouldColorize(out)
			if len(args) == 1 {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("load run: %w", err)
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				fmt.Fprint(out, renderRunDetail(*run, colorize))
				return nil
			}

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRunList(runs, colorize))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	return cmd
}

func renderRunList(runs []history.Run, colorize bool) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			formatTimestamp(run.StartedAt),
			renderStatusCell(runKind(run.Status), colorize),
			strconv.Itoa(markdownCount(run)),
			run.OutputDir,
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Status", "Notes", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		colorize,
	)
}

func renderRunDetail(run history.Run, colorize bool) string {
	var b strings.Builder
	b.WriteString(renderSectionHeader("Run "+run.ID, colorize) + "\n")
	b.WriteString(renderStatusLine("Status", runKind(run.Status), string(run.Status), colorize) + "\n")
	b.WriteString(renderStatusLine("Started", statusInfo, formatTimestamp(run.StartedAt), colorize) + "\n")
	if !run.FinishedAt.IsZero() {
		b.WriteString(renderStatusLine("Finished", statusInfo, formatTimestamp(run.FinishedAt), colorize) + "\n")
	}
	b.WriteString(renderStatusLine("Output", statusInfo, run.OutputDir, colorize) + "\n")
	if run.Folder != "" {
		b.WriteString(renderStatusLine("Folder", statusInfo, run.Folder, colorize) + "\n")
	}
	if run.Error != "" {
		b.WriteString(renderStatusLine("Error", statusError, run.Error, colorize) + "\n")
	}
	if len(run.Stages) == 0 {
		return b.String()
	}

	rows := make([][]string, 0, len(run.Stages))
	for _, stage := range run.Stages {
		kind := statusOK
		if !stage.Success {
			kind = statusError
		}
		detail := stage.Detail
		if stage.Error != "" {
			detail = strings.TrimSpace(detail + " " + stage.Error)
		}
		rows = append(rows, []string{
			stage.Stage,
			renderStatusCell(kind, colorize),
			strconv.Itoa(stage.Processed),
			strconv.Itoa(stage.Succeeded),
			strconv.Itoa(stage.Failed),
			detail,
		})
	}
	b.WriteString(renderTable(
		[]string{"Stage", "Status", "Processed", "Succeeded", "Failed", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		colorize,
	))
	b.WriteString("\n")
	return b.String()
}

func runKind(status history.RunStatus) statusKind {
	switch status {
	case history.RunCompleted:
		return statusOK
	case history.RunFailed:
		return statusError
	default:
		return statusInfo
	}
}

// markdownCount reads the submission stage's success count.
func markdownCount(run history.Run) int {
	for _, stage := range run.Stages {
		if stage.Stage == pipeline.StageSubmission {
			return stage.Succeeded
		}
	}
	return 0
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
