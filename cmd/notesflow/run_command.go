package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/history"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/pipeline"
)

type runFlags struct {
	outputDir  string
	folder     string
	prompt     string
	promptFile string
	apiKey     string
	sourceDir  string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Export notes, recognize their text, and convert it to markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRunFlags(cfg, flags); err != nil {
				return err
			}
			prompt, err := resolvePrompt(flags.prompt, flags.promptFile)
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}

			var opts []pipeline.Option
			if cfg.History.Enabled {
				store, err := history.Open(cfg.HistoryPath())
				if err != nil {
					return fmt.Errorf("open run history: %w", err)
				}
				defer store.Close()
				opts = append(opts, pipeline.WithRecorder(store))
			}

			summary, runErr := pipeline.New(cfg, logger, opts...).Run(cmd.Context(), pipeline.Options{
				OutputDir: cfg.Paths.OutputDir,
				Folder:    cfg.Export.Folder,
				Prompt:    prompt,
			})
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderRunSummary(summary, shouldColorize(out)))
			return runErr
		},
	}

	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Output root (default from config)")
	cmd.Flags().StringVarP(&flags.folder, "notes-folder", "f", "", "Only export notes from this folder")
	cmd.Flags().StringVar(&flags.prompt, "prompt", "", "Instruction sent ahead of each note's text")
	cmd.Flags().StringVar(&flags.promptFile, "prompt-file", "", "Read the instruction from a file")
	cmd.Flags().StringVar(&flags.apiKey, "api-key", "", "LLM API key (overrides config and environment)")
	cmd.Flags().StringVar(&flags.sourceDir, "source-dir", "", "Import documents from a directory instead of running the export script")
	cmd.MarkFlagsMutuallyExclusive("prompt", "prompt-file")
	return cmd
}

func applyRunFlags(cfg *config.Config, flags runFlags) error {
	if dir := strings.TrimSpace(flags.outputDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("resolve output dir: %w", err)
		}
		cfg.Paths.OutputDir = expanded
	}
	if folder := strings.TrimSpace(flags.folder); folder != "" {
		cfg.Export.Folder = folder
	}
	if key := strings.TrimSpace(flags.apiKey); key != "" {
		cfg.LLM.APIKey = key
	}
	if dir := strings.TrimSpace(flags.sourceDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("resolve source dir: %w", err)
		}
		cfg.Export.Source = "directory"
		cfg.Export.SourceDir = expanded
	}
	return nil
}

func resolvePrompt(prompt, promptFile string) (string, error) {
	if strings.TrimSpace(promptFile) == "" {
		return strings.TrimSpace(prompt), nil
	}
	path, err := config.ExpandPath(strings.TrimSpace(promptFile))
	if err != nil {
		return "", fmt.Errorf("resolve prompt file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return text, nil
}

func renderRunSummary(summary pipeline.Summary, colorize bool) string {
	var b strings.Builder
	b.WriteString(renderSectionHeader("Run summary", colorize))
	b.WriteString("\n")

	rows := make([][]string, 0, len(summary.Stages))
	for _, stage := range summary.Stages {
		rows = append(rows, []string{
			stage.Name,
			renderStatusCell(stageKind(stage), colorize),
			stage.Detail,
			formatDuration(stage.Duration),
		})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"Stage", "Status", "Detail", "Duration"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}, colorize))
		b.WriteString("\n")
	}

	if summary.RunID != "" {
		b.WriteString(renderStatusLine("Run", statusInfo, summary.RunID, colorize) + "\n")
	}
	if summary.OutputDir != "" {
		b.WriteString(renderStatusLine("Output", statusInfo, summary.OutputDir, colorize) + "\n")
	}
	kind := statusOK
	if summary.Markdown() == 0 {
		kind = statusWarn
	}
	b.WriteString(renderStatusLine("Markdown notes", kind, fmt.Sprintf("%d", summary.Markdown()), colorize) + "\n")
	return b.String()
}

func stageKind(stage pipeline.StageOutcome) statusKind {
	switch {
	case !stage.Ran:
		return statusInfo
	case stage.Success && stage.Err == nil:
		return statusOK
	case stage.Success:
		return statusWarn
	default:
		return statusError
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
