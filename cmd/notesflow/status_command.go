package main

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/deps"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/preflight"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/recognition"
)

type statusCheck struct {
	name   string
	kind   statusKind
	detail string
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkLLM bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report external tools, paths, and credential readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			checks := collectStatusChecks(cmd.Context(), cfg, checkLLM)
			rows := make([][]string, 0, len(checks))
			for _, check := range checks {
				rows = append(rows, []string{check.name, renderStatusCell(check.kind, colorize), check.detail})
			}
			fmt.Fprintln(out, renderSectionHeader("notesflow status", colorize))
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil, colorize))
			kind, message := summarizeChecks(checks)
			fmt.Fprintln(out, renderStatusLine("Summary", kind, message, colorize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkLLM, "check-llm", false, "Probe the LLM API with the configured key (spends one request)")
	return cmd
}

func collectStatusChecks(ctx context.Context, cfg *config.Config, checkLLM bool) []statusCheck {
	var checks []statusCheck

	for _, status := range preflight.CheckSystemDeps(cfg) {
		checks = append(checks, dependencyCheck(status))
	}

	if engine, err := recognition.LoadEngine(cfg, nil); err != nil {
		checks = append(checks, statusCheck{name: "Recognition engine", kind: statusError, detail: err.Error()})
	} else {
		checks = append(checks, statusCheck{
			name:   "Recognition engine",
			kind:   statusOK,
			detail: fmt.Sprintf("%s (profile %s)", engine.Name(), cfg.Recognition.Profile),
		})
	}

	for _, result := range preflight.RunAll(ctx, cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		checks = append(checks, statusCheck{name: result.Name, kind: kind, detail: result.Detail})
	}

	checks = append(checks, llmCheck(ctx, cfg, checkLLM))

	historyDetail := "disabled"
	if cfg.History.Enabled {
		historyDetail = cfg.HistoryPath()
	}
	checks = append(checks, statusCheck{name: "Run history", kind: statusInfo, detail: historyDetail})
	return checks
}

func dependencyCheck(status deps.Status) statusCheck {
	if status.Available {
		return statusCheck{name: status.Name, kind: statusOK, detail: fmt.Sprintf("ready (command: %s)", status.Command)}
	}
	detail := strings.TrimSpace(status.Detail)
	if detail == "" {
		detail = "not available"
	}
	if status.Optional {
		return statusCheck{name: status.Name, kind: statusWarn, detail: detail + " (optional)"}
	}
	return statusCheck{name: status.Name, kind: statusError, detail: detail}
}

// llmCheck only spends a request when probe is set. Without a usable key the
// submission stage is skipped, which is a warning rather than an error.
func llmCheck(ctx context.Context, cfg *config.Config, probe bool) statusCheck {
	const name = "LLM API"
	llmCfg := cfg.GetLLM()
	if utf8.RuneCountInString(llmCfg.APIKey) < cfg.LLM.MinKeyLength {
		return statusCheck{name: name, kind: statusWarn, detail: "no usable API key; submission will be skipped"}
	}
	if !probe {
		return statusCheck{name: name, kind: statusInfo, detail: fmt.Sprintf("key configured for %s (use --check-llm to probe)", llmCfg.Model)}
	}
	result := preflight.CheckLLM(ctx, name, llmCfg, cfg.LLM.MinKeyLength)
	if result.Passed {
		return statusCheck{name: name, kind: statusOK, detail: result.Detail}
	}
	return statusCheck{name: name, kind: statusError, detail: result.Detail}
}

func summarizeChecks(checks []statusCheck) (statusKind, string) {
	var failed, warned []string
	for _, check := range checks {
		switch check.kind {
		case statusError:
			failed = append(failed, check.name)
		case statusWarn:
			warned = append(warned, check.name)
		}
	}
	switch {
	case len(failed) > 0:
		return statusError, "not ready: " + strings.Join(failed, ", ")
	case len(warned) > 0:
		return statusWarn, "ready with warnings: " + strings.Join(warned, ", ")
	default:
		return statusOK, "ready"
	}
}
