package acquire

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

// ScriptExporter runs the platform export script, e.g.
// `osascript export_notes.scpt <targetDir> [folder]`.
type ScriptExporter struct {
	command string
	script  string
	timeout time.Duration
	exec    services.Executor
	logger  *slog.Logger
}

// NewScriptExporter builds a ScriptExporter. A non-positive timeout disables
// the deadline.
func NewScriptExporter(command, script string, timeout time.Duration, opts ...Option) *ScriptExporter {
	o := buildOptions(opts)
	return &ScriptExporter{
		command: strings.TrimSpace(command),
		script:  strings.TrimSpace(script),
		timeout: timeout,
		exec:    o.exec,
		logger:  o.logger,
	}
}

// Export runs the script and fails on a non-zero exit.
func (e *ScriptExporter) Export(ctx context.Context, targetDir, folder string) error {
	if e.command == "" || e.script == "" {
		return services.Wrap(services.ErrConfiguration, "acquire", "export", "export command or script not configured", nil)
	}
	args := []string{e.script, targetDir}
	if folder = strings.TrimSpace(folder); folder != "" {
		args = append(args, folder)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Info("exporting notes",
		logging.String("command", e.command),
		logging.String("script", e.script),
		logging.String("target_dir", targetDir),
		logging.String("folder", folder),
	)
	err := e.exec.Run(runCtx, e.command, args, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			e.logger.Debug("export output", logging.String("line", line))
		}
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "acquire", "export", "export script failed", err)
	}
	e.logger.Info("notes exported", logging.String(logging.FieldEventType, "export_complete"), logging.String("target_dir", targetDir))
	return nil
}
