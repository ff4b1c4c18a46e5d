package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

// Exporter fills targetDir (the output root) with raw documents: raster images
// under images/ and a manifest of non-image document paths. folder narrows the
// export to one notes folder; empty means all.
type Exporter interface {
	Export(ctx context.Context, targetDir, folder string) error
}

// Option configures an exporter.
type Option func(*options)

type options struct {
	exec   services.Executor
	logger *slog.Logger
}

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(o *options) {
		if exec != nil {
			o.exec = exec
		}
	}
}

// WithLogger sets the logger used for export narration.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{exec: services.CommandExecutor{}}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "acquire")
	return o
}

// FromConfig returns the exporter selected by export.source.
func FromConfig(cfg *config.Config, opts ...Option) (Exporter, error) {
	switch cfg.Export.Source {
	case "script":
		timeout := time.Duration(cfg.Export.TimeoutSeconds) * time.Second
		return NewScriptExporter(cfg.Export.Command, cfg.Export.ScriptPath, timeout, opts...), nil
	case "directory":
		return NewDirectoryExporter(cfg.Export.SourceDir, cfg.Export.ImageTypes, opts...), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "acquire", "select exporter",
			fmt.Sprintf("unsupported export source %q", cfg.Export.Source), nil)
	}
}
