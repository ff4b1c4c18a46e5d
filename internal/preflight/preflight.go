package preflight

import (
	"context"
	"path/filepath"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem and export-source checks for the given config.
// The LLM probe is not included because it spends a request; callers opt in
// via CheckLLM.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// The output root may not exist before the first run; its parent must be writable.
	results = append(results, CheckWritableTarget("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	switch cfg.Export.Source {
	case "directory":
		results = append(results, CheckDirectoryAccess("Export source directory", cfg.Export.SourceDir))
	case "script":
		results = append(results, CheckFileReadable("Export script", cfg.Export.ScriptPath))
	}

	if cfg.History.Enabled {
		results = append(results, CheckWritableTarget("History database", filepath.Dir(cfg.HistoryPath())))
	}
	return results
}
