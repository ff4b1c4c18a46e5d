package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already-exists error, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Export source: directory")
	requireContains(t, out, "Run history: yes")
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[export]\nsource = \"carrier-pigeon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStatusReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Renderer")
	requireContains(t, out, "Tesseract")
	requireContains(t, out, "Recognition engine")
	requireContains(t, out, "Export source directory")
	requireContains(t, out, "no usable API key")
	requireContains(t, out, "Summary:")
}

func TestRunDirectoryImportWithoutKey(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Export.SourceDir, "Broken.pdf"), []byte("not really a pdf"))

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, stage := range []string{"acquire", "normalize", "recognition", "submission"} {
		requireContains(t, out, stage)
	}
	requireContains(t, out, "credential invalid")
	requireContains(t, out, "Markdown notes")

	text := testsupport.ReadFile(t, filepath.Join(env.cfg.Paths.OutputDir, "text", "Broken.txt"))
	requireContains(t, text, "could not be rasterized")

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, env.cfg.Paths.OutputDir)
}

func TestRunOutputDirFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	override := filepath.Join(env.baseDir, "elsewhere")

	out, _, err := runCLI(t, []string{"run", "--output-dir", override}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, override)
	for _, dir := range []string{"images", "text", "claude_responses"} {
		if _, err := os.Stat(filepath.Join(override, dir)); err != nil {
			t.Fatalf("expected %s under override: %v", dir, err)
		}
	}
}

func TestRunFailsWhenSourceMissing(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"run", "--source-dir", filepath.Join(env.baseDir, "missing")}, env.configPath)
	if err == nil {
		t.Fatal("expected acquisition failure to fail the command")
	}
}

func TestRunRejectsBothPromptFlags(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"run", "--prompt", "x", "--prompt-file", "y"}, env.configPath)
	if err == nil {
		t.Fatal("expected mutually exclusive flag error")
	}
}

func TestHistoryEmptyAndMissingRun(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	if _, _, err := runCLI(t, []string{"history", "no-such-run"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutHistory())

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "disabled")
}
