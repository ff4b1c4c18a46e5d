package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the output root and auxiliary directories.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Export contains configuration for the document acquisition step.
type Export struct {
	// Source selects the exporter: "script" runs the platform export script,
	// "directory" imports documents from SourceDir.
	Source         string   `toml:"source"`
	Command        string   `toml:"command"`
	ScriptPath     string   `toml:"script_path"`
	SourceDir      string   `toml:"source_dir"`
	Folder         string   `toml:"folder"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	ImageTypes     []string `toml:"image_types"`
}

// Normalize contains configuration for document rasterization.
type Normalize struct {
	Renderer            string `toml:"renderer"`
	Scale               int    `toml:"scale"`
	AlternativeRenderer bool   `toml:"alternative_renderer"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// Recognition contains configuration for the handwriting/OCR engine.
type Recognition struct {
	// Engine selects the recognizer: "tesseract" (CLI) or "gosseract" (cgo, ocr build tag).
	Engine         string   `toml:"engine"`
	Command        string   `toml:"command"`
	Profile        string   `toml:"profile"`
	Languages      []string `toml:"languages"`
	PageSegMode    int      `toml:"page_seg_mode"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// LLM contains the chat-completion connection settings and the submission
// thresholds. The two truncation limits are independent.
type LLM struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	Prompt            string `toml:"prompt"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MinKeyLength      int    `toml:"min_key_length"`
	ProbeMaxTokens    int    `toml:"probe_max_tokens"`
	RetryMaxChars     int    `toml:"retry_max_chars"`
	RetryMaxTokens    int    `toml:"retry_max_tokens"`
	ErrorExcerptChars int    `toml:"error_excerpt_chars"`
	PacingSeconds     int    `toml:"pacing_seconds"`
}

// History contains configuration for the run ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for notesflow.
//
// Configuration sections by subsystem:
//   - Paths: output root, log and state directories
//   - Export: document acquisition (export script or local directory import)
//   - Normalize: document rasterization and fallbacks
//   - Recognition: OCR engine and profile
//   - LLM: chat-completion endpoint, prompt, and submission thresholds
//   - History: SQLite run ledger
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Export      Export      `toml:"export"`
	Normalize   Normalize   `toml:"normalize"`
	Recognition Recognition `toml:"recognition"`
	LLM         LLM         `toml:"llm"`
	History     History     `toml:"history"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/notesflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("notesflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories. The output root and
// its stage directories are owned by the pipeline layout.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RendererBinary returns the rasterizer executable used by the primary renderer.
func (c *Config) RendererBinary() string {
	if strings.TrimSpace(c.Normalize.Renderer) == "" {
		return defaultRenderer
	}
	return c.Normalize.Renderer
}

// RecognitionBinary returns the OCR executable used by the CLI engine.
func (c *Config) RecognitionBinary() string {
	if strings.TrimSpace(c.Recognition.Command) == "" {
		return defaultRecognitionCommand
	}
	return c.Recognition.Command
}

// HistoryPath returns the run ledger database path.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.History.Path) != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.StateDir, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved LLM connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	ProbeMaxTokens int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		ProbeMaxTokens: c.LLM.ProbeMaxTokens,
	}
}
