package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeExport(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeRecognition()
	c.normalizeLLM()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExport() error {
	var err error
	c.Export.Source = strings.ToLower(strings.TrimSpace(c.Export.Source))
	if c.Export.Source == "" {
		c.Export.Source = defaultExportSource
	}
	c.Export.Command = strings.TrimSpace(c.Export.Command)
	if c.Export.Command == "" {
		c.Export.Command = defaultExportCommand
	}
	if c.Export.ScriptPath, err = expandPath(strings.TrimSpace(c.Export.ScriptPath)); err != nil {
		return fmt.Errorf("export.script_path: %w", err)
	}
	if c.Export.SourceDir, err = expandPath(strings.TrimSpace(c.Export.SourceDir)); err != nil {
		return fmt.Errorf("export.source_dir: %w", err)
	}
	c.Export.Folder = strings.TrimSpace(c.Export.Folder)
	if c.Export.TimeoutSeconds <= 0 {
		c.Export.TimeoutSeconds = defaultExportTimeoutSeconds
	}
	types := make([]string, 0, len(c.Export.ImageTypes))
	seen := make(map[string]struct{}, len(c.Export.ImageTypes))
	for _, ext := range c.Export.ImageTypes {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		types = append(types, normalized)
	}
	if len(types) == 0 {
		types = Default().Export.ImageTypes
	}
	c.Export.ImageTypes = types
	return nil
}

func (c *Config) normalizeRender() {
	c.Normalize.Renderer = strings.TrimSpace(c.Normalize.Renderer)
	if c.Normalize.Renderer == "" {
		c.Normalize.Renderer = defaultRenderer
	}
	if c.Normalize.Scale <= 0 {
		c.Normalize.Scale = defaultRenderScale
	}
	if c.Normalize.TimeoutSeconds <= 0 {
		c.Normalize.TimeoutSeconds = defaultRenderTimeoutSeconds
	}
}

func (c *Config) normalizeRecognition() {
	c.Recognition.Engine = strings.ToLower(strings.TrimSpace(c.Recognition.Engine))
	if c.Recognition.Engine == "" {
		c.Recognition.Engine = defaultRecognitionEngine
	}
	c.Recognition.Command = strings.TrimSpace(c.Recognition.Command)
	if c.Recognition.Command == "" {
		c.Recognition.Command = defaultRecognitionCommand
	}
	c.Recognition.Profile = strings.ToLower(strings.TrimSpace(c.Recognition.Profile))
	if c.Recognition.Profile == "" {
		c.Recognition.Profile = defaultRecognitionProfile
	}
	langs := make([]string, 0, len(c.Recognition.Languages))
	for _, lang := range c.Recognition.Languages {
		if normalized := strings.ToLower(strings.TrimSpace(lang)); normalized != "" {
			langs = append(langs, normalized)
		}
	}
	if len(langs) == 0 {
		langs = []string{defaultRecognitionLanguageCode}
	}
	c.Recognition.Languages = langs
	if c.Recognition.TimeoutSeconds <= 0 {
		c.Recognition.TimeoutSeconds = defaultRecognitionTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("NOTESFLOW_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if strings.TrimSpace(c.LLM.Prompt) == "" {
		c.LLM.Prompt = DefaultPrompt
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MinKeyLength <= 0 {
		c.LLM.MinKeyLength = defaultLLMMinKeyLength
	}
	if c.LLM.ProbeMaxTokens <= 0 {
		c.LLM.ProbeMaxTokens = defaultLLMProbeMaxTokens
	}
	if c.LLM.RetryMaxChars <= 0 {
		c.LLM.RetryMaxChars = defaultLLMRetryMaxChars
	}
	if c.LLM.RetryMaxTokens <= 0 {
		c.LLM.RetryMaxTokens = defaultLLMRetryMaxTokens
	}
	if c.LLM.ErrorExcerptChars <= 0 {
		c.LLM.ErrorExcerptChars = defaultLLMErrorExcerptChars
	}
	if c.LLM.PacingSeconds < 0 {
		c.LLM.PacingSeconds = 0
	}
}

func (c *Config) normalizeHistory() error {
	var err error
	if c.History.Path, err = expandPath(strings.TrimSpace(c.History.Path)); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
