package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. A missing LLM credential is
// not an error: the submission stage degrades to a no-op instead.
func (c *Config) Validate() error {
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateNormalize(); err != nil {
		return err
	}
	if err := c.validateRecognition(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Export.Source {
	case "script":
		if strings.TrimSpace(c.Export.ScriptPath) == "" {
			return errors.New("export.script_path must be set when export.source is \"script\"")
		}
	case "directory":
		if strings.TrimSpace(c.Export.SourceDir) == "" {
			return errors.New("export.source_dir must be set when export.source is \"directory\"")
		}
	default:
		return fmt.Errorf("export.source: unsupported value %q (expected script or directory)", c.Export.Source)
	}
	return nil
}

func (c *Config) validateNormalize() error {
	if c.Normalize.Scale > 8 {
		return errors.New("normalize.scale must be between 1 and 8")
	}
	return nil
}

func (c *Config) validateRecognition() error {
	switch c.Recognition.Engine {
	case "tesseract", "gosseract":
	default:
		return fmt.Errorf("recognition.engine: unsupported value %q (expected tesseract or gosseract)", c.Recognition.Engine)
	}
	if c.Recognition.PageSegMode < 0 || c.Recognition.PageSegMode > 13 {
		return errors.New("recognition.page_seg_mode must be between 0 and 13")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if err := ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":     c.LLM.TimeoutSeconds,
		"llm.retry_max_chars":     c.LLM.RetryMaxChars,
		"llm.retry_max_tokens":    c.LLM.RetryMaxTokens,
		"llm.error_excerpt_chars": c.LLM.ErrorExcerptChars,
	}); err != nil {
		return err
	}
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
