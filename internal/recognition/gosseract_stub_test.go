//go:build !ocr

package recognition_test

import (
	"errors"
	"testing"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/recognition"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

func TestLoadEngineGosseractWithoutTag(t *testing.T) {
	cfg := config.Default()
	cfg.Recognition.Engine = "gosseract"
	_, err := recognition.LoadEngine(&cfg, nil)
	if !errors.Is(err, services.ErrCapabilityUnavailable) || !errors.Is(err, recognition.ErrOCRNotEnabled) {
		t.Fatalf("expected capability error wrapping ErrOCRNotEnabled, got %v", err)
	}
}
