package recognition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/deps"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

// ErrOCRNotEnabled is returned by the gosseract engine in builds without the
// ocr tag.
var ErrOCRNotEnabled = errors.New("gosseract engine not compiled in (rebuild with -tags ocr)")

// Engine recognizes the text of one page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Profile is a named set of recognizer settings.
type Profile struct {
	Name        string
	Languages   []string
	PageSegMode int
}

// builtinProfiles override page segmentation for common note shapes.
// "default" keeps the configured mode.
var builtinProfiles = map[string]int{
	"default":     -1,
	"handwriting": 6,
	"sparse":      11,
	"single-line": 7,
}

// ResolveProfile expands a profile name against the recognition config.
func ResolveProfile(cfg config.Recognition) (Profile, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Profile))
	if name == "" {
		name = "default"
	}
	psm, ok := builtinProfiles[name]
	if !ok {
		return Profile{}, services.Wrap(services.ErrConfiguration, "recognition", "load profile",
			fmt.Sprintf("unknown profile %q", name), nil)
	}
	if psm < 0 {
		psm = cfg.PageSegMode
	}
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return Profile{Name: name, Languages: append([]string(nil), langs...), PageSegMode: psm}, nil
}

// LoadEngine builds the configured engine. A missing binary or a build
// without OCR support yields ErrCapabilityUnavailable.
func LoadEngine(cfg *config.Config, exec services.Executor) (Engine, error) {
	profile, err := ResolveProfile(cfg.Recognition)
	if err != nil {
		return nil, err
	}
	switch cfg.Recognition.Engine {
	case "", "tesseract":
		binary := cfg.RecognitionBinary()
		status := deps.CheckBinaries([]deps.Requirement{{Name: "Tesseract", Command: binary}})
		if missing := deps.Missing(status); len(missing) > 0 {
			return nil, services.Wrap(services.ErrCapabilityUnavailable, "recognition", "load engine", deps.Describe(missing), nil)
		}
		timeout := time.Duration(cfg.Recognition.TimeoutSeconds) * time.Second
		return NewTesseractEngine(binary, profile, timeout, exec), nil
	case "gosseract":
		engine, err := newGosseractEngine(profile)
		if err != nil {
			return nil, services.Wrap(services.ErrCapabilityUnavailable, "recognition", "load engine", "gosseract", err)
		}
		return engine, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "recognition", "load engine",
			fmt.Sprintf("unsupported engine %q", cfg.Recognition.Engine), nil)
	}
}
