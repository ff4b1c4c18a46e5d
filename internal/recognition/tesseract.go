package recognition

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

// TesseractEngine runs the tesseract CLI and reads the text from stdout.
type TesseractEngine struct {
	binary  string
	profile Profile
	timeout time.Duration
	exec    services.Executor
}

// NewTesseractEngine builds a CLI engine.
func NewTesseractEngine(binary string, profile Profile, timeout time.Duration, exec services.Executor) *TesseractEngine {
	if exec == nil {
		exec = services.CommandExecutor{}
	}
	return &TesseractEngine{binary: binary, profile: profile, timeout: timeout, exec: exec}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	args := []string{imagePath, "stdout", "-l", strings.Join(e.profile.Languages, "+")}
	if e.profile.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(e.profile.PageSegMode))
	}
	var out strings.Builder
	err := e.exec.Run(ctx, e.binary, args, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
