//go:build ocr

package recognition

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

type gosseractEngine struct {
	profile Profile
}

func newGosseractEngine(profile Profile) (Engine, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if _, err := client.GetAvailableLanguages(); err != nil {
		return nil, fmt.Errorf("list tessdata languages: %w", err)
	}
	return &gosseractEngine{profile: profile}, nil
}

func (e *gosseractEngine) Name() string { return "gosseract" }

// Recognize uses a fresh client per image; gosseract clients are not safe to
// share across images with different settings.
func (e *gosseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.profile.Languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if e.profile.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(e.profile.PageSegMode)); err != nil {
			return "", fmt.Errorf("set page seg mode: %w", err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
