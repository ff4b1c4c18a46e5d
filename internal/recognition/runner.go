package recognition

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/fileutil"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/format"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/textutil"
)

// Artifact is one text file ready for submission.
type Artifact struct {
	Base string
	Path string
	// Placeholder marks text copied from a normalization placeholder.
	Placeholder bool
}

// Result summarizes one recognition pass.
type Result struct {
	Images       int
	Placeholders int
	Recognized   int
	Copied       int
	Failed       int
	Artifacts    []Artifact
	Success      bool
}

// Runner recognizes every page image in the images directory.
type Runner struct {
	engine    Engine
	engineErr error
	imageExts []string
	logger    *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithEngine replaces the configured engine.
func WithEngine(engine Engine) Option {
	return func(r *Runner) {
		r.engine = engine
		r.engineErr = nil
	}
}

// WithExecutor routes the CLI engine through exec. Applies only when the
// configured engine is the tesseract CLI.
func WithExecutor(exec services.Executor) Option {
	return func(r *Runner) {
		if t, ok := r.engine.(*TesseractEngine); ok && exec != nil {
			t.exec = exec
		}
	}
}

// New loads the configured engine. A load failure is kept and reported by
// Run so that placeholders are still copied.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		imageExts: cfg.Export.ImageTypes,
		logger:    logging.NewComponentLogger(logger, "recognition"),
	}
	if len(r.imageExts) == 0 {
		r.imageExts = format.DefaultImageExts
	}
	r.engine, r.engineErr = LoadEngine(cfg, nil)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run copies placeholders and recognizes images from imagesDir into textDir.
// Per-image failures are counted. The error is non-nil only when images
// exist but no engine could be loaded, or the directories are unusable.
func (r *Runner) Run(ctx context.Context, imagesDir, textDir string) (Result, error) {
	logger := logging.WithContext(ctx, r.logger)
	var result Result

	images, placeholders, err := r.scan(imagesDir)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "recognition", "scan images", imagesDir, err)
	}
	result.Images = len(images)
	result.Placeholders = len(placeholders)
	if len(images) == 0 && len(placeholders) == 0 {
		logger.Info("no images or placeholders to recognize", logging.String("images_dir", imagesDir))
		return result, nil
	}
	if err := os.MkdirAll(textDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "recognition", "prepare text dir", textDir, err)
	}

	for _, src := range placeholders {
		name := filepath.Base(src)
		dst := filepath.Join(textDir, name)
		if err := fileutil.CopyFile(src, dst); err != nil {
			result.Failed++
			logging.WarnWithContext(logger, "placeholder copy failed", "placeholder_copy_failed",
				logging.String(logging.FieldArtifact, fileutil.Stem(name)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "document will not be submitted"),
				logging.String(logging.FieldErrorHint, "check permissions on the text directory"),
			)
			continue
		}
		result.Copied++
		result.Artifacts = append(result.Artifacts, Artifact{Base: fileutil.Stem(name), Path: dst, Placeholder: true})
		logger.Info("placeholder copied", logging.String(logging.FieldArtifact, fileutil.Stem(name)))
	}

	var capErr error
	if len(images) > 0 && r.engine == nil {
		capErr = r.engineErr
		if capErr == nil {
			capErr = services.Wrap(services.ErrCapabilityUnavailable, "recognition", "load engine", "no engine configured", nil)
		}
		result.Failed += len(images)
		logging.ErrorWithContext(logger, "recognition engine unavailable", "engine_unavailable",
			logging.Error(capErr),
			logging.Int("images", len(images)),
			logging.String(logging.FieldImpact, "page images are not converted to text"),
			logging.String(logging.FieldErrorHint, "install tesseract or run notesflow status"),
		)
		images = nil
	}

	for _, src := range images {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		base := fileutil.Stem(src)
		artifact, err := r.recognize(ctx, logger, src, filepath.Join(textDir, base+".txt"))
		if err != nil {
			result.Failed++
			logging.WarnWithContext(logger, "recognition failed", "recognition_failed",
				logging.String(logging.FieldArtifact, base),
				logging.String("image", src),
				logging.Error(err),
				logging.String(logging.FieldImpact, "page skipped"),
				logging.String(logging.FieldErrorHint, "check the page image renders correctly"),
			)
			continue
		}
		result.Recognized++
		result.Artifacts = append(result.Artifacts, artifact)
	}

	result.Success = result.Recognized+result.Copied > 0
	logger.Info("recognition complete",
		logging.String(logging.FieldEventType, "recognition_complete"),
		logging.Int("images", result.Images),
		logging.Int("placeholders", result.Placeholders),
		logging.Int("recognized", result.Recognized),
		logging.Int("copied", result.Copied),
		logging.Int("failed", result.Failed),
	)
	return result, capErr
}

func (r *Runner) recognize(ctx context.Context, logger *slog.Logger, src, dst string) (Artifact, error) {
	text, err := r.engine.Recognize(ctx, src)
	if err != nil {
		return Artifact{}, err
	}
	normalized := textutil.NormalizeRecognized(text)
	if err := fileutil.WriteFile(dst, []byte(normalized)); err != nil {
		return Artifact{}, err
	}
	base := fileutil.Stem(dst)
	logger = logger.With(logging.String(logging.FieldArtifact, base))
	if normalized == "" {
		logging.WarnWithContext(logger, "no text recognized", "recognition_empty",
			logging.String("image", src),
			logging.String(logging.FieldImpact, "an empty artifact is submitted"),
			logging.String(logging.FieldErrorHint, "try recognition.profile = \"sparse\""),
		)
	} else {
		logger.Info("text recognized", logging.String("engine", r.engine.Name()), logging.Int("chars", len([]rune(normalized))))
	}
	return Artifact{Base: base, Path: dst}, nil
}

func (r *Runner) scan(dir string) (images, placeholders []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		switch {
		case fileutil.HasExt(name, r.imageExts...):
			images = append(images, path)
		case fileutil.HasExt(name, ".txt"):
			placeholders = append(placeholders, path)
		}
	}
	sort.Strings(images)
	sort.Strings(placeholders)
	return images, placeholders, nil
}
