package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/acquire"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/history"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/layout"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/normalize"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/recognition"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/submission"
)

// ErrLocked is returned when another run holds the output root.
var ErrLocked = errors.New("output directory is in use by another run")

// Stage names used in logs, summaries, and the run ledger.
const (
	StageSetup       = "setup"
	StageAcquire     = "acquire"
	StageNormalize   = "normalize"
	StageRecognition = "recognition"
	StageSubmission  = "submission"
)

// Normalizer is the contract of the normalize stage.
type Normalizer interface {
	Run(ctx context.Context, manifestPath, imagesDir string) (normalize.Result, error)
}

// Recognizer is the contract of the recognition stage.
type Recognizer interface {
	Run(ctx context.Context, imagesDir, textDir string) (recognition.Result, error)
}

// Submitter is the contract of the submission stage.
type Submitter interface {
	Run(ctx context.Context, out layout.Layout) (submission.Result, error)
}

// Recorder receives run and stage outcomes. *history.Store satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, run history.Run) error
	RecordStage(ctx context.Context, rec history.StageRecord) error
	FinishRun(ctx context.Context, id string, runErr error) error
}

// Options are the per-invocation inputs.
type Options struct {
	OutputDir string
	Folder    string
	Prompt    string
	RunID     string
}

// Option replaces a stage implementation.
type Option func(*Pipeline)

func WithExporter(e acquire.Exporter) Option { return func(p *Pipeline) { p.exporter = e } }
func WithNormalizer(n Normalizer) Option     { return func(p *Pipeline) { p.normalizer = n } }
func WithRecognizer(r Recognizer) Option     { return func(p *Pipeline) { p.recognizer = r } }
func WithSubmitter(s Submitter) Option       { return func(p *Pipeline) { p.submitter = s } }

// WithRecorder records every run in the ledger.
func WithRecorder(r Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// Pipeline runs acquisition, normalization, recognition, and submission in
// order over one output root.
type Pipeline struct {
	cfg        *config.Config
	base       *slog.Logger
	logger     *slog.Logger
	exporter   acquire.Exporter
	normalizer Normalizer
	recognizer Recognizer
	submitter  Submitter
	recorder   Recorder
}

// New builds a pipeline. Stages not replaced through options are built from
// cfg at the start of each run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{cfg: cfg, base: logger, logger: logging.NewComponentLogger(logger, "pipeline")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pass. Only setup, lock, and acquisition failures are
// returned as errors; later stages degrade softly and are reported in the
// Summary.
func (p *Pipeline) Run(ctx context.Context, opts Options) (summary Summary, err error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)
	summary = Summary{RunID: runID, StartedAt: time.Now()}

	outputDir := strings.TrimSpace(opts.OutputDir)
	if outputDir == "" {
		outputDir = p.cfg.Paths.OutputDir
	}
	folder := strings.TrimSpace(opts.Folder)
	if folder == "" {
		folder = p.cfg.Export.Folder
	}

	out, err := layout.New(outputDir)
	if err == nil {
		err = out.Ensure()
	}
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, StageSetup, "prepare output", outputDir, err)
	}
	summary.OutputDir = out.Root

	lock := flock.New(out.Lock)
	locked, err := lock.TryLock()
	if err != nil {
		return summary, services.Wrap(services.ErrExternalTool, StageSetup, "acquire lock", out.Lock, err)
	}
	if !locked {
		return summary, services.Wrap(services.ErrValidation, StageSetup, "acquire lock", out.Root, ErrLocked)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("failed to release output lock", logging.Error(unlockErr))
		}
	}()

	p.startRun(ctx, logger, history.Run{ID: runID, StartedAt: summary.StartedAt, OutputDir: out.Root, Folder: folder})
	defer func() {
		summary.FinishedAt = time.Now()
		p.finishRun(ctx, logger, runID, err)
	}()

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("output_dir", out.Root),
		logging.String("folder", folder),
	)

	if err = p.acquire(ctx, out, folder, &summary); err != nil {
		return summary, err
	}
	if err = ctx.Err(); err != nil {
		return summary, err
	}
	p.normalize(ctx, out, &summary)
	if err = ctx.Err(); err != nil {
		return summary, err
	}
	p.recognize(ctx, out, &summary)
	if err = ctx.Err(); err != nil {
		return summary, err
	}
	p.submit(ctx, out, opts.Prompt, &summary)
	if err = ctx.Err(); err != nil {
		return summary, err
	}

	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("output_dir", out.Root),
		logging.Duration("elapsed", time.Since(summary.StartedAt)),
	)
	return summary, nil
}

func (p *Pipeline) acquire(ctx context.Context, out layout.Layout, folder string, summary *Summary) error {
	ctx = services.WithStage(ctx, StageAcquire)
	started := time.Now()
	exporter := p.exporter
	var err error
	if exporter == nil {
		exporter, err = acquire.FromConfig(p.cfg, acquire.WithLogger(p.base))
	}
	if err == nil {
		err = exporter.Export(ctx, out.Root, folder)
	}
	outcome := StageOutcome{Name: StageAcquire, Ran: true, Success: err == nil, Err: err, Duration: time.Since(started)}
	summary.add(outcome)
	p.record(ctx, outcome, 0, 0, 0)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, p.logger), "acquisition failed", "acquire_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run aborted before any document was processed"),
			logging.String(logging.FieldErrorHint, "check export settings with notesflow status"),
		)
		return err
	}
	return nil
}

func (p *Pipeline) normalize(ctx context.Context, out layout.Layout, summary *Summary) {
	ctx = services.WithStage(ctx, StageNormalize)
	logger := logging.WithContext(ctx, p.logger)
	if !out.ManifestExists() {
		logger.Info("no document manifest, skipping normalization")
		summary.add(StageOutcome{Name: StageNormalize, Detail: "no manifest"})
		return
	}
	normalizer := p.normalizer
	if normalizer == nil {
		normalizer = normalize.New(p.cfg, p.base)
	}
	started := time.Now()
	result, err := normalizer.Run(ctx, out.Manifest, out.Images)
	summary.Normalize = &result
	outcome := StageOutcome{
		Name:     StageNormalize,
		Ran:      true,
		Success:  result.Success,
		Err:      err,
		Duration: time.Since(started),
		Detail:   fmt.Sprintf("%d rendered, %d placeholders, %d pages", result.Rendered, result.Placeholders, result.Pages),
	}
	summary.add(outcome)
	p.record(ctx, outcome, result.Documents, result.Rendered, result.Failed+result.Missing)
	p.reportSoftError(logger, StageNormalize, err)
}

func (p *Pipeline) recognize(ctx context.Context, out layout.Layout, summary *Summary) {
	ctx = services.WithStage(ctx, StageRecognition)
	logger := logging.WithContext(ctx, p.logger)
	recognizer := p.recognizer
	if recognizer == nil {
		recognizer = recognition.New(p.cfg, p.base)
	}
	started := time.Now()
	result, err := recognizer.Run(ctx, out.Images, out.Text)
	summary.Recognition = &result
	outcome := StageOutcome{
		Name:     StageRecognition,
		Ran:      true,
		Success:  result.Success,
		Err:      err,
		Duration: time.Since(started),
		Detail:   fmt.Sprintf("%d recognized, %d copied", result.Recognized, result.Copied),
	}
	summary.add(outcome)
	p.record(ctx, outcome, result.Images+result.Placeholders, result.Recognized+result.Copied, result.Failed)
	p.reportSoftError(logger, StageRecognition, err)
}

func (p *Pipeline) submit(ctx context.Context, out layout.Layout, prompt string, summary *Summary) {
	ctx = services.WithStage(ctx, StageSubmission)
	logger := logging.WithContext(ctx, p.logger)
	submitter := p.submitter
	if submitter == nil {
		submitter = submission.New(p.cfg, p.base, submission.WithPrompt(prompt))
	}
	started := time.Now()
	result, err := submitter.Run(ctx, out)
	summary.Submission = &result
	detail := fmt.Sprintf("%d succeeded, %d failed, credential %s", result.Succeeded, result.Failed, result.Credential)
	if result.CredentialDetail != "" {
		detail += " (" + result.CredentialDetail + ")"
	}
	outcome := StageOutcome{
		Name:     StageSubmission,
		Ran:      true,
		Success:  result.Success,
		Err:      err,
		Duration: time.Since(started),
		Detail:   detail,
	}
	summary.add(outcome)
	p.record(ctx, outcome, result.Artifacts, result.Succeeded, result.Failed)
	p.reportSoftError(logger, StageSubmission, err)
}

func (p *Pipeline) reportSoftError(logger *slog.Logger, stage string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "stage reported an error", "stage_error",
		logging.String("stage", stage),
		logging.String("error_kind", services.Classify(err)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "the run continues with the remaining stages"),
		logging.String(logging.FieldErrorHint, "run notesflow status to check capabilities"),
	)
}

func (p *Pipeline) startRun(ctx context.Context, logger *slog.Logger, run history.Run) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.StartRun(ctx, run); err != nil {
		logger.Warn("history: failed to record run start", logging.Error(err))
	}
}

func (p *Pipeline) finishRun(ctx context.Context, logger *slog.Logger, id string, runErr error) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.FinishRun(context.WithoutCancel(ctx), id, runErr); err != nil {
		logger.Warn("history: failed to record run end", logging.Error(err))
	}
}

func (p *Pipeline) record(ctx context.Context, outcome StageOutcome, processed, succeeded, failed int) {
	if p.recorder == nil {
		return
	}
	rec := history.StageRecord{
		Stage:     outcome.Name,
		Success:   outcome.Success,
		Processed: processed,
		Succeeded: succeeded,
		Failed:    failed,
		Detail:    outcome.Detail,
		Duration:  outcome.Duration,
	}
	rec.RunID, _ = services.RunIDFromContext(ctx)
	if outcome.Err != nil {
		rec.Error = outcome.Err.Error()
	}
	if err := p.recorder.RecordStage(context.WithoutCancel(ctx), rec); err != nil {
		logging.WithContext(ctx, p.logger).Warn("history: failed to record stage", logging.String("stage", outcome.Name), logging.Error(err))
	}
}
