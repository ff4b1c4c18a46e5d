package submission

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/fileutil"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/layout"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services/llm"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/textutil"
)

const (
	retryPrefix          = "Please format the following text as markdown:\n\n"
	badRequestRecordHead = "Original content that caused a 400 Bad Request error:\n\n"
)

// Completer is the slice of the LLM client the stage needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
	Probe(ctx context.Context) error
}

// Settings are the submission thresholds. The retry and excerpt budgets are
// independent values.
type Settings struct {
	Prompt            string
	MinKeyLength      int
	RetryMaxChars     int
	RetryMaxTokens    int
	ErrorExcerptChars int
	Pacing            time.Duration
}

// SettingsFromConfig reads the thresholds from the [llm] section.
func SettingsFromConfig(cfg config.LLM) Settings {
	return Settings{
		Prompt:            cfg.Prompt,
		MinKeyLength:      cfg.MinKeyLength,
		RetryMaxChars:     cfg.RetryMaxChars,
		RetryMaxTokens:    cfg.RetryMaxTokens,
		ErrorExcerptChars: cfg.ErrorExcerptChars,
		Pacing:            time.Duration(cfg.PacingSeconds) * time.Second,
	}
}

// Status is the final state of one artifact.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one text artifact.
type Outcome struct {
	Base        string
	Status      Status
	Attempts    int
	Retried     bool
	ErrorRecord string
	Markdown    string
	Err         error
}

// Result summarizes one submission pass.
type Result struct {
	Artifacts  int
	Succeeded  int
	Failed     int
	Retried    int
	Requests   int
	Credential CredentialState
	// CredentialDetail explains an Invalid credential.
	CredentialDetail string
	Outcomes         []Outcome
	Success          bool
}

// Submitter sends recognized text to the language model and stores replies.
type Submitter struct {
	client   Completer
	apiKey   string
	settings Settings
	sleep    func(context.Context, time.Duration) error
	logger   *slog.Logger
	state    CredentialState
}

// Option customizes a Submitter.
type Option func(*Submitter)

// WithClient replaces the HTTP client.
func WithClient(client Completer) Option {
	return func(s *Submitter) {
		if client != nil {
			s.client = client
		}
	}
}

// WithSleeper replaces the pacing sleep.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Submitter) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithPrompt overrides the configured prompt.
func WithPrompt(prompt string) Option {
	return func(s *Submitter) {
		if strings.TrimSpace(prompt) != "" {
			s.settings.Prompt = prompt
		}
	}
}

// New builds a Submitter around an llm.Client configured from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Submitter {
	conn := cfg.GetLLM()
	s := &Submitter{
		client: llm.NewClient(llm.Config{
			APIKey:         conn.APIKey,
			BaseURL:        conn.BaseURL,
			Model:          conn.Model,
			Referer:        conn.Referer,
			Title:          conn.Title,
			TimeoutSeconds: conn.TimeoutSeconds,
			ProbeMaxTokens: conn.ProbeMaxTokens,
		}),
		apiKey:   conn.APIKey,
		settings: SettingsFromConfig(cfg.LLM),
		sleep:    sleepContext,
		logger:   logging.NewComponentLogger(logger, "submission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the credential state reached by the last Run.
func (s *Submitter) State() CredentialState {
	return s.state
}

// Run submits every text artifact in textDir. Per-artifact failures are
// recorded in error files and counted; Run itself fails only when the
// directories are unusable or ctx is cancelled.
func (s *Submitter) Run(ctx context.Context, out layout.Layout) (Result, error) {
	logger := logging.WithContext(ctx, s.logger)
	s.state = Unvalidated
	result := Result{Credential: Unvalidated}

	artifacts, err := listArtifacts(out.Text)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "submission", "list artifacts", out.Text, err)
	}
	result.Artifacts = len(artifacts)
	if len(artifacts) == 0 {
		logger.Info("no text artifacts to submit", logging.String("text_dir", out.Text))
		result.Success = true
		return result, nil
	}

	state, detail := s.validateCredential(ctx)
	s.state = state
	result.Credential = state
	if state == Invalid {
		result.CredentialDetail = detail
		result.Success = true
		logging.WarnWithContext(logger, "skipping submission", "credential_invalid",
			logging.String("reason", detail),
			logging.Int("artifacts", len(artifacts)),
			logging.String(logging.FieldImpact, "recognized text stays in the text directory without markdown"),
			logging.String(logging.FieldErrorHint, "set llm.api_key or NOTESFLOW_API_KEY and run notesflow status --check-llm"),
		)
		return result, nil
	}
	logger.Info("api key validated")

	if err := os.MkdirAll(out.Responses, 0o755); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "submission", "prepare responses dir", out.Responses, err)
	}

	for _, path := range artifacts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := s.submit(ctx, logger, out, path)
		result.Requests += outcome.Attempts
		if outcome.Retried {
			result.Retried++
		}
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Status != StatusSucceeded {
			result.Failed++
			continue
		}
		result.Succeeded++
		if s.settings.Pacing > 0 {
			if err := s.sleep(ctx, s.settings.Pacing); err != nil {
				return result, err
			}
		}
	}

	result.Success = result.Succeeded > 0
	if result.Succeeded == 0 {
		logging.WarnWithContext(logger, "no artifacts were converted", "submission_empty",
			logging.Int("failed", result.Failed),
			logging.String(logging.FieldImpact, "no markdown was produced"),
			logging.String(logging.FieldErrorHint, "see the _error.txt files in "+out.Responses),
		)
	}
	logger.Info("submission complete",
		logging.String(logging.FieldEventType, "submission_complete"),
		logging.Int("artifacts", result.Artifacts),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("retried", result.Retried),
		logging.Int("requests", result.Requests),
	)
	return result, nil
}

func (s *Submitter) submit(ctx context.Context, logger *slog.Logger, out layout.Layout, path string) Outcome {
	base := fileutil.Stem(path)
	logger = logger.With(logging.String(logging.FieldArtifact, base))
	outcome := Outcome{Base: base, Status: StatusFailed}
	clearOutputs(logger, out, base)

	raw, err := os.ReadFile(path)
	if err != nil {
		outcome.Err = err
		s.recordFailure(logger, out, &outcome, err, "")
		return outcome
	}
	content := textutil.StripNUL(string(raw))

	outcome.Attempts++
	resp, err := s.client.Complete(ctx, llm.Request{Content: s.settings.Prompt + "\n\n" + content})
	if err != nil && llm.IsBadRequest(err) {
		logging.WarnWithContext(logger, "request rejected, retrying with reduced content", "submission_bad_request",
			logging.Error(err),
			logging.Int("chars", len([]rune(content))),
			logging.String(logging.FieldImpact, "the reply will be plain markdown formatting without the custom prompt"),
			logging.String(logging.FieldErrorHint, "split very long notes"),
		)
		record := out.ErrorRecord(base)
		if werr := fileutil.WriteFile(record, []byte(badRequestRecordHead+content)); werr != nil {
			logger.Debug("write bad-request record failed", logging.Error(werr))
		} else {
			outcome.ErrorRecord = record
		}
		outcome.Retried = true
		outcome.Attempts++
		resp, err = s.client.Complete(ctx, llm.Request{
			Content:   retryPrefix + textutil.Truncate(content, s.settings.RetryMaxChars),
			MaxTokens: s.settings.RetryMaxTokens,
		})
	}
	if err != nil {
		if resp != nil && len(resp.Raw) > 0 {
			_ = fileutil.WriteFile(out.ResponseJSON(base), resp.IndentedRaw())
		}
		outcome.Err = err
		s.recordFailure(logger, out, &outcome, err, content)
		return outcome
	}

	if err := fileutil.WriteFile(out.ResponseJSON(base), resp.IndentedRaw()); err != nil {
		outcome.Err = err
		s.recordFailure(logger, out, &outcome, err, content)
		return outcome
	}
	reply, err := resp.Content()
	if err != nil {
		outcome.Err = err
		s.recordFailure(logger, out, &outcome, err, content)
		return outcome
	}
	markdownPath := out.ResponseMarkdown(base)
	if err := fileutil.WriteFile(markdownPath, []byte(unwrapMarkdownFence(reply))); err != nil {
		outcome.Err = err
		s.recordFailure(logger, out, &outcome, err, content)
		return outcome
	}

	outcome.Status = StatusSucceeded
	outcome.Markdown = markdownPath
	logger.Info("markdown saved",
		logging.String(logging.FieldEventType, "artifact_submitted"),
		logging.String("path", markdownPath),
		logging.Int("attempts", outcome.Attempts),
	)
	return outcome
}

// clearOutputs removes files left by an earlier run so the responses
// directory only reflects the current attempt.
func clearOutputs(logger *slog.Logger, out layout.Layout, base string) {
	for _, path := range []string{out.ResponseMarkdown(base), out.ResponseJSON(base), out.ErrorRecord(base)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Debug("remove stale output failed", logging.String("path", path), logging.Error(err))
		}
	}
}

// recordFailure writes the diagnostic file, replacing any bad-request record
// from the first attempt.
func (s *Submitter) recordFailure(logger *slog.Logger, out layout.Layout, outcome *Outcome, cause error, content string) {
	record := out.ErrorRecord(outcome.Base)
	body := fmt.Sprintf("Error: %v\n\nContent that caused the error:\n\n%s...", cause, textutil.Truncate(content, s.settings.ErrorExcerptChars))
	if err := fileutil.WriteFile(record, []byte(body)); err != nil {
		logger.Debug("write error record failed", logging.Error(err))
	} else {
		outcome.ErrorRecord = record
	}
	logging.WarnWithContext(logger, "submission failed", "submission_failed",
		logging.Error(cause),
		logging.Int("attempts", outcome.Attempts),
		logging.String("error_record", outcome.ErrorRecord),
		logging.String(logging.FieldImpact, "no markdown for this artifact"),
		logging.String(logging.FieldErrorHint, failureHint(cause)),
	)
}

func failureHint(err error) string {
	var statusErr *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrMalformedResponse):
		return "the model returned no content; check the raw response json"
	case errors.As(err, &statusErr) && statusErr.StatusCode == 429:
		return "rate limited; raise llm.pacing_seconds"
	case errors.As(err, &statusErr) && statusErr.StatusCode >= 500:
		return "provider error; rerun later"
	default:
		return "see the error record"
	}
}

func listArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && !strings.HasPrefix(name, ".") && fileutil.HasExt(name, ".txt") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
