package submission_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/layout"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/submission"
)

type recordedRequest struct {
	Content   string
	MaxTokens int
}

// fakeModel serves chat completions. reply decides the status and body for
// each non-probe request.
type fakeModel struct {
	mu       sync.Mutex
	probes   int
	requests []recordedRequest
	reply    func(req recordedRequest, n int) (int, string)
}

func (f *fakeModel) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		req := recordedRequest{Content: payload.Messages[0].Content, MaxTokens: payload.MaxTokens}

		f.mu.Lock()
		if req.Content == "Test" && req.MaxTokens == 10 {
			f.probes++
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
			return
		}
		f.requests = append(f.requests, req)
		n := len(f.requests)
		f.mu.Unlock()

		status, body := http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"# Notes"}}]}`
		if f.reply != nil {
			status, body = f.reply(req, n)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeModel) request(i int) recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func (f *fakeModel) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes, len(f.requests)
}

type harness struct {
	out    layout.Layout
	model  *fakeModel
	sleeps []time.Duration
	sub    *submission.Submitter
}

func newHarness(t *testing.T, apiKey string, model *fakeModel, tweak func(*config.Config)) *harness {
	t.Helper()
	server := httptest.NewServer(model.handler(t))
	t.Cleanup(server.Close)

	out, err := layout.New(t.TempDir())
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := out.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	cfg := config.Default()
	cfg.LLM.APIKey = apiKey
	cfg.LLM.BaseURL = server.URL
	cfg.LLM.Prompt = "PROMPT"
	if tweak != nil {
		tweak(&cfg)
	}
	h := &harness{out: out, model: model}
	h.sub = submission.New(&cfg, nil, submission.WithSleeper(func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}))
	return h
}

func (h *harness) addArtifact(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(h.out.Text, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunSubmitsEachArtifactOnce(t *testing.T) {
	model := &fakeModel{reply: func(recordedRequest, int) (int, string) {
		return http.StatusOK, `{"id":"x","choices":[{"message":{"content":"` + "```markdown\\n# Notes\\n```" + `"}}]}`
	}}
	h := newHarness(t, "secret-key-123", model, nil)
	h.addArtifact(t, "a.txt", "first\x00 page")
	h.addArtifact(t, "b.txt", "second page")

	result, err := h.sub.Run(context.Background(), h.out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success || result.Succeeded != 2 || result.Requests != 2 || result.Credential != submission.Valid {
		t.Fatalf("unexpected result %+v", result)
	}
	probes, requests := model.counts()
	if probes != 1 || requests != 2 {
		t.Fatalf("expected 1 probe and 2 requests, got %d/%d", probes, requests)
	}
	if got := model.request(0).Content; got != "PROMPT\n\nfirst page" {
		t.Fatalf("unexpected request content %q", got)
	}
	if model.request(0).MaxTokens != 0 {
		t.Fatalf("expected no max_tokens on first attempt")
	}
	md, err := os.ReadFile(h.out.ResponseMarkdown("a"))
	if err != nil || string(md) != "# Notes\n" {
		t.Fatalf("unexpected markdown %q %v", md, err)
	}
	raw, err := os.ReadFile(h.out.ResponseJSON("a"))
	if err != nil || !strings.Contains(string(raw), "\n  \"id\": \"x\"") {
		t.Fatalf("expected indented json, got %q %v", raw, err)
	}
	if len(h.sleeps) != 2 || h.sleeps[0] != time.Second {
		t.Fatalf("expected 1s pacing after each success, got %v", h.sleeps)
	}
}

func TestRunRetriesBadRequestOnce(t *testing.T) {
	model := &fakeModel{reply: func(_ recordedRequest, n int) (int, string) {
		if n == 1 {
			return http.StatusBadRequest, `{"error":"too big"}`
		}
		return http.StatusOK, `{"choices":[{"message":{"content":"# Reduced"}}]}`
	}}
	h := newHarness(t, "secret-key-123", model, nil)
	long := strings.Repeat("é", 60000)
	h.addArtifact(t, "big.txt", long)

	result, err := h.sub.Run(context.Background(), h.out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success || result.Retried != 1 || result.Requests != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	retry := model.request(1)
	if retry.MaxTokens != 4000 {
		t.Fatalf("expected retry max_tokens 4000, got %d", retry.MaxTokens)
	}
	body := strings.TrimPrefix(retry.Content, "Please format the following text as markdown:\n\n")
	if body == retry.Content || len([]rune(body)) != 50000 {
		t.Fatalf("unexpected retry body length %d", len([]rune(body)))
	}
	record, err := os.ReadFile(h.out.ErrorRecord("big"))
	if err != nil || !strings.HasPrefix(string(record), "Original content that caused a 400 Bad Request error:\n\n") {
		t.Fatalf("expected bad request record, got %v", err)
	}
	if !exists(h.out.ResponseJSON("big")) || !exists(h.out.ResponseMarkdown("big")) {
		t.Fatal("expected json and markdown after successful retry")
	}
}

func TestRunStopsAfterSecondFailure(t *testing.T) {
	model := &fakeModel{reply: func(recordedRequest, int) (int, string) {
		return http.StatusUnprocessableEntity, `{"error":"nope"}`
	}}
	h := newHarness(t, "secret-key-123", model, nil)
	h.addArtifact(t, "note.txt", "content")

	result, err := h.sub.Run(context.Background(), h.out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Success || result.Failed != 1 || result.Requests != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	record, _ := os.ReadFile(h.out.ErrorRecord("note"))
	if !strings.HasPrefix(string(record), "Error: ") || !strings.HasSuffix(string(record), "content...") {
		t.Fatalf("expected generic error record, got %q", record)
	}
	if len(h.sleeps) != 0 {
		t.Fatalf("expected no pacing after failure, got %v", h.sleeps)
	}
}

func TestRunServerErrorWritesExcerpt(t *testing.T) {
	model := &fakeModel{reply: func(recordedRequest, int) (int, string) {
		return http.StatusInternalServerError, "upstream down"
	}}
	h := newHarness(t, "secret-key-123", model, func(cfg *config.Config) {
		cfg.LLM.ErrorExcerptChars = 5
	})
	h.addArtifact(t, "n.txt", "abcdefghij")

	result, _ := h.sub.Run(context.Background(), h.out)
	if result.Requests != 1 || result.Retried != 0 {
		t.Fatalf("expected a single attempt, got %+v", result)
	}
	record, _ := os.ReadFile(h.out.ErrorRecord("n"))
	if !strings.HasSuffix(string(record), "\n\nabcde...") || !strings.Contains(string(record), "http 500") {
		t.Fatalf("unexpected record %q", record)
	}
}

func TestRunMalformedReplyKeepsPayload(t *testing.T) {
	model := &fakeModel{reply: func(recordedRequest, int) (int, string) {
		return http.StatusOK, `{"choices":[{"finish_reason":"length"}]}`
	}}
	h := newHarness(t, "secret-key-123", model, nil)
	h.addArtifact(t, "m.txt", "text")

	result, err := h.sub.Run(context.Background(), h.out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Failed != 1 || result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
	if !exists(h.out.ResponseJSON("m")) || !exists(h.out.ErrorRecord("m")) || exists(h.out.ResponseMarkdown("m")) {
		t.Fatal("expected json and error record without markdown")
	}
}

func TestRunEmptyReplyWritesEmptyMarkdown(t *testing.T) {
	model := &fakeModel{reply: func(recordedRequest, int) (int, string) {
		return http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":""}}]}`
	}}
	h := newHarness(t, "secret-key-123", model, nil)
	h.addArtifact(t, "blank.txt", "text")

	result, err := h.sub.Run(context.Background(), h.out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success || result.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	md, err := os.ReadFile(h.out.ResponseMarkdown("blank"))
	if err != nil || len(md) != 0 {
		t.Fatalf("expected empty markdown file, got %q %v", md, err)
	}
	if exists(h.out.ErrorRecord("blank")) {
		t.Fatal("expected no error record for an empty reply")
	}
}

func TestRunSuccessClearsStaleErrorRecord(t *testing.T) {
	model := &fakeModel{}
	h := newHarness(t, "secret-key-123", model, nil)
	h.addArtifact(t, "note.txt", "content")
	if err := os.WriteFile(h.out.ErrorRecord("note"), []byte("Error: http 500"), 0o644); err != nil {
		t.Fatalf("seed error record: %v", err)
	}

	result, err := h.sub.Run(context.Background(), h.out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success || result.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if exists(h.out.ErrorRecord("note")) {
		t.Fatal("expected error record from the earlier run to be removed")
	}
	if !exists(h.out.ResponseMarkdown("note")) {
		t.Fatal("expected markdown")
	}
}

func TestRunFailureClearsStaleResponses(t *testing.T) {
	model := &fakeModel{reply: func(recordedRequest, int) (int, string) {
		return http.StatusInternalServerError, "upstream down"
	}}
	h := newHarness(t, "secret-key-123", model, nil)
	h.addArtifact(t, "note.txt", "content")
	for _, path := range []string{h.out.ResponseMarkdown("note"), h.out.ResponseJSON("note")} {
		if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}

	result, err := h.sub.Run(context.Background(), h.out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Success || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if exists(h.out.ResponseMarkdown("note")) || exists(h.out.ResponseJSON("note")) {
		t.Fatal("expected markdown and json from the earlier run to be removed")
	}
	if !exists(h.out.ErrorRecord("note")) {
		t.Fatal("expected error record")
	}
}

func TestRunSkipsInvalidCredentialWithoutNetwork(t *testing.T) {
	for _, key := range []string{"", "short", "ключик"} {
		model := &fakeModel{}
		h := newHarness(t, key, model, nil)
		h.addArtifact(t, "a.txt", "text")

		result, err := h.sub.Run(context.Background(), h.out)
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		if !result.Success || result.Credential != submission.Invalid {
			t.Fatalf("key %q: unexpected result %+v", key, result)
		}
		if probes, requests := model.counts(); probes+requests != 0 {
			t.Fatalf("key %q: expected no network calls, got %d", key, probes+requests)
		}
	}
}

func TestRunRejectedProbeSkipsStage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	out, _ := layout.New(t.TempDir())
	if err := out.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := os.WriteFile(filepath.Join(out.Text, "a.txt"), []byte("text"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := config.Default()
	cfg.LLM.APIKey = "revoked-key-123"
	cfg.LLM.BaseURL = server.URL

	sub := submission.New(&cfg, nil)
	result, err := sub.Run(context.Background(), out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success || result.Credential != submission.Invalid || result.Requests != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(result.CredentialDetail, "401") {
		t.Fatalf("expected status in detail, got %q", result.CredentialDetail)
	}
}

func TestRunWithoutArtifacts(t *testing.T) {
	model := &fakeModel{}
	h := newHarness(t, "secret-key-123", model, nil)

	result, err := h.sub.Run(context.Background(), h.out)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success || result.Credential != submission.Unvalidated {
		t.Fatalf("unexpected result %+v", result)
	}
	if probes, requests := model.counts(); probes+requests != 0 {
		t.Fatal("expected no network calls without artifacts")
	}
}
