package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kazz187/timeguild/internal/metrics"
	"github.com/kazz187/timeguild/internal/verification"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type RecentProject struct {
	Name   string `json:"name"`
	Client string `json:"client"`
	// Date is the last day (YYYY-MM-DD) the user worked on the project, or empty.
	Date string `json:"date"`
}

type SuggestInput struct {
	TaskDescription string          `json:"taskDescription"`
	RecentProjects  []RecentProject `json:"recentProjects"`
}

type Suggestion struct {
	SuggestedProjectName string `json:"suggestedProjectName"`
	Reason               string `json:"reason"`
}

type VerifyInput struct {
	PhotoDataURI  string   `json:"photoDataUri"`
	PreviousTasks []string `json:"previousTasks"`
}

// Model answers one prompt. workDir is where the model may read files and
// tools is the complete set of tools it may use; nil means none.
type Model interface {
	Query(ctx context.Context, systemPrompt, prompt, workDir string, tools []string) (string, error)
}

// verifyTools lets the model open the scratch frame and nothing else.
var verifyTools = []string{"Read"}

type Service struct {
	model   Model
	metrics *metrics.Metrics
	timeout time.Duration
	workDir string
}

func NewService(model Model, m *metrics.Metrics, timeout time.Duration, workDir string) *Service {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Service{model: model, metrics: m, timeout: timeout, workDir: workDir}
}

const suggestSystemPrompt = "You help workers file their time. Answer with a single JSON object and nothing else."

const verifySystemPrompt = "You review workplace webcam stills for a time tracker. " +
	"Judge only whether the person appears to be actively working. Answer with a single JSON object and nothing else."

func (s *Service) Suggest(ctx context.Context, in SuggestInput) (*Suggestion, error) {
	if strings.TrimSpace(in.TaskDescription) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "task description is required", nil)
	}
	start := time.Now()
	sug, err := s.suggest(ctx, in)
	s.metrics.ObserveAssistant("suggest", start, err)
	if err != nil {
		s.metrics.SuggestionFailures.Inc()
		return nil, cerr.NewError(cerr.Unavailable, "suggestion failed", err)
	}
	return sug, nil
}

func (s *Service) suggest(ctx context.Context, in SuggestInput) (*Suggestion, error) {
	projects, err := json.Marshal(in.RecentProjects)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal projects: %w", err)
	}
	prompt := fmt.Sprintf(`A worker describes what they are about to do:

%s

These are the projects they can book time on (date is the last day they worked on it, empty if never):
%s

Pick the project this work most likely belongs to. Prefer exact matches of project or client names, then recent work.
Respond as {"suggestedProjectName": "<one of the project names>", "reason": "<one sentence>"}.`,
		strings.TrimSpace(in.TaskDescription), projects)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.model.Query(ctx, suggestSystemPrompt, prompt, s.workDir, nil)
	if err != nil {
		return nil, err
	}
	var sug Suggestion
	if err := decodeJSONObject(raw, &sug); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sug.SuggestedProjectName) == "" {
		return nil, errors.New("model returned no project name")
	}
	return &sug, nil
}

// Verify judges one capture. The frame is written to a scratch file the
// model reads; the file is removed afterwards.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (*verification.Result, error) {
	mime, data, err := ParseDataURI(in.PhotoDataURI)
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "photo must be a base64 data URI", err)
	}
	start := time.Now()
	res, err := s.verify(ctx, mime, data, in.PreviousTasks)
	s.metrics.ObserveAssistant("verify", start, err)
	if err != nil {
		s.metrics.VerificationFailures.Inc()
		return nil, cerr.NewError(cerr.Unavailable, "verification failed", err)
	}
	return res, nil
}

func (s *Service) verify(ctx context.Context, mime string, data []byte, previous []string) (*verification.Result, error) {
	f, err := os.CreateTemp(s.workDir, "frame-*"+extension(mime))
	if err != nil {
		return nil, fmt.Errorf("failed to create frame file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write frame file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write frame file: %w", err)
	}

	history := "none"
	if len(previous) > 0 {
		history = "- " + strings.Join(previous, "\n- ")
	}
	prompt := fmt.Sprintf(`Read the image file %s. It is a webcam still taken while the worker's timer is running.

Their recent work:
%s

Is the person at the desk actively working (at the computer, writing, reading work material)?
Respond as {"isWorking": true|false, "confidence": <number between 0 and 1>, "details": "<short observation>"}.`,
		filepath.Base(f.Name()), history)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.model.Query(ctx, verifySystemPrompt, prompt, s.workDir, verifyTools)
	if err != nil {
		return nil, err
	}
	var verdict struct {
		IsWorking  *bool    `json:"isWorking"`
		Confidence *float64 `json:"confidence"`
		Details    string   `json:"details"`
	}
	if err := decodeJSONObject(raw, &verdict); err != nil {
		return nil, err
	}
	if verdict.IsWorking == nil || verdict.Confidence == nil {
		return nil, errors.New("model reply has no isWorking or confidence")
	}
	res := verification.Result{
		IsWorking:  *verdict.IsWorking,
		Confidence: *verdict.Confidence,
		Details:    verdict.Details,
	}
	if !res.Valid() {
		return nil, fmt.Errorf("confidence %v out of range", res.Confidence)
	}
	return &res, nil
}

// ParseDataURI decodes a "data:<mime>;base64,<payload>" URI.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("missing data: scheme")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("missing payload")
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("payload is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, errors.New("empty payload")
	}
	return mime, data, nil
}

func extension(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// decodeJSONObject reads the first JSON object in a model answer, which may
// be wrapped in a markdown fence or surrounded by prose.
func decodeJSONObject(raw string, v any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in model answer: %q", truncate(raw, 200))
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse model answer: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
