// Package transcribe turns audio into text by shelling out to a
// Whisper-compatible command line tool.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
)

// Defaults for NewCommandTranscriber.
const (
	DefaultCommand = "whisper"
	DefaultModel   = "base"
	DefaultTimeout = 5 * time.Minute
)

var (
	// ErrEmptyAudio is returned for zero-length input.
	ErrEmptyAudio = errors.New("transcribe: empty audio")
	// ErrNoOutput means the command exited cleanly but left no transcript.
	ErrNoOutput = errors.New("transcribe: no transcript produced")
)

// Transcriber converts audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (models.Transcription, error)
}

// Runner executes name with args and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandTranscriber invokes
//
//	<command> <file> --model <model> --output_format json --output_dir <dir>
//
// and reads <dir>/<stem>.json. Calls are throttled by a token bucket and each
// one is bounded by a timeout.
type CommandTranscriber struct {
	command string
	model   string
	timeout time.Duration
	tempDir string
	limiter *rate.Limiter
	run     Runner
	logger  *slog.Logger
}

// Option customizes a CommandTranscriber.
type Option func(*CommandTranscriber)

// WithModel selects the model name passed to the command.
func WithModel(model string) Option {
	return func(t *CommandTranscriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithTimeout bounds one invocation, including the wait for a rate token.
func WithTimeout(d time.Duration) Option {
	return func(t *CommandTranscriber) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithRate allows rps invocations per second with the given burst.
// A non-positive rps disables throttling.
func WithRate(rps float64, burst int) Option {
	return func(t *CommandTranscriber) {
		if burst < 1 {
			burst = 1
		}
		limit := rate.Limit(rps)
		if rps <= 0 {
			limit = rate.Inf
		}
		t.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithRunner replaces os/exec, for tests.
func WithRunner(r Runner) Option {
	return func(t *CommandTranscriber) {
		if r != nil {
			t.run = r
		}
	}
}

// WithTempDir sets where scratch directories are created.
func WithTempDir(dir string) Option {
	return func(t *CommandTranscriber) { t.tempDir = dir }
}

// WithLogger sets the logger for command failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *CommandTranscriber) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewCommandTranscriber builds a transcriber around command (DefaultCommand if empty).
func NewCommandTranscriber(command string, opts ...Option) *CommandTranscriber {
	if command == "" {
		command = DefaultCommand
	}
	t := &CommandTranscriber{
		command: command,
		model:   DefaultModel,
		timeout: DefaultTimeout,
		limiter: rate.NewLimiter(rate.Inf, 1),
		run:     ExecRunner,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// whisperOutput is the subset of the tool's JSON we read.
type whisperOutput struct {
	Text     string   `json:"text"`
	Language string   `json:"language"`
	Duration *float64 `json:"duration"`
	Segments []struct {
		End float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe implements Transcriber. filename only contributes its extension.
func (t *CommandTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (models.Transcription, error) {
	if len(audio) == 0 {
		return models.Transcription{}, ErrEmptyAudio
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.limiter.Wait(ctx); err != nil {
		return models.Transcription{}, fmt.Errorf("transcribe: waiting for slot: %w", err)
	}

	work, err := os.MkdirTemp(t.tempDir, "transcribe-*")
	if err != nil {
		return models.Transcription{}, fmt.Errorf("transcribe: scratch dir: %w", err)
	}
	defer os.RemoveAll(work)

	const stem = "audio"
	input := filepath.Join(work, stem+audioExt(filename))
	if err := os.WriteFile(input, audio, 0o600); err != nil {
		return models.Transcription{}, fmt.Errorf("transcribe: write input: %w", err)
	}

	out, err := t.run(ctx, t.command, input,
		"--model", t.model,
		"--output_format", "json",
		"--output_dir", work,
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		t.logger.Warn("transcription command failed",
			"command", t.command, "error", err, "output", tail(out, 512))
		return models.Transcription{}, fmt.Errorf("transcribe: %s: %w", t.command, err)
	}

	data, err := os.ReadFile(filepath.Join(work, stem+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return models.Transcription{}, ErrNoOutput
	}
	if err != nil {
		return models.Transcription{}, fmt.Errorf("transcribe: read transcript: %w", err)
	}

	var res whisperOutput
	if err := json.Unmarshal(data, &res); err != nil {
		return models.Transcription{}, fmt.Errorf("transcribe: decode transcript: %w", err)
	}

	tr := models.Transcription{
		Text:     strings.TrimSpace(res.Text),
		Language: res.Language,
	}
	switch {
	case res.Duration != nil:
		tr.Duration = *res.Duration
	case len(res.Segments) > 0:
		tr.Duration = res.Segments[len(res.Segments)-1].End
	}
	return tr, nil
}

// audioExt keeps a short alphanumeric extension from the client's filename so
// the tool can sniff the container format. Anything else becomes ".wav".
func audioExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ".wav"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".wav"
		}
	}
	return ext
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
