// Package transcribe turns clip files into text files through a
// speech-to-text API.
package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/GriffinCanCode/cliprelay/internal/clip"
	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
	"github.com/GriffinCanCode/cliprelay/internal/remote"
	"github.com/GriffinCanCode/cliprelay/internal/trace"
	"github.com/GriffinCanCode/cliprelay/internal/watch"
)

// Defaults for the hosted Whisper endpoint.
const (
	DefaultModel    = "whisper-large-v3"
	DefaultLanguage = "sv"
	DefaultSettle   = time.Second
	Ext             = ".txt"
)

// Transcriber converts one audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Client transcribes through an OpenAI-compatible audio endpoint.
type Client struct {
	api      openai.Client
	caller   *remote.Caller
	model    string
	language string
}

// NewClient returns a transcriber. An empty language lets the API detect it.
func NewClient(api openai.Client, caller *remote.Caller, model, language string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: api, caller: caller, model: model, language: language}
}

// Transcribe uploads path and returns the recognised text. The file is
// reopened on every attempt.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	return remote.Do(ctx, c.caller, apperrors.CodeTranscriptionFailed, func(ctx context.Context) (string, error) {
		f, err := os.Open(path)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeTranscriptionFailed, "open clip")
		}
		defer f.Close()

		params := openai.AudioTranscriptionNewParams{
			File:  openai.File(f, filepath.Base(path), "audio/wav"),
			Model: openai.AudioModel(c.model),
		}
		if c.language != "" {
			params.Language = openai.String(c.language)
		}
		res, err := c.api.Audio.Transcriptions.New(ctx, params, remote.RequestOptions(ctx)...)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	})
}

// Result is one transcript written to disk.
type Result struct {
	Clip string // clip file name
	Path string // transcript path
	Text string
	Took time.Duration
}

// Stage writes a transcript for each clip it is given.
type Stage struct {
	t      Transcriber
	outDir string
	// OnResult and OnError, when set, are called after each clip.
	OnResult func(Result)
	OnError  func(clipPath string, err error)
}

// NewStage creates a stage writing into outDir.
func NewStage(t Transcriber, outDir string) *Stage {
	return &Stage{t: t, outDir: outDir}
}

// Handle transcribes one clip to <outDir>/<stamp>.txt. Blank transcripts
// produce no file.
func (s *Stage) Handle(ctx context.Context, path string) (err error) {
	ctx, span := trace.StartSpan(ctx, "transcribe")
	span.SetAttr("file", filepath.Base(path))
	defer func() { span.Finish(err) }()
	defer func() {
		if err != nil && s.OnError != nil && ctx.Err() == nil {
			s.OnError(path, err)
		}
	}()
	log := trace.Logger(ctx).With("file", filepath.Base(path))

	start := time.Now()
	text, err := s.t.Transcribe(ctx, path)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		log.Info("empty transcript, skipping")
		return nil
	}

	out, err := watch.Publish(s.outDir, OutputName(path), []byte(text))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeWriteFailure, "write transcript").
			WithMetadata("file", OutputName(path))
	}
	log.Info("transcript saved", "out", out)
	if s.OnResult != nil {
		s.OnResult(Result{Clip: filepath.Base(path), Path: out, Text: text, Took: time.Since(start)})
	}
	return nil
}

// Run watches clipDir and transcribes each new clip.
func (s *Stage) Run(ctx context.Context, clipDir string, settle time.Duration) error {
	return watch.Run(ctx, watch.Config{Dir: clipDir, Ext: clip.Ext, Settle: settle}, s.Handle)
}

// OutputName maps a clip path to its transcript file name.
func OutputName(clipPath string) string {
	base := filepath.Base(clipPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + Ext
}
