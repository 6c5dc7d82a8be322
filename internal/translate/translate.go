// Package translate translates the running transcript with a chat model and
// writes the full translation for each new transcript segment.
package translate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"

	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
	"github.com/GriffinCanCode/cliprelay/internal/remote"
	"github.com/GriffinCanCode/cliprelay/internal/trace"
	"github.com/GriffinCanCode/cliprelay/internal/transcribe"
	"github.com/GriffinCanCode/cliprelay/internal/watch"
)

// Defaults for the chat endpoint.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultSettle      = 100 * time.Millisecond
)

// Translator translates the next transcript segment in context.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
	Language() string
}

// Client translates through an OpenAI-compatible chat endpoint, sending
// the rolling history with every request.
type Client struct {
	api         openai.Client
	caller      *remote.Caller
	model       string
	temperature float64
	language    string
	history     *History
}

// Options tunes a Client. Zero values take the defaults.
type Options struct {
	Model        string
	Temperature  float64
	HistoryLimit int
}

// NewClient returns a translator into language.
func NewClient(api openai.Client, caller *remote.Caller, language string, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	return &Client{
		api:         api,
		caller:      caller,
		model:       opts.Model,
		temperature: opts.Temperature,
		language:    language,
		history:     NewHistory(opts.HistoryLimit),
	}
}

// Language returns the target language.
func (c *Client) Language() string { return c.language }

// History exposes the rolling window.
func (c *Client) History() *History { return c.history }

// Translate adds text to the history and returns the model's translation of
// the whole window.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	window := c.history.Add(text)
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(window)+1)
	msgs = append(msgs, openai.SystemMessage(SystemPrompt(c.language)))
	for _, seg := range window {
		msgs = append(msgs, openai.UserMessage(seg))
	}

	reply, err := remote.Do(ctx, c.caller, apperrors.CodeTranslationFailed, func(ctx context.Context) (string, error) {
		res, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(c.model),
			Messages:    msgs,
			Temperature: openai.Float(c.temperature),
		}, remote.RequestOptions(ctx)...)
		if err != nil {
			return "", err
		}
		if len(res.Choices) == 0 {
			return "", apperrors.New(apperrors.CodeTranslationFailed, "no choices in reply")
		}
		return res.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	c.history.Settle()
	return reply, nil
}

// Result is one translation written to disk.
type Result struct {
	Source string // transcript file name
	Path   string
	Text   string
	Took   time.Duration
}

// Stage writes a translation for each transcript it is given.
type Stage struct {
	t      Translator
	outDir string
	// OnResult and OnError, when set, are called after each transcript.
	OnResult func(Result)
	OnError  func(path string, err error)
}

// NewStage creates a stage writing into outDir.
func NewStage(t Translator, outDir string) *Stage {
	return &Stage{t: t, outDir: outDir}
}

// Handle translates one transcript to <outDir>/<stamp>_<language>.txt.
func (s *Stage) Handle(ctx context.Context, path string) (err error) {
	ctx, span := trace.StartSpan(ctx, "translate")
	span.SetAttr("file", filepath.Base(path))
	defer func() { span.Finish(err) }()
	defer func() {
		if err != nil && s.OnError != nil && ctx.Err() == nil {
			s.OnError(path, err)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeTranslationFailed, "read transcript").
			WithMetadata("file", filepath.Base(path))
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}

	start := time.Now()
	reply, err := s.t.Translate(ctx, text)
	if err != nil {
		return err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		trace.Logger(ctx).Warn("empty translation, skipping", "file", filepath.Base(path))
		return nil
	}

	name := OutputName(path, s.t.Language())
	out, err := watch.Publish(s.outDir, name, []byte(reply))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeWriteFailure, "write translation").WithMetadata("file", name)
	}
	trace.Logger(ctx).Info("translation saved", "file", filepath.Base(path), "out", out)
	if s.OnResult != nil {
		s.OnResult(Result{Source: filepath.Base(path), Path: out, Text: reply, Took: time.Since(start)})
	}
	return nil
}

// Run watches transcriptDir and translates each new transcript.
func (s *Stage) Run(ctx context.Context, transcriptDir string, settle time.Duration) error {
	return watch.Run(ctx, watch.Config{Dir: transcriptDir, Ext: transcribe.Ext, Settle: settle}, s.Handle)
}

// OutputName maps a transcript path to its translation file name.
func OutputName(path, language string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_" + language + ".txt"
}
