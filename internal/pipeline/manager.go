// Package pipeline coordinates the recorder, the transcription and
// translation stages, the event feed, metrics and the status server.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/cliprelay/internal/audio"
	"github.com/GriffinCanCode/cliprelay/internal/clip"
	"github.com/GriffinCanCode/cliprelay/internal/config"
	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
	"github.com/GriffinCanCode/cliprelay/internal/feed"
	"github.com/GriffinCanCode/cliprelay/internal/metrics"
	"github.com/GriffinCanCode/cliprelay/internal/recorder"
	"github.com/GriffinCanCode/cliprelay/internal/remote"
	"github.com/GriffinCanCode/cliprelay/internal/resilience"
	"github.com/GriffinCanCode/cliprelay/internal/server"
	"github.com/GriffinCanCode/cliprelay/internal/trace"
	"github.com/GriffinCanCode/cliprelay/internal/transcribe"
	"github.com/GriffinCanCode/cliprelay/internal/translate"
)

// Stages selects which parts of the pipeline run.
type Stages struct {
	Record     bool
	Transcribe bool
	Translate  bool
}

// All runs every stage.
var All = Stages{Record: true, Transcribe: true, Translate: true}

// Deps overrides the device and remote clients. Nil fields are built from
// the configuration.
type Deps struct {
	Device      audio.Device
	Transcriber transcribe.Transcriber
	Translator  translate.Translator
}

// Status is the snapshot served at /api/status.
type Status struct {
	Recorder      *recorder.Status `json:"recorder,omitempty"`
	Stages        []string         `json:"stages"`
	Language      string           `json:"language,omitempty"`
	Subscribers   int              `json:"subscribers"`
	DroppedEvents uint64           `json:"dropped_events"`
}

// Manager coordinates all services.
type Manager struct {
	cfg     *config.Config
	stages  Stages
	feed    *feed.Feed
	metrics *metrics.Metrics

	session     *recorder.Session
	transcriber *transcribe.Stage
	translator  *translate.Stage
	language    string
	server      *server.Server
}

// New builds the selected stages. Stages that need an API key fail with
// CONFIG_MISSING when it is absent.
func New(cfg *config.Config, stages Stages, deps Deps) (*Manager, error) {
	if !stages.Record && !stages.Transcribe && !stages.Translate {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "no stage selected")
	}

	m := &Manager{
		cfg:     cfg,
		stages:  stages,
		feed:    feed.NewFeed(feed.DefaultHistory, feed.DefaultSubBuffer),
		metrics: metrics.New(),
	}

	if stages.Transcribe {
		if err := m.buildTranscriber(deps.Transcriber); err != nil {
			return nil, err
		}
	}
	if stages.Translate {
		if err := m.buildTranslator(deps.Translator); err != nil {
			return nil, err
		}
	}
	// The device is opened last so a config error never leaves it open.
	if stages.Record {
		if err := m.buildRecorder(deps.Device); err != nil {
			return nil, err
		}
	}
	if cfg.Server.HTTPAddr != "" {
		m.server = server.New(m.feed, func() any { return m.Status() }, m.metrics.Handler())
	}
	return m, nil
}

func (m *Manager) buildRecorder(dev audio.Device) error {
	owned := false
	if dev == nil {
		pa, err := audio.NewPortAudio(m.cfg.Audio.InputDevice, m.cfg.Audio.ExcludedDevices)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDeviceUnavailable, "initialize audio")
		}
		dev, owned = pa, true
	}

	w, err := clip.NewWriter(m.cfg.Audio.Dir)
	if err == nil {
		m.session, err = recorder.NewSession(recorder.Config{
			Workers: m.cfg.Recorder.Workers,
			Format:  m.cfg.Format(),
			Backoff: resilience.RetryConfig{
				BaseDelay:    m.cfg.Recorder.BackoffBase,
				MaxDelay:     m.cfg.Recorder.BackoffMax,
				JitterFactor: resilience.DefaultJitterFactor,
			},
		}, dev, w, recorder.WithObserver(m.metrics), recorder.WithObserver(m.recorderEvents()))
	}
	if err != nil && owned {
		_ = dev.Close()
	}
	return err
}

func (m *Manager) buildTranscriber(t transcribe.Transcriber) error {
	if t == nil {
		tc := m.cfg.Transcribe
		if err := m.cfg.RequireTranscribeKey(); err != nil {
			return err
		}
		api, err := remote.NewClient(remote.Config{Name: "groq", APIKey: tc.APIKey, BaseURL: tc.BaseURL, Timeout: tc.Timeout})
		if err != nil {
			return err
		}
		t = transcribe.NewClient(api, m.caller(metrics.StageTranscribe), tc.Model, tc.Language)
	}

	s := transcribe.NewStage(t, m.cfg.Transcribe.OutDir)
	s.OnResult = func(r transcribe.Result) {
		m.metrics.StageDone(metrics.StageTranscribe, r.Took, nil)
		m.feed.Emit(feed.Event{Kind: feed.KindTranscript, File: filepath.Base(r.Path), Text: r.Text})
	}
	s.OnError = func(path string, err error) {
		m.metrics.StageDone(metrics.StageTranscribe, 0, err)
		m.feed.Emit(feed.Event{Kind: feed.KindStageFailed, File: filepath.Base(path), Error: err.Error()})
	}
	m.transcriber = s
	return nil
}

func (m *Manager) buildTranslator(t translate.Translator) error {
	if t == nil {
		tc := m.cfg.Translate
		if err := m.cfg.RequireTranslateKey(); err != nil {
			return err
		}
		api, err := remote.NewClient(remote.Config{Name: "openai", APIKey: tc.APIKey, BaseURL: tc.BaseURL, Timeout: tc.Timeout})
		if err != nil {
			return err
		}
		t = translate.NewClient(api, m.caller(metrics.StageTranslate), tc.Language, translate.Options{
			Model:        tc.Model,
			Temperature:  tc.Temperature,
			HistoryLimit: tc.HistoryLimit,
		})
	}

	lang := t.Language()
	s := translate.NewStage(t, m.cfg.Translate.OutDir)
	s.OnResult = func(r translate.Result) {
		m.metrics.StageDone(metrics.StageTranslate, r.Took, nil)
		m.feed.Emit(feed.Event{Kind: feed.KindTranslation, File: filepath.Base(r.Path), Text: r.Text, Language: lang})
	}
	s.OnError = func(path string, err error) {
		m.metrics.StageDone(metrics.StageTranslate, 0, err)
		m.feed.Emit(feed.Event{Kind: feed.KindStageFailed, File: filepath.Base(path), Language: lang, Error: err.Error()})
	}
	m.translator = s
	m.language = lang
	return nil
}

func (m *Manager) caller(name string) *remote.Caller {
	c := remote.NewCaller(name)
	c.Breaker().WithHook(m.metrics.BreakerChanged)
	return c
}

// recorderEvents turns session events into feed events.
func (m *Manager) recorderEvents() recorder.Observer {
	return recorder.ObserverFuncs{
		OnSaved: func(s recorder.Saved) {
			m.feed.Emit(feed.Event{Kind: feed.KindClipSaved, File: filepath.Base(s.Path), Worker: s.Worker})
		},
		OnFailed: func(worker int, err error) {
			m.feed.Emit(feed.Event{
				Kind:   feed.KindClipFailed,
				File:   apperrors.Metadata(err, "file"),
				Worker: worker,
				Error:  err.Error(),
			})
		},
	}
}

// Run starts every built stage and blocks until ctx is cancelled or a
// stage fails to start. It returns nil on cancellation.
func (m *Manager) Run(ctx context.Context) error {
	log := trace.Logger(ctx)
	log.Info("pipeline starting", "stages", m.stageNames(), "language", m.language)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	if m.session != nil {
		g.Go(func() error { return m.session.Run(ctx) })
	}
	if m.transcriber != nil {
		g.Go(func() error {
			return m.transcriber.Run(ctx, m.cfg.Audio.Dir, m.cfg.Transcribe.Settle)
		})
	}
	if m.translator != nil {
		g.Go(func() error {
			return m.translator.Run(ctx, m.cfg.Transcribe.OutDir, m.cfg.Translate.Settle)
		})
	}
	if m.server != nil {
		g.Go(func() error { return m.server.ListenAndServe(ctx, m.cfg.Server.HTTPAddr) })
	}

	err := g.Wait()
	log.Info("pipeline stopped", "uptime", time.Since(start).Round(time.Second), "error", err)
	return err
}

// Close releases the input device.
func (m *Manager) Close() error {
	if m.session == nil {
		return nil
	}
	return m.session.Close()
}

// Feed returns the event feed.
func (m *Manager) Feed() *feed.Feed { return m.feed }

// Metrics returns the pipeline's collectors.
func (m *Manager) Metrics() *metrics.Metrics { return m.metrics }

// Session returns the recorder session, or nil when not recording.
func (m *Manager) Session() *recorder.Session { return m.session }

// Language returns the translation target, or "" when not translating.
func (m *Manager) Language() string { return m.language }

// Status returns a snapshot for the status server.
func (m *Manager) Status() Status {
	st := Status{
		Stages:        m.stageNames(),
		Language:      m.language,
		Subscribers:   m.feed.Subscribers(),
		DroppedEvents: m.feed.Dropped(),
	}
	if m.session != nil {
		rs := m.session.Status()
		st.Recorder = &rs
	}
	return st
}

func (m *Manager) stageNames() []string {
	names := make([]string, 0, 3)
	if m.stages.Record {
		names = append(names, "record")
	}
	if m.stages.Transcribe {
		names = append(names, metrics.StageTranscribe)
	}
	if m.stages.Translate {
		names = append(names, metrics.StageTranslate)
	}
	return names
}
