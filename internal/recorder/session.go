// Package recorder runs the alternating recording scheduler: a fixed set of
// workers pass a single token round-robin, and only the holder may open the
// input device, capture one clip and write it to disk.
package recorder

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/cliprelay/internal/audio"
	"github.com/GriffinCanCode/cliprelay/internal/clip"
	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
	"github.com/GriffinCanCode/cliprelay/internal/resilience"
	"github.com/GriffinCanCode/cliprelay/internal/syncx"
	"github.com/GriffinCanCode/cliprelay/internal/trace"
)

// DefaultWorkers is the number of alternating workers.
const DefaultWorkers = 2

// Config holds session settings.
type Config struct {
	Workers int
	Format  audio.Format
	// Backoff paces a worker after a failed device open or read. Only the
	// failing worker sleeps; the token has already moved on.
	Backoff resilience.RetryConfig
}

// DefaultConfig returns two workers recording default-format clips.
func DefaultConfig() Config {
	return Config{
		Workers: DefaultWorkers,
		Format:  audio.DefaultFormat(),
		Backoff: DefaultBackoff(),
	}
}

// DefaultBackoff returns the failure backoff used when none is configured.
func DefaultBackoff() resilience.RetryConfig {
	return resilience.RetryConfig{
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: resilience.DefaultJitterFactor,
	}
}

// Session owns the input device, the clip writer and the token the workers
// share. Create one with NewSession, drive it with Run and release the
// device with Close.
type Session struct {
	cfg       Config
	dev       audio.Device
	writer    *clip.Writer
	turn      *syncx.Turn
	now       func() time.Time
	observers Observers
	status    *syncx.Guard[Status]
	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// lastStamp is guarded by the turn's mutex.
	lastStamp int64
}

// Option configures a Session.
type Option func(*Session)

// WithObserver registers an observer for session events.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

// WithClock overrides the clock used for clip start stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession validates cfg and builds a session with worker 1 holding the
// token.
func NewSession(cfg Config, dev audio.Device, w *clip.Writer, opts ...Option) (*Session, error) {
	if dev == nil || w == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "recorder needs a device and a writer")
	}
	if cfg.Workers < 1 {
		return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "workers must be at least 1, got %d", cfg.Workers)
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "clip format")
	}
	if cfg.Backoff.MaxDelay <= 0 {
		cfg.Backoff = DefaultBackoff()
	}

	turn, err := syncx.NewTurn(cfg.Workers, 1)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "create token")
	}

	workers := make([]WorkerStatus, cfg.Workers)
	for i := range workers {
		workers[i] = WorkerStatus{ID: i + 1, State: Waiting.String()}
	}

	s := &Session{
		cfg:    cfg,
		dev:    dev,
		writer: w,
		turn:   turn,
		now:    time.Now,
		status: syncx.NewGuard(Status{Active: 1, Workers: workers}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run starts the workers and blocks until ctx is cancelled. Cycle failures
// never stop the session; Run returns nil on cancellation and an error only
// if the token protocol is violated.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return apperrors.New(apperrors.CodeInternal, "recorder session already running")
	}
	defer s.running.Store(false)

	s.status.Update(func(st *Status) { st.Running = true })
	defer s.status.Update(func(st *Status) { st.Running = false })

	g, ctx := errgroup.WithContext(ctx)
	for id := 1; id <= s.cfg.Workers; id++ {
		g.Go(func() error { return s.work(ctx, id) })
	}
	return g.Wait()
}

// Close releases the input device. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.dev.Close() })
	return s.closeErr
}

// Active returns the worker currently holding the token.
func (s *Session) Active() int { return s.turn.Holder() }

// Status returns a snapshot of the session. The worker list is copied
// under the read lock; workers keep writing it in place.
func (s *Session) Status() Status {
	var st Status
	s.status.View(func(v Status) { st = v.clone() })
	st.Active = s.turn.Holder()
	return st
}

func (s *Session) work(ctx context.Context, id int) error {
	defer s.setState(id, Stopped)

	failures := 0
	for {
		s.setState(id, Waiting)
		if err := s.turn.Wait(ctx, id); err != nil {
			return nil
		}

		err := s.cycle(ctx, id)

		s.setState(id, Handoff)
		if _, perr := s.turn.Pass(id); perr != nil {
			return apperrors.Wrap(perr, apperrors.CodeInternal, "hand off token")
		}

		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		failures++
		s.recordFailure(id, failures, err)
		s.observers.CycleFailed(id, err)

		// Write failures are not device trouble; the next turn may
		// succeed as soon as the disk recovers.
		if !apperrors.IsRetryable(err) {
			continue
		}
		delay := resilience.Backoff(s.cfg.Backoff, failures-1)
		trace.Logger(ctx).Warn("recording cycle failed, backing off",
			"worker", id, "failures", failures, "delay", delay, "error", err)
		if resilience.Sleep(ctx, delay) != nil {
			return nil
		}
	}
}

// cycle captures and writes one clip. The caller holds the token.
func (s *Session) cycle(ctx context.Context, id int) (err error) {
	ctx, span := trace.StartSpan(ctx, "clip.cycle")
	span.SetAttr("worker", id)
	defer func() { span.Finish(err) }()
	log := trace.Logger(ctx).With("worker", id)

	start := time.Now()
	s.setState(id, Capturing)
	log.Info("recording started")
	capture := audio.Session{Device: s.dev, Format: s.cfg.Format, Stamp: s.nextStamp}
	c, err := capture.Capture(ctx)
	if err != nil {
		return withWorker(err, id)
	}
	name := clip.Name(c.Start)
	span.SetAttr("file", name)
	log.Info("recording finished", "file", name, "frames", c.Frames())

	s.setState(id, Writing)
	path, err := s.writer.Write(c)
	if err != nil {
		log.Error("clip write failed", "file", name, "error", err)
		return withWorker(err, id)
	}
	log.Info("clip saved", "file", path)

	saved := Saved{Worker: id, Path: path, Start: c.Start, Frames: c.Frames(), Took: time.Since(start)}
	s.status.Update(func(st *Status) {
		st.Saved++
		st.LastFile = path
		w := &st.Workers[id-1]
		w.Clips++
		w.ConsecutiveFailures = 0
		w.LastError = ""
	})
	s.observers.ClipSaved(saved)
	return nil
}

// nextStamp issues a clip start stamp. Stamps are strictly increasing within
// the session so file names stay unique and sortable under a coarse clock.
func (s *Session) nextStamp() int64 {
	s.turn.Lock()
	defer s.turn.Unlock()
	stamp := s.now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	return stamp
}

func (s *Session) setState(id int, st State) {
	s.status.Update(func(status *Status) { status.Workers[id-1].State = st.String() })
	s.observers.StateChanged(id, st)
}

func (s *Session) recordFailure(id, consecutive int, err error) {
	s.status.Update(func(st *Status) {
		st.Failed++
		w := &st.Workers[id-1]
		w.Failures++
		w.ConsecutiveFailures = consecutive
		w.LastError = err.Error()
	})
}

func withWorker(err error, id int) error {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		appErr.WithMetadata("worker", strconv.Itoa(id))
		return err
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("worker %d: %w", id, err)
}
