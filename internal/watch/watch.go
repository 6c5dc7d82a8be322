// Package watch turns a directory into a queue: files that appear in it are
// handed, in arrival order, to a single handler.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/cliprelay/internal/resilience"
)

const queueSize = 256

// dupWindow is how close two Create events for one name must be to count
// as a single arrival. A file rewritten under the same name later is queued
// again.
const dupWindow = 50 * time.Millisecond

// Handler processes one file. An error is logged and the queue moves on.
type Handler func(ctx context.Context, path string) error

// Config selects which files are queued.
type Config struct {
	Dir string
	// Ext filters by extension, e.g. ".wav". Empty accepts every file.
	Ext string
	// Settle is how long after its creation event a file is left alone
	// before it is handed over.
	Settle time.Duration
}

type item struct {
	path string
	seen time.Time
}

// Run watches cfg.Dir until ctx is done. Hidden files (leading dot) are
// ignored, so temp files renamed into place are only seen under their
// final name. Run returns nil on cancellation.
func Run(ctx context.Context, cfg Config, handle Handler) error {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to start filesystem watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", cfg.Dir, err)
	}

	log := slog.With("dir", cfg.Dir)
	log.Info("watching directory", "ext", cfg.Ext)

	queue := make(chan item, queueSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		return events(gctx, watcher, cfg, queue, log)
	})
	g.Go(func() error {
		for it := range queue {
			if err := resilience.Sleep(gctx, time.Until(it.seen.Add(cfg.Settle))); err != nil {
				return nil
			}
			if err := handle(gctx, it.path); err != nil && gctx.Err() == nil {
				log.Error("handler failed", "file", filepath.Base(it.path), "error", err)
			}
		}
		return nil
	})
	return g.Wait()
}

func events(ctx context.Context, watcher *fsnotify.Watcher, cfg Config, queue chan<- item, log *slog.Logger) error {
	var last dedupe
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			log.Debug("watcher event", "event", event.String())
			if !event.Has(fsnotify.Create) || !Accept(event.Name, cfg.Ext) {
				continue
			}
			now := time.Now()
			if last.repeat(event.Name, now) {
				continue
			}
			select {
			case queue <- item{path: event.Name, seen: now}:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		}
	}
}

// dedupe remembers the last queued name.
type dedupe struct {
	name string
	at   time.Time
}

// repeat reports whether name was queued less than dupWindow before now,
// and otherwise records it.
func (d *dedupe) repeat(name string, now time.Time) bool {
	if name == d.name && now.Sub(d.at) < dupWindow {
		return true
	}
	d.name, d.at = name, now
	return false
}

// Accept reports whether path names a visible file with extension ext.
func Accept(path, ext string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return ext == "" || strings.EqualFold(filepath.Ext(base), ext)
}
