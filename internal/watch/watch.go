// Package watch re-processes a dump directory whenever its brand documents change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/miremote/mi-ir-extract/internal/constants"
	"github.com/miremote/mi-ir-extract/internal/corpus"
)

// DefaultDebounce is the quiet period after the last change before the directory is processed.
const DefaultDebounce = 2 * time.Second

// Processor processes a directory of brand documents.
type Processor interface {
	ProcessDirectory(ctx context.Context, dir string) (corpus.Result, error)
}

// Handler receives the result of every processing run.
type Handler func(ctx context.Context, res corpus.Result) error

// Watcher watches a dump directory.
type Watcher struct {
	dir      string
	proc     Processor
	handler  Handler
	debounce time.Duration

	log *slog.Logger
}

type options struct {
	debounce time.Duration
	logger   *slog.Logger
}

// Options represents an optional function to override Watcher default values.
type Options func(*options)

// WithDebounce sets the quiet period after a change. Values below 1 are ignored.
func WithDebounce(d time.Duration) Options {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

// New returns a Watcher of dir which hands every result of proc to handler.
func New(dir string, proc Processor, handler Handler, args ...Options) *Watcher {
	opts := options{
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Watcher{
		dir:      dir,
		proc:     proc,
		handler:  handler,
		debounce: opts.debounce,
		log:      opts.logger,
	}
}

// Run processes the directory once, then again after every burst of changes to its brand
// documents.
//
// This is blocking until the context is canceled or the watcher fails.
// Always returns a non-nil error, which is either a context error or a watcher error.
func (w *Watcher) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, watchErr, err := w.watch(ctx)
	if err != nil {
		return err
	}

	// Initial run
	w.process(ctx)

	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Context canceled, stopping watcher")
			return ctx.Err()

		case _, ok := <-changes:
			if !ok {
				return errors.New("changes channel closed unexpectedly")
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			w.log.Info("Brand documents changed, processing directory", "dir", w.dir)
			w.process(ctx)

		case err, ok := <-watchErr:
			if !ok {
				return errors.New("watcher errors channel closed unexpectedly")
			}
			return err
		}
	}
}

// process runs the processor and the handler. Their errors are logged, never fatal.
func (w *Watcher) process(ctx context.Context) {
	res, err := w.proc.ProcessDirectory(ctx, w.dir)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Error("Failed to process directory", "dir", w.dir, "err", err)
		return
	}

	if err := w.handler(ctx, res); err != nil {
		w.log.Error("Failed to handle processing result", "dir", w.dir, "err", err)
		return
	}
	w.log.Debug("Processed directory", "dir", w.dir, "documents", len(res.Documents), "patterns", res.Total)
}

// watch notifies of every change to a brand document of the directory. The error channel gets
// an error when the underlying watcher stops unexpectedly.
func (w *Watcher) watch(ctx context.Context) (<-chan struct{}, <-chan error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", w.dir, err)
	}
	w.log.Info("Watching dump directory", "dir", w.dir)

	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				w.log.Debug("Dump directory watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- errors.New("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if filepath.Ext(event.Name) != constants.DumpExtension {
					continue
				}

				w.log.Debug("Brand document changed", "file", event.Name, "op", event.Op.String())
				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- errors.New("watcher errors channel closed unexpectedly")
					return
				}
				w.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}
