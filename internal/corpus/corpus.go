// Package corpus runs the brand walker and the pattern builder over a directory of brand dumps.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/miremote/mi-ir-extract/internal/brand"
	"github.com/miremote/mi-ir-extract/internal/constants"
	"github.com/miremote/mi-ir-extract/internal/crypt"
	"github.com/miremote/mi-ir-extract/internal/fileutils"
	"github.com/miremote/mi-ir-extract/internal/pattern"
	"github.com/prometheus/client_golang/prometheus"
)

// Decryptor decrypts vendor blobs.
type Decryptor interface {
	Decrypt(blob string) ([]byte, error)
}

// Processor processes brand dumps into patterns.
type Processor struct {
	workers int
	dec     Decryptor
	log     *slog.Logger

	documents *prometheus.CounterVec
	patterns  prometheus.Counter
	skipped   *prometheus.CounterVec
}

// Result holds the patterns of a processed directory, keyed by document stem.
type Result struct {
	// Documents holds the patterns of every document, empty for failed ones.
	Documents map[string][]pattern.Pattern
	// Failures holds the reason of every document that could not be parsed.
	Failures map[string]error
	// Skipped counts the codes skipped in each document.
	Skipped map[string]int
	// Models counts the logical models found in each document.
	Models map[string]int
	// Total is the number of patterns over all documents.
	Total int
}

type options struct {
	workers   int
	decryptor Decryptor
	logger    *slog.Logger
	reg       prometheus.Registerer
}

// Options represents an optional function to override Processor default values.
type Options func(*options)

// WithWorkers sets the number of documents processed concurrently. Values below 1 are ignored.
func WithWorkers(n int) Options {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithDecryptor sets the blob decryptor.
func WithDecryptor(d Decryptor) Options {
	return func(o *options) {
		o.decryptor = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer sets the registerer of the processing counters.
func WithRegisterer(reg prometheus.Registerer) Options {
	return func(o *options) {
		o.reg = reg
	}
}

// New returns a Processor and registers its counters.
func New(args ...Options) (*Processor, error) {
	opts := options{
		workers:   runtime.NumCPU(),
		decryptor: decryptFunc(crypt.Decrypt),
		logger:    slog.Default(),
		reg:       prometheus.NewRegistry(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	p := &Processor{
		workers: opts.workers,
		dec:     opts.decryptor,
		log:     opts.logger,

		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mi_ir_extract_documents_total",
			Help: "Number of brand documents processed, by status.",
		}, []string{"status"}),
		patterns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mi_ir_extract_patterns_total",
			Help: "Number of patterns extracted.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mi_ir_extract_skipped_total",
			Help: "Number of codes skipped, by reason.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{p.documents, p.patterns, p.skipped} {
		if err := opts.reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register corpus counters: %v", err)
		}
	}

	return p, nil
}

type decryptFunc func(blob string) ([]byte, error)

func (f decryptFunc) Decrypt(blob string) ([]byte, error) {
	return f(blob)
}

// ProcessDirectory processes every *.json document directly in dir.
//
// A document which cannot be read or parsed is recorded in Result.Failures and does not stop the
// batch. Cancellation is checked between documents: on cancellation, the partial result is
// returned alongside the context error.
func (p Processor) ProcessDirectory(ctx context.Context, dir string) (Result, error) {
	paths, err := fileutils.ListFiles(dir, constants.DumpExtension)
	if err != nil {
		return Result{}, fmt.Errorf("could not list brand documents: %v", err)
	}
	p.log.Debug("Processing brand documents", "dir", dir, "count", len(paths))

	res := Result{
		Documents: make(map[string][]pattern.Pattern, len(paths)),
		Failures:  make(map[string]error),
		Skipped:   make(map[string]int),
		Models:    make(map[string]int),
	}

	jobs := make(chan string)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for range min(p.workers, max(len(paths), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				d := p.processDocument(path)

				mu.Lock()
				res.add(d)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- path:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		p.log.Info("Processing interrupted", "processed", len(res.Documents), "total", len(paths))
		return res, err
	}
	return res, nil
}

// document is the outcome of one brand document.
type document struct {
	stem     string
	patterns []pattern.Pattern
	models   int
	skipped  int
	err      error
}

func (r *Result) add(d document) {
	r.Documents[d.stem] = d.patterns
	r.Models[d.stem] = d.models
	r.Total += len(d.patterns)
	if d.skipped > 0 {
		r.Skipped[d.stem] = d.skipped
	}
	if d.err != nil {
		r.Failures[d.stem] = d.err
	}
}

func (p Processor) processDocument(path string) document {
	stem := fileutils.Stem(path)
	log := p.log.With("document", stem)
	d := document{stem: stem, patterns: []pattern.Pattern{}}

	data, err := os.ReadFile(path)
	if err == nil {
		var models []brand.LogicalModel
		models, err = brand.Parse(data)
		d.models = len(models)

		b := pattern.NewBuilder(pattern.WithDecryptor(p.dec), pattern.WithLogger(log))
		for _, m := range models {
			patterns, buildErr := b.Build(m)
			d.patterns = append(d.patterns, patterns...)
			for _, e := range leafErrors(buildErr) {
				d.skipped++
				p.skipped.WithLabelValues(skipReason(e)).Inc()
			}
		}
	}
	if err != nil {
		log.Error("Skipping document", "err", err)
		p.documents.WithLabelValues("failed").Inc()
		d.err = err
		return d
	}

	log.Debug("Document processed", "models", d.models, "patterns", len(d.patterns), "skipped", d.skipped)
	p.documents.WithLabelValues("ok").Inc()
	p.patterns.Add(float64(len(d.patterns)))
	return d
}

// leafErrors flattens the errors joined by the pattern builder.
func leafErrors(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, pattern.ErrInvalidFrequency):
		return "frequency"
	case errors.Is(err, crypt.ErrDecode):
		return "decode"
	case errors.Is(err, pattern.ErrPayload):
		return "payload"
	default:
		return "other"
	}
}
