package pattern

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/miremote/mi-ir-extract/internal/brand"
	"github.com/miremote/mi-ir-extract/internal/constants"
	"github.com/miremote/mi-ir-extract/internal/crypt"
)

const (
	defaultVendor = constants.DefaultVendor
	reverseSuffix = constants.ReverseSuffix
)

type decryptor interface {
	Decrypt(blob string) ([]byte, error)
}

type decryptorFunc func(blob string) ([]byte, error)

func (f decryptorFunc) Decrypt(blob string) ([]byte, error) {
	return f(blob)
}

// Builder turns logical models into patterns.
type Builder struct {
	dec decryptor
	log *slog.Logger
}

type options struct {
	decryptor decryptor
	logger    *slog.Logger
}

// Options represents an optional function to override Builder default values.
type Options func(*options)

// WithDecryptor sets the decryptor used for blobs. Defaults to the built-in key.
func WithDecryptor(d decryptor) Options {
	return func(o *options) {
		o.decryptor = d
	}
}

// WithLogger sets the logger reporting skipped models and buttons.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

// NewBuilder returns a Builder.
func NewBuilder(args ...Options) *Builder {
	opts := options{
		decryptor: decryptorFunc(crypt.Decrypt),
		logger:    slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Builder{dec: opts.decryptor, log: opts.logger}
}

// Build returns the patterns of a logical model, primary code before its reverse code.
//
// Failures are isolated: a model with an invalid frequency gives no pattern, a button whose code
// cannot be decrypted or decoded is skipped, and a broken reverse code only drops the reverse
// pattern. Every skip is logged and the returned error joins all of them, alongside the patterns
// that could be built.
func (b Builder) Build(m brand.LogicalModel) ([]Pattern, error) {
	if m.Frequency <= 0 {
		b.log.Error("Skipping model with invalid frequency", "model", m.ModelID, "frequency", m.Frequency)
		return nil, fmt.Errorf("model %v: %w: %d", m.ModelID, ErrInvalidFrequency, m.Frequency)
	}

	var (
		patterns []Pattern
		errs     []error
	)
	for _, btn := range m.Buttons {
		p, err := b.build(m, btn.Name, btn.Blob)
		if err != nil {
			b.log.Error("Skipping button with invalid code", "model", m.ModelID, "button", btn.Name, "err", err)
			errs = append(errs, fmt.Errorf("button %q: %w", btn.Name, err))
			continue
		}
		patterns = append(patterns, p)

		if !btn.HasReverse() {
			continue
		}
		name := ""
		if btn.Name != "" {
			name = btn.Name + reverseSuffix
		}
		p, err = b.build(m, name, btn.ReverseBlob)
		if err != nil {
			b.log.Error("Skipping invalid reverse code", "model", m.ModelID, "button", name, "err", err)
			errs = append(errs, fmt.Errorf("button %q: %w", name, err))
			continue
		}
		patterns = append(patterns, p)
	}

	return patterns, errors.Join(errs...)
}

func (b Builder) build(m brand.LogicalModel, button, blob string) (Pattern, error) {
	payload, err := b.dec.Decrypt(blob)
	if err != nil {
		return Pattern{}, err
	}
	timing, err := DecodeTimings(payload)
	if err != nil {
		return Pattern{}, err
	}
	return New(timing, m.Frequency,
		WithModelID(m.ModelID...),
		WithVendor(m.Source),
		WithButton(button),
	)
}
