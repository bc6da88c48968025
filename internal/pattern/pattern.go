// Package pattern materializes decrypted IR codes into Pattern values.
//
// A Pattern is the canonical unit of one IR signal: alternating mark and space durations in
// microseconds, modulated at a carrier frequency. It is immutable once built and can be rendered
// as Pronto hex, as a Flipper raw signal or as a plain record for serialization.
package pattern

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFrequency is returned for a carrier frequency that is zero, negative or missing.
	ErrInvalidFrequency = errors.New("invalid carrier frequency")

	// ErrPayload is returned when a decrypted payload does not hold a valid timing sequence.
	ErrPayload = errors.New("invalid timing payload")
)

// Pattern is one decrypted IR signal.
type Pattern struct {
	timing    []uint32
	frequency int
	modelID   []string
	vendorID  string
	buttonID  string
}

// Option sets an optional Pattern attribute.
type Option func(*Pattern)

// WithModelID sets the model identifiers the pattern was found under.
func WithModelID(ids ...string) Option {
	return func(p *Pattern) {
		p.modelID = slices.Clone(ids)
	}
}

// WithVendor sets the vendor tag. An empty tag keeps the default one.
func WithVendor(vendor string) Option {
	return func(p *Pattern) {
		if vendor != "" {
			p.vendorID = vendor
		}
	}
}

// WithButton sets the button identifier.
func WithButton(id string) Option {
	return func(p *Pattern) {
		p.buttonID = id
	}
}

// New returns a Pattern for the given timing, in microseconds, and carrier frequency, in Hz.
func New(timing []uint32, frequency int, opts ...Option) (Pattern, error) {
	if frequency <= 0 {
		return Pattern{}, fmt.Errorf("%w: %d", ErrInvalidFrequency, frequency)
	}
	if len(timing) == 0 {
		return Pattern{}, fmt.Errorf("%w: empty timing sequence", ErrPayload)
	}
	if slices.Contains(timing, 0) {
		return Pattern{}, fmt.Errorf("%w: zero duration", ErrPayload)
	}

	p := Pattern{
		timing:    slices.Clone(timing),
		frequency: frequency,
		vendorID:  defaultVendor,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p, nil
}

// Timing returns a copy of the mark/space durations in microseconds.
func (p Pattern) Timing() []uint32 {
	return slices.Clone(p.timing)
}

// Frequency returns the carrier frequency in Hz.
func (p Pattern) Frequency() int {
	return p.frequency
}

// ModelID returns a copy of the model identifiers, possibly empty.
func (p Pattern) ModelID() []string {
	return slices.Clone(p.modelID)
}

// VendorID returns the vendor tag.
func (p Pattern) VendorID() string {
	return p.vendorID
}

// ButtonID returns the button identifier, empty when unknown.
func (p Pattern) ButtonID() string {
	return p.buttonID
}

// IsReverse reports whether the pattern is the reverse signal of a button.
func (p Pattern) IsReverse() bool {
	return strings.HasSuffix(p.buttonID, reverseSuffix)
}

// Key identifies the signal itself: two patterns with the same key emit the same IR signal,
// whatever button or model they were found under.
func (p Pattern) Key() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(p.frequency))
	for _, t := range p.timing {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(t), 10))
	}
	return sb.String()
}

// Record is the serializable view of a Pattern.
type Record struct {
	ButtonID  string   `json:"button_id,omitempty" yaml:"button_id,omitempty" msgpack:"button_id,omitempty"`
	VendorID  string   `json:"vendor_id" yaml:"vendor_id" msgpack:"vendor_id"`
	ModelID   []string `json:"model_id,omitempty" yaml:"model_id,omitempty" msgpack:"model_id,omitempty"`
	Frequency int      `json:"frequency" yaml:"frequency" msgpack:"frequency"`
	Timing    []uint32 `json:"timing" yaml:"timing,flow" msgpack:"timing"`
	Pronto    string   `json:"pronto" yaml:"pronto" msgpack:"pronto"`
}

// Record returns the serializable view of the pattern.
func (p Pattern) Record() Record {
	return Record{
		ButtonID:  p.buttonID,
		VendorID:  p.vendorID,
		ModelID:   p.ModelID(),
		Frequency: p.frequency,
		Timing:    p.Timing(),
		Pronto:    p.Pronto(),
	}
}

// Flipper renders the pattern as one raw signal of a Flipper Zero IR file.
func (p Pattern) Flipper() string {
	name := p.buttonID
	if name == "" {
		name = "unknown"
	}

	data := make([]string, len(p.timing))
	for i, t := range p.timing {
		data[i] = strconv.FormatUint(uint64(t), 10)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "name: %s\n", name)
	sb.WriteString("type: raw\n")
	fmt.Fprintf(&sb, "frequency: %d\n", p.frequency)
	sb.WriteString("duty_cycle: 0.330000\n")
	fmt.Fprintf(&sb, "data: %s\n", strings.Join(data, " "))
	return sb.String()
}
