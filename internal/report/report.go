// Package report summarizes the outcome of an extraction run.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/miremote/mi-ir-extract/internal/corpus"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for a report format which is not supported.
var ErrUnknownFormat = errors.New("unknown report format")

// Format is a report rendering.
type Format string

const (
	// Text is a line per document followed by the totals.
	Text Format = "text"
	// JSON is the indented JSON rendering.
	JSON Format = "json"
	// YAML is the YAML rendering.
	YAML Format = "yaml"
	// TOML is the TOML rendering.
	TOML Format = "toml"
)

// Formats returns the supported formats.
func Formats() []string {
	return []string{string(Text), string(JSON), string(YAML), string(TOML)}
}

// ParseFormat returns the Format named s, case insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Formats(), string(f)) {
		return "", fmt.Errorf("%w %q, expected one of %s", ErrUnknownFormat, s, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// Report is the final report of a run.
type Report struct {
	RunID          string     `json:"run_id" yaml:"run_id" toml:"run_id"`
	TotalDocuments int        `json:"total_documents" yaml:"total_documents" toml:"total_documents"`
	TotalPatterns  int        `json:"total_patterns" yaml:"total_patterns" toml:"total_patterns"`
	UniquePatterns int        `json:"unique_patterns" yaml:"unique_patterns" toml:"unique_patterns"`
	TotalSkipped   int        `json:"total_skipped" yaml:"total_skipped" toml:"total_skipped"`
	TotalFailed    int        `json:"total_failed" yaml:"total_failed" toml:"total_failed"`
	Documents      []Document `json:"documents" yaml:"documents" toml:"documents"`
}

// Document is the report line of one brand document.
type Document struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	Models   int    `json:"models" yaml:"models" toml:"models"`
	Patterns int    `json:"patterns" yaml:"patterns" toml:"patterns"`
	Skipped  int    `json:"skipped" yaml:"skipped" toml:"skipped"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

type options struct {
	runID uuid.UUID
}

// Options represents an optional function to override Report default values.
type Options func(*options)

// WithRunID sets the run identifier instead of a random one.
func WithRunID(id uuid.UUID) Options {
	return func(o *options) {
		o.runID = id
	}
}

// New builds the report of a corpus result. Documents are sorted by name.
func New(res corpus.Result, args ...Options) Report {
	opts := options{runID: uuid.New()}
	for _, opt := range args {
		opt(&opts)
	}

	r := Report{
		RunID:          opts.runID.String(),
		TotalDocuments: len(res.Documents),
		TotalPatterns:  res.Total,
		Documents:      make([]Document, 0, len(res.Documents)),
	}

	unique := make(map[string]struct{})
	for _, name := range slices.Sorted(maps.Keys(res.Documents)) {
		d := Document{
			Name:     name,
			Models:   res.Models[name],
			Patterns: len(res.Documents[name]),
			Skipped:  res.Skipped[name],
		}
		if err := res.Failures[name]; err != nil {
			d.Error = err.Error()
			r.TotalFailed++
		}
		r.TotalSkipped += d.Skipped
		r.Documents = append(r.Documents, d)

		for _, p := range res.Documents[name] {
			unique[p.Key()] = struct{}{}
		}
	}
	r.UniquePatterns = len(unique)

	return r
}

// Write renders the report to w in the given format.
func (r Report) Write(w io.Writer, format Format) error {
	switch format {
	case Text:
		return r.writeText(w)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case TOML:
		return toml.NewEncoder(w).Encode(r)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

func (r Report) writeText(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s\n", r.RunID)
	for _, d := range r.Documents {
		if d.Error != "" {
			fmt.Fprintf(&sb, "%s: failed: %s\n", d.Name, d.Error)
			continue
		}
		fmt.Fprintf(&sb, "%s: %d models, %d patterns, %d skipped\n", d.Name, d.Models, d.Patterns, d.Skipped)
	}
	fmt.Fprintf(&sb, "TOTAL: %d documents, %d patterns (%d unique), %d skipped, %d failed\n",
		r.TotalDocuments, r.TotalPatterns, r.UniquePatterns, r.TotalSkipped, r.TotalFailed)

	_, err := io.WriteString(w, sb.String())
	return err
}
