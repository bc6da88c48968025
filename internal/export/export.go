// Package export writes extracted patterns in the formats of IR tooling.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/miremote/mi-ir-extract/internal/brand"
	"github.com/miremote/mi-ir-extract/internal/constants"
	"github.com/miremote/mi-ir-extract/internal/corpus"
	"github.com/miremote/mi-ir-extract/internal/fileutils"
	"github.com/miremote/mi-ir-extract/internal/pattern"
	"github.com/ubuntu/decorate"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTVKillButtons are the buttons exported for TV-Kill when none is requested.
var DefaultTVKillButtons = []string{"power", "shutter"}

const (
	flipperHeader    = "Filetype: IR signals file\nVersion: 1\n"
	flipperExtension = ".ir"
	filePerm         = 0644
)

type options struct {
	decryptor corpus.Decryptor
	logger    *slog.Logger
}

// Options represents an optional function to override export default values.
type Options func(*options)

// WithDecryptor sets the decryptor of keyset blobs.
func WithDecryptor(d corpus.Decryptor) Options {
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

func newOptions(args []Options) options {
	opts := options{logger: slog.Default()}
	for _, opt := range args {
		opt(&opts)
	}
	return opts
}

// Flipper writes one Flipper Zero IR file per model of every document into dir.
//
// Patterns of a document are grouped by model id, in order of first appearance, into
// <document>_<n>.ir. When keysetDir is set, every model id with a <keysetDir>/<id>.json keyset
// document has the patterns of that keyset appended to the file.
func Flipper(dir string, res corpus.Result, keysetDir string, args ...Options) (err error) {
	defer decorate.OnError(&err, "could not export flipper files")

	opts := newOptions(args)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	var b *pattern.Builder
	if keysetDir != "" {
		bOpts := []pattern.Options{pattern.WithLogger(opts.logger)}
		if opts.decryptor != nil {
			bOpts = append(bOpts, pattern.WithDecryptor(opts.decryptor))
		}
		b = pattern.NewBuilder(bOpts...)
	}

	for _, stem := range slices.Sorted(maps.Keys(res.Documents)) {
		for i, group := range groupByModel(res.Documents[stem]) {
			patterns := group
			if b != nil {
				for _, keyset := range group[0].ModelID() {
					patterns = append(patterns, loadKeyset(b, keysetDir, keyset, opts.logger)...)
				}
			}

			var sb strings.Builder
			sb.WriteString(flipperHeader)
			for _, p := range patterns {
				sb.WriteString("\n#\n")
				sb.WriteString(p.Flipper())
			}

			path := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, flipperExtension))
			if err := fileutils.AtomicWrite(path, []byte(sb.String()), filePerm); err != nil {
				return err
			}
			opts.logger.Debug("Wrote flipper file", "file", path, "patterns", len(patterns))
		}
	}

	return nil
}

// groupByModel splits patterns by model id, keeping the order of first appearance.
func groupByModel(patterns []pattern.Pattern) [][]pattern.Pattern {
	var groups [][]pattern.Pattern
	index := make(map[string]int)
	for _, p := range patterns {
		k := strings.Join(p.ModelID(), "\x00")
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], p)
	}
	return groups
}

// loadKeyset returns the patterns of a keyset document. A missing or invalid keyset gives no
// pattern. Keyset ids come from the dumps and must name a file directly in dir.
func loadKeyset(b *pattern.Builder, dir, keyset string, log *slog.Logger) []pattern.Pattern {
	if keyset == "" || keyset == "." || keyset == ".." || strings.ContainsAny(keyset, `/\`) {
		log.Error("Skipping keyset with invalid id", "keyset", keyset)
		return nil
	}

	path := filepath.Join(dir, keyset+constants.DumpExtension)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("No keyset document", "keyset", keyset)
		return nil
	} else if err != nil {
		log.Warn("Could not read keyset document", "keyset", keyset, "err", err)
		return nil
	}

	models, err := brand.ParseKeyset(keyset, data)
	if err != nil {
		log.Error("Skipping keyset document", "keyset", keyset, "err", err)
		return nil
	}

	var patterns []pattern.Pattern
	for _, m := range models {
		// Skips are logged by the builder.
		p, _ := b.Build(m)
		patterns = append(patterns, p...)
	}
	return patterns
}

// tvKillDevice is one device entry of a TV-Kill patterns file.
type tvKillDevice struct {
	Designation string          `json:"designation"`
	Patterns    []tvKillPattern `json:"patterns"`
}

type tvKillPattern struct {
	Comment   string   `json:"comment"`
	Frequency int      `json:"frequency"`
	Pattern   []uint32 `json:"pattern"`
}

// TVKill writes the patterns of the given buttons as a TV-Kill patterns file at path.
// The designation is the file name without extension. Patterns emitting the same signal are
// written once. No buttons means DefaultTVKillButtons.
func TVKill(path string, res corpus.Result, buttons []string) (err error) {
	defer decorate.OnError(&err, "could not export tvkill file")

	if len(buttons) == 0 {
		buttons = DefaultTVKillButtons
	}

	device := tvKillDevice{Designation: fileutils.Stem(path), Patterns: []tvKillPattern{}}
	seen := make(map[string]struct{})
	for _, stem := range slices.Sorted(maps.Keys(res.Documents)) {
		for _, p := range res.Documents[stem] {
			if !slices.Contains(buttons, p.ButtonID()) {
				continue
			}
			if _, dup := seen[p.Key()]; dup {
				continue
			}
			seen[p.Key()] = struct{}{}

			device.Patterns = append(device.Patterns, tvKillPattern{
				Comment:   strings.TrimSpace(p.VendorID() + " " + strings.Join(p.ModelID(), ",")),
				Frequency: p.Frequency(),
				Pattern:   p.Timing(),
			})
		}
	}

	data, err := json.Marshal([]tvKillDevice{device})
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// MsgPack writes every pattern as a MessagePack map of document stem to pattern records.
func MsgPack(path string, res corpus.Result) (err error) {
	defer decorate.OnError(&err, "could not export msgpack file")

	records := make(map[string][]pattern.Record, len(res.Documents))
	for stem, patterns := range res.Documents {
		records[stem] = make([]pattern.Record, 0, len(patterns))
		for _, p := range patterns {
			records[stem] = append(records[stem], p.Record())
		}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(records); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return fileutils.AtomicWrite(path, data, filePerm)
}
