package pattern

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// prontoClock is the period, in microseconds, of the Pronto reference clock.
	prontoClock = 0.241246

	// prontoLearned is the format code of raw learned signals with a modulated carrier.
	prontoLearned = 0x0000

	// prontoLeadOut is the trailing space, in microseconds, added to odd length sequences.
	prontoLeadOut = 100000
)

// Pronto renders the pattern as Pronto hex: the learned format code, the carrier frequency code,
// the number of burst pairs in the once sequence, an empty repeat sequence, then every duration
// counted in carrier periods.
//
// A sequence ending on a mark gets a 100ms lead-out space so that bursts come in pairs.
func (p Pattern) Pronto() string {
	code := prontoFrequencyCode(p.frequency)
	unit := float64(code) * prontoClock

	timing := p.timing
	if len(timing)%2 != 0 {
		timing = append(p.Timing(), prontoLeadOut)
	}

	words := make([]string, 0, 4+len(timing))
	words = append(words,
		hexWord(prontoLearned),
		hexWord(code),
		hexWord(len(timing)/2),
		hexWord(0),
	)
	for _, t := range timing {
		burst := int(math.Round(float64(t) / unit))
		words = append(words, hexWord(min(max(burst, 1), math.MaxUint16)))
	}

	return strings.Join(words, " ")
}

// ParsePronto decodes learned Pronto hex back into a Pattern. The once and repeat sequences are
// concatenated. Options are applied to the returned Pattern.
func ParsePronto(s string, opts ...Option) (Pattern, error) {
	fields := strings.Fields(s)
	if len(fields) < 4 {
		return Pattern{}, fmt.Errorf("%w: pronto code has %d words, want at least 4", ErrPayload, len(fields))
	}

	words := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 16)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: invalid pronto word %q: %v", ErrPayload, f, err)
		}
		words[i] = int(v)
	}

	if words[0] != prontoLearned {
		return Pattern{}, fmt.Errorf("%w: unsupported pronto format %04X", ErrPayload, words[0])
	}
	if words[1] == 0 {
		return Pattern{}, fmt.Errorf("%w: pronto frequency code is zero", ErrInvalidFrequency)
	}
	if want := 4 + 2*(words[2]+words[3]); len(words) != want {
		return Pattern{}, fmt.Errorf("%w: pronto code has %d words, header announces %d", ErrPayload, len(words), want)
	}

	unit := float64(words[1]) * prontoClock
	timing := make([]uint32, 0, len(words)-4)
	for _, b := range words[4:] {
		timing = append(timing, uint32(math.Round(float64(b)*unit)))
	}

	frequency := int(math.Round(1e6 / unit))
	return New(timing, frequency, opts...)
}

// prontoFrequencyCode returns the Pronto code of a carrier frequency in Hz, clamped to a word.
func prontoFrequencyCode(frequency int) int {
	code := math.Round(1e6 / (float64(frequency) * prontoClock))
	return int(min(max(code, 1), math.MaxUint16))
}

func hexWord(v int) string {
	return fmt.Sprintf("%04X", v)
}
