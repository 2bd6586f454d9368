// Package chunk splits contract text into overlapping spans sized for
// embedding. The split is a deterministic sliding window: each span covers at
// most Size characters and shares exactly Overlap characters with its
// successor, so trimming the trailing Overlap from every non-final span
// reconstructs the input byte-for-byte.
package chunk

import (
	"errors"
	"strings"
)

const (
	// DefaultSize is the target span length in characters.
	DefaultSize = 1000

	// DefaultOverlap is the shared region between adjacent spans.
	DefaultOverlap = 150
)

// ErrEmptyInput is returned when there is no text to split.
var ErrEmptyInput = errors.New("chunk: empty input text")

// Splitter produces overlapping text spans. Construct with [New]; the zero
// value is not usable.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSize sets the target span length. Values < 1 keep the default.
func WithSize(n int) Option {
	return func(s *Splitter) {
		if n > 0 {
			s.size = n
		}
	}
}

// WithOverlap sets the overlap between adjacent spans. Values < 0 keep the
// default.
func WithOverlap(n int) Option {
	return func(s *Splitter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

// New constructs a Splitter. An overlap that is not smaller than the size
// would stall the window, so it is reset to size/4.
func New(opts ...Option) *Splitter {
	s := &Splitter{size: DefaultSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}
	return s
}

// Size returns the configured span length.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into overlapping spans. Text no longer than the span size
// yields a single span; a trailing remainder becomes a final shorter span
// rather than being dropped. Each cut prefers a paragraph or sentence
// boundary inside the tail of the window and falls back to a hard cut; the
// next span always starts exactly Overlap characters before the previous
// end, whatever cut was chosen.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if len(text) <= s.size {
		return []string{text}, nil
	}

	var spans []string
	for start := 0; start < len(text); {
		end := start + s.size
		if end >= len(text) {
			spans = append(spans, text[start:])
			break
		}
		end = s.snapEnd(text, start, end)
		spans = append(spans, text[start:end])
		start = end - s.overlap
	}
	return spans, nil
}

// snapEnd moves a hard cut back to the nearest paragraph break, then sentence
// end, inside the last quarter of the window. The snapped end always leaves
// the span longer than the overlap, so the window keeps advancing.
func (s *Splitter) snapEnd(text string, start, end int) int {
	floor := start + s.overlap + 1
	if tail := start + (s.size*3)/4; tail > floor {
		floor = tail
	}
	if floor >= end {
		return end
	}
	window := text[floor:end]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return floor + i + 2
	}
	if i := strings.LastIndex(window, ". "); i >= 0 {
		return floor + i + 2
	}
	return end
}
