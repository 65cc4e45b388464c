package span

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEmptySpan is returned when a span would have start >= end.
var ErrEmptySpan = errors.New("span: start must be before end")

// MediaSpan is a half-open interval [Start, End) of media time in seconds.
type MediaSpan struct {
	Start float64 `json:"start_seconds"`
	End   float64 `json:"end_seconds"`
}

// New creates a span, rejecting empty or inverted intervals.
func New(start, end float64) (MediaSpan, error) {
	if math.IsNaN(start) || math.IsNaN(end) || start >= end {
		return MediaSpan{}, fmt.Errorf("%w: [%g, %g)", ErrEmptySpan, start, end)
	}
	return MediaSpan{Start: start, End: end}, nil
}

// Duration returns the span length in seconds.
func (s MediaSpan) Duration() float64 {
	return s.End - s.Start
}

// Contains reports whether t lies in [Start, End).
func (s MediaSpan) Contains(t float64) bool {
	return t >= s.Start && t < s.End
}

// Overlaps reports whether two spans share any time.
func (s MediaSpan) Overlaps(o MediaSpan) bool {
	return s.Start < o.End && o.Start < s.End
}

// Near reports whether t is within window seconds of the span.
func (s MediaSpan) Near(t, window float64) bool {
	return t >= s.Start-window && t <= s.End+window
}

func (s MediaSpan) String() string {
	return fmt.Sprintf("[%.3f, %.3f)", s.Start, s.End)
}

// Sort orders spans by start then end.
func Sort(spans []MediaSpan) {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start == spans[j].Start {
			return spans[i].End < spans[j].End
		}
		return spans[i].Start < spans[j].Start
	})
}

// Merge joins spans that overlap or whose gap is at most maxGap.
// The input is not modified.
func Merge(spans []MediaSpan, maxGap float64) []MediaSpan {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]MediaSpan, len(spans))
	copy(sorted, spans)
	Sort(sorted)

	merged := []MediaSpan{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start-last.End <= maxGap {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// Complement returns the parts of [0, duration) not covered by spans.
// spans must be sorted and non-overlapping.
func Complement(spans []MediaSpan, duration float64) []MediaSpan {
	var out []MediaSpan
	cursor := 0.0
	for _, s := range spans {
		start := math.Max(s.Start, 0)
		if start > cursor {
			out = append(out, MediaSpan{Start: cursor, End: math.Min(start, duration)})
		}
		if s.End > cursor {
			cursor = s.End
		}
		if cursor >= duration {
			break
		}
	}
	if cursor < duration {
		out = append(out, MediaSpan{Start: cursor, End: duration})
	}
	return out
}

// Total returns the summed duration of spans.
func Total(spans []MediaSpan) float64 {
	var total float64
	for _, s := range spans {
		total += s.Duration()
	}
	return total
}

// Find returns the index of the span containing t, or -1.
func Find(spans []MediaSpan, t float64) int {
	for i, s := range spans {
		if s.Contains(t) {
			return i
		}
	}
	return -1
}
