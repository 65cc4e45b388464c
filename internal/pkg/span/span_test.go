package span

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	if _, err := New(5, 5); !errors.Is(err, ErrEmptySpan) {
		t.Errorf("Expected ErrEmptySpan for zero-length span, got %v", err)
	}
	if _, err := New(6, 5); !errors.Is(err, ErrEmptySpan) {
		t.Errorf("Expected ErrEmptySpan for inverted span, got %v", err)
	}
	s, err := New(1, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Duration() != 3 {
		t.Errorf("Expected duration 3, got %f", s.Duration())
	}
}

func TestContainsIsHalfOpen(t *testing.T) {
	s := MediaSpan{Start: 0, End: 120}
	if !s.Contains(0) {
		t.Error("Expected start to be contained")
	}
	if s.Contains(120) {
		t.Error("Expected end to be excluded")
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name   string
		spans  []MediaSpan
		gap    float64
		expect []MediaSpan
	}{
		{
			name:   "empty",
			spans:  nil,
			gap:    1,
			expect: nil,
		},
		{
			name:   "adjacent spans join",
			spans:  []MediaSpan{{0, 1}, {1, 2}, {2, 3}},
			gap:    0,
			expect: []MediaSpan{{0, 3}},
		},
		{
			name:   "gap within tolerance",
			spans:  []MediaSpan{{5, 6}, {0, 1}, {1.5, 2}},
			gap:    1,
			expect: []MediaSpan{{0, 2}, {5, 6}},
		},
		{
			name:   "contained span",
			spans:  []MediaSpan{{0, 10}, {2, 3}},
			gap:    0,
			expect: []MediaSpan{{0, 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.spans, tt.gap)
			if len(got) != len(tt.expect) {
				t.Fatalf("Merge() = %v; want %v", got, tt.expect)
			}
			for i := range got {
				if got[i] != tt.expect[i] {
					t.Errorf("Merge()[%d] = %v; want %v", i, got[i], tt.expect[i])
				}
			}
		})
	}
}

func TestComplement(t *testing.T) {
	tests := []struct {
		name     string
		spans    []MediaSpan
		duration float64
		expect   []MediaSpan
	}{
		{"no blackout", nil, 10, []MediaSpan{{0, 10}}},
		{"leading blackout", []MediaSpan{{0, 2}}, 10, []MediaSpan{{2, 10}}},
		{"trailing blackout", []MediaSpan{{8, 10}}, 10, []MediaSpan{{0, 8}}},
		{"middle blackout", []MediaSpan{{3, 4}}, 10, []MediaSpan{{0, 3}, {4, 10}}},
		{"full blackout", []MediaSpan{{0, 10}}, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Complement(tt.spans, tt.duration)
			if len(got) != len(tt.expect) {
				t.Fatalf("Complement() = %v; want %v", got, tt.expect)
			}
			for i := range got {
				if got[i] != tt.expect[i] {
					t.Errorf("Complement()[%d] = %v; want %v", i, got[i], tt.expect[i])
				}
			}
			if total := Total(got) + Total(tt.spans); total != tt.duration {
				t.Errorf("Expected spans to cover %f, got %f", tt.duration, total)
			}
		})
	}
}
