package violation

import (
	"slices"
	"testing"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Excessive Force", "excessive_force"},
		{"excessive-force", "excessive_force"},
		{"weapon_misuse", "weapon_misuse"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := Canonical(tt.input); got != tt.expected {
			t.Errorf("Canonical(%q) = %q; want %q", tt.input, got, tt.expected)
		}
	}
}

func TestTaxonomyMatch(t *testing.T) {
	tax := NewTaxonomy(DefaultTypes())

	tests := []struct {
		name        string
		labels      []string
		description string
		expected    []string
	}{
		{
			name:     "direct labels",
			labels:   []string{"Excessive Force", "unknown_label"},
			expected: []string{"excessive_force"},
		},
		{
			name:        "keywords in description",
			description: "Officer appears to conduct an illegal search while threatening the driver.",
			expected:    []string{"search_seizure", "verbal_abuse"},
		},
		{
			name:        "labels and keywords deduplicated",
			labels:      []string{"verbal abuse"},
			description: "verbal abuse directed at the subject",
			expected:    []string{"verbal_abuse"},
		},
		{
			name:        "keyword inside a longer word does not match",
			description: "the officer was unbiased",
			expected:    []string{},
		},
		{
			name:        "nothing",
			description: "A parked car under a street light.",
			expected:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tax.Match(tt.labels, tt.description)
			if !slices.Equal(got, tt.expected) {
				t.Errorf("Match() = %v; want %v", got, tt.expected)
			}
		})
	}
}

func TestTaxonomyWeight(t *testing.T) {
	tax := NewTaxonomy([]Type{
		{Name: "a", Weight: 0.3},
		{Name: "b", Weight: 0.9},
	})

	if w := tax.Weight(nil); w != 0 {
		t.Errorf("Expected 0 for no tags, got %f", w)
	}
	if w := tax.Weight([]string{"a", "b"}); w != 0.9 {
		t.Errorf("Expected max weight 0.9, got %f", w)
	}
	if w := tax.Weight([]string{"a", "zzz"}); w != DefaultWeight {
		t.Errorf("Expected default weight for unknown tag, got %f", w)
	}
}

func TestTaxonomyOverride(t *testing.T) {
	tax := NewTaxonomy([]Type{
		{Name: "verbal_abuse", Weight: 0.2},
		{Name: "Verbal Abuse", Weight: 0.8, Keywords: []string{"yelling"}},
	})
	if names := tax.Names(); !slices.Equal(names, []string{"verbal_abuse"}) {
		t.Errorf("Expected one type, got %v", names)
	}
	if w := tax.Weight([]string{"verbal_abuse"}); w != 0.8 {
		t.Errorf("Expected overriding weight 0.8, got %f", w)
	}
}
