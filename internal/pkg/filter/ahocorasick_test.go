package filter

import (
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase",
			input:    "HELLO WORLD",
			expected: "hello world",
		},
		{
			name:     "punctuation becomes space",
			input:    "Thanks for watching, don't forget to subscribe!",
			expected: "thanks for watching dont forget to subscribe",
		},
		{
			name:     "curly apostrophe",
			input:    "don’t",
			expected: "dont",
		},
		{
			name:     "unicode diacritics",
			input:    "café résumé",
			expected: "cafe resume",
		},
		{
			name:     "digits kept",
			input:    "Unit 12, respond",
			expected: "unit 12 respond",
		},
		{
			name:     "whitespace collapsed",
			input:    "  stop   right\tthere ",
			expected: "stop right there",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeText(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeText(%q) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestAhoCorasick_Build(t *testing.T) {
	ac := NewAhoCorasick()
	ac.Build([]PatternInfo{
		{Phrase: "thanks for watching", Category: "boilerplate"},
		{Phrase: "subscribe", Category: "boilerplate"},
		{Phrase: "!!!", Category: "ignored"},
	})

	if ac.Len() != 2 {
		t.Errorf("Expected 2 phrases (punctuation-only dropped), got %d", ac.Len())
	}
	if !ac.HasMatch("Thanks for watching!") {
		t.Error("Expected to find 'thanks for watching'")
	}
	if !ac.HasMatch("please SUBSCRIBE") {
		t.Error("Expected to find 'subscribe'")
	}
	if ac.HasMatch("thanks for coming") {
		t.Error("Expected no match")
	}
}

func TestAhoCorasick_Search(t *testing.T) {
	ac := NewAhoCorasick()
	ac.Build([]PatternInfo{
		{Phrase: "he", Category: "test"},
		{Phrase: "she", Category: "test"},
		{Phrase: "his", Category: "test"},
		{Phrase: "hers", Category: "test"},
	})

	tests := []struct {
		name          string
		text          string
		expectedCount int
		expectedWords map[string]bool
	}{
		{
			name:          "single match",
			text:          "he is here",
			expectedCount: 2,
			expectedWords: map[string]bool{"he": true},
		},
		{
			name:          "overlapping matches",
			text:          "she",
			expectedCount: 2,
			expectedWords: map[string]bool{"he": true, "she": true},
		},
		{
			name:          "multiple different matches",
			text:          "she said his name",
			expectedCount: 3,
			expectedWords: map[string]bool{"he": true, "she": true, "his": true},
		},
		{
			name:          "empty text",
			text:          "",
			expectedCount: 0,
			expectedWords: map[string]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := ac.Search(tt.text)
			if len(matches) != tt.expectedCount {
				t.Errorf("Search(%q) returned %d matches; want %d", tt.text, len(matches), tt.expectedCount)
				return
			}
			for _, match := range matches {
				if !tt.expectedWords[match.Phrase] {
					t.Errorf("Search(%q) found unexpected phrase %q", tt.text, match.Phrase)
				}
			}
		})
	}
}

func TestAhoCorasick_SearchWords(t *testing.T) {
	ac := NewAhoCorasick()
	ac.Build([]PatternInfo{
		{Phrase: "hit", Category: "excessive_force", Weight: 0.8},
		{Phrase: "subscribe", Category: "boilerplate"},
	})

	tests := []struct {
		text     string
		expected int
	}{
		{"he hit the suspect", 1},
		{"a white car", 0},
		{"unsubscribe now", 0},
		{"Subscribe.", 1},
	}
	for _, tt := range tests {
		if got := len(ac.SearchWords(tt.text)); got != tt.expected {
			t.Errorf("SearchWords(%q) returned %d matches; want %d", tt.text, got, tt.expected)
		}
	}
}

func TestAhoCorasick_MatchMetadata(t *testing.T) {
	ac := NewAhoCorasick()
	ac.Build([]PatternInfo{
		{Phrase: "taser", Category: "weapon_misuse", Weight: 0.9},
		{Phrase: "shut up", Category: "verbal_abuse", Weight: 0.6},
	})

	matches := ac.SearchWords("He said shut up and drew a Taser")
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if matches[0].Category != "verbal_abuse" || matches[0].Position != 8 || matches[0].End != 15 {
		t.Errorf("Unexpected first match %+v", matches[0])
	}
	if matches[1].Category != "weapon_misuse" || matches[1].Weight != 0.9 {
		t.Errorf("Unexpected second match %+v", matches[1])
	}
}

func BenchmarkAhoCorasick_Search(b *testing.B) {
	ac := NewAhoCorasick()
	patterns := make([]PatternInfo, 1000)
	for i := 0; i < 1000; i++ {
		patterns[i] = PatternInfo{
			Phrase:   "pattern" + string(rune('a'+i%26)),
			Category: "test",
		}
	}
	ac.Build(patterns)

	text := "This is a long transcript that contains patterna and patternb and some other speech that needs to be searched."

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ac.Search(text)
	}
}
