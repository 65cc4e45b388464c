package speech

import (
	"regexp"
	"strings"

	"videoanalyzer/internal/pkg/filter"
)

// Reason names why a transcript was treated as a hallucination.
type Reason string

const (
	ReasonBoilerplate Reason = "boilerplate_phrase"
	ReasonNonSpeech   Reason = "non_speech_annotation"
	ReasonRepetition  Reason = "repetition_loop"
	ReasonSpeechRate  Reason = "implausible_speech_rate"
	ReasonNearEmpty   Reason = "near_empty"
)

// Candidate is a transcript awaiting the hallucination check.
type Candidate struct {
	Text     string
	Duration float64 // seconds of audio the text claims to cover
}

// Matcher is one pattern in the rule table.
type Matcher interface {
	Match(c Candidate) bool
}

// Rule pairs a pattern with the reason recorded when it matches.
type Rule struct {
	Reason  Reason
	Pattern Matcher
}

// Filter evaluates an ordered rule table against transcripts.
type Filter struct {
	rules []Rule
}

// NewFilter creates a filter over rules, evaluated in order.
func NewFilter(rules []Rule) *Filter {
	return &Filter{rules: rules}
}

// Apply returns every reason whose rule matches, in rule-table order and
// without duplicates. An empty result means the transcript is accepted.
func (f *Filter) Apply(c Candidate) []Reason {
	var reasons []Reason
	seen := make(map[Reason]bool)
	for _, r := range f.rules {
		if seen[r.Reason] || !r.Pattern.Match(c) {
			continue
		}
		seen[r.Reason] = true
		reasons = append(reasons, r.Reason)
	}
	return reasons
}

// FilterConfig parameterises the built-in rules.
type FilterConfig struct {
	Phrases           []string
	Fillers           []string
	MinTokens         int     // fewer non-filler tokens than this is near-empty
	MaxNGram          int     // longest n-gram checked for loops
	MinRepeats        int     // consecutive repeats that make a loop
	MaxWordsPerSecond float64 // above this the text cannot fit the audio
	MinRateWords      int     // rate check applies only above this many words
}

// DefaultFilterConfig returns the default rule parameters.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Phrases: []string{
			"thanks for watching",
			"thank you for watching",
			"thanks for listening",
			"thank you for listening",
			"please subscribe",
			"subscribe to my channel",
			"subscribe to the channel",
			"subscribe to our channel",
			"like and subscribe",
			"dont forget to subscribe",
			"like comment and subscribe",
			"hit the bell",
			"see you in the next video",
			"see you next time",
			"subtitles by",
			"captions by",
			"transcribed by",
		},
		Fillers:           []string{"um", "uh", "uhm", "hmm", "mm", "ah", "er", "like", "so", "well"},
		MinTokens:         1,
		MaxNGram:          4,
		MinRepeats:        3,
		MaxWordsPerSecond: 5.0, // twice an average speaking rate of 2.5 words/s
		MinRateWords:      4,
	}
}

var (
	bracketedOnly = regexp.MustCompile(`^\s*(?:[\[\(][^\]\)]*[\]\)]\s*)+$`)
	musicOnly     = regexp.MustCompile(`^[\s♪♫🎵🎶#*.…~-]+$`)
	soundTag      = regexp.MustCompile(`(?i)[\[\(]\s*(?:music|applause|laughter|static|silence|noise|background noise|inaudible|sound effects?|no speech)\s*[\]\)]`)
)

// DefaultRules builds the built-in rule table.
func DefaultRules(cfg FilterConfig) []Rule {
	return []Rule{
		{Reason: ReasonBoilerplate, Pattern: NewPhraseMatcher(cfg.Phrases)},
		{Reason: ReasonNonSpeech, Pattern: RegexpMatcher{Re: bracketedOnly}},
		{Reason: ReasonNonSpeech, Pattern: RegexpMatcher{Re: musicOnly}},
		{Reason: ReasonNonSpeech, Pattern: RegexpMatcher{Re: soundTag}},
		{Reason: ReasonRepetition, Pattern: RepetitionMatcher{MaxN: cfg.MaxNGram, MinRepeats: cfg.MinRepeats}},
		{Reason: ReasonSpeechRate, Pattern: SpeechRateMatcher{MaxWordsPerSecond: cfg.MaxWordsPerSecond, MinWords: cfg.MinRateWords}},
		{Reason: ReasonNearEmpty, Pattern: NewTokenCountMatcher(cfg.MinTokens, cfg.Fillers)},
	}
}

// PhraseMatcher matches known boilerplate phrases on word boundaries.
type PhraseMatcher struct {
	ac *filter.AhoCorasick
}

// NewPhraseMatcher builds the phrase automaton.
func NewPhraseMatcher(phrases []string) PhraseMatcher {
	patterns := make([]filter.PatternInfo, len(phrases))
	for i, p := range phrases {
		patterns[i] = filter.PatternInfo{Phrase: p, Category: string(ReasonBoilerplate)}
	}
	ac := filter.NewAhoCorasick()
	ac.Build(patterns)
	return PhraseMatcher{ac: ac}
}

func (m PhraseMatcher) Match(c Candidate) bool {
	return len(m.ac.SearchWords(c.Text)) > 0
}

// RegexpMatcher matches the raw transcript text.
type RegexpMatcher struct {
	Re *regexp.Regexp
}

func (m RegexpMatcher) Match(c Candidate) bool {
	return m.Re.MatchString(c.Text)
}

// RepetitionMatcher flags an n-gram repeated MinRepeats times back to back.
type RepetitionMatcher struct {
	MaxN       int
	MinRepeats int
}

func (m RepetitionMatcher) Match(c Candidate) bool {
	tokens := strings.Fields(filter.NormalizeText(c.Text))
	if m.MinRepeats < 2 {
		return false
	}
	for n := 1; n <= m.MaxN; n++ {
		for start := 0; start+n*m.MinRepeats <= len(tokens); start++ {
			if repeats(tokens, start, n) >= m.MinRepeats {
				return true
			}
		}
	}
	return false
}

// repeats counts consecutive copies of tokens[start:start+n].
func repeats(tokens []string, start, n int) int {
	count := 1
	for next := start + n; next+n <= len(tokens); next += n {
		for k := 0; k < n; k++ {
			if tokens[start+k] != tokens[next+k] {
				return count
			}
		}
		count++
	}
	return count
}

// SpeechRateMatcher flags text with more words than the audio could hold.
type SpeechRateMatcher struct {
	MaxWordsPerSecond float64
	MinWords          int
}

func (m SpeechRateMatcher) Match(c Candidate) bool {
	if c.Duration <= 0 || m.MaxWordsPerSecond <= 0 {
		return false
	}
	words := len(strings.Fields(filter.NormalizeText(c.Text)))
	return words > m.MinWords && float64(words) > m.MaxWordsPerSecond*c.Duration
}

// TokenCountMatcher flags text with too few meaningful tokens.
type TokenCountMatcher struct {
	MinTokens int
	fillers   map[string]bool
}

// NewTokenCountMatcher creates a matcher that ignores filler words when counting.
func NewTokenCountMatcher(minTokens int, fillers []string) TokenCountMatcher {
	m := TokenCountMatcher{MinTokens: minTokens, fillers: make(map[string]bool, len(fillers))}
	for _, f := range fillers {
		m.fillers[filter.NormalizeText(f)] = true
	}
	return m
}

func (m TokenCountMatcher) Match(c Candidate) bool {
	n := 0
	for _, tok := range strings.Fields(filter.NormalizeText(c.Text)) {
		if !m.fillers[tok] {
			n++
		}
	}
	return n < m.MinTokens
}
