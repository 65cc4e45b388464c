package filter

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Match is one phrase occurrence found by the automaton.
// Position and End are rune offsets into the normalised text.
type Match struct {
	Phrase   string
	Position int
	End      int
	Category string
	Weight   float64
}

// PatternInfo is a phrase with its metadata.
type PatternInfo struct {
	Phrase   string
	Category string
	Weight   float64
}

type patternEntry struct {
	info   PatternInfo
	length int // rune length after normalisation
}

type ahoCorasickNode struct {
	children map[rune]*ahoCorasickNode
	failLink *ahoCorasickNode
	output   []patternEntry
}

// AhoCorasick matches many phrases against normalised text in one pass.
type AhoCorasick struct {
	root *ahoCorasickNode
	size int
	mu   sync.RWMutex
}

// NewAhoCorasick creates an empty automaton.
func NewAhoCorasick() *AhoCorasick {
	return &AhoCorasick{root: newAhoCorasickNode()}
}

func newAhoCorasickNode() *ahoCorasickNode {
	return &ahoCorasickNode{children: make(map[rune]*ahoCorasickNode)}
}

// Build replaces the automaton contents with patterns.
func (ac *AhoCorasick) Build(patterns []PatternInfo) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	ac.root = newAhoCorasickNode()
	ac.size = 0
	for _, p := range patterns {
		ac.addPattern(p)
	}
	ac.buildFailLinks()
}

// Len returns the number of phrases in the automaton.
func (ac *AhoCorasick) Len() int {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.size
}

func (ac *AhoCorasick) addPattern(p PatternInfo) {
	normalized := NormalizeText(p.Phrase)
	if normalized == "" {
		return
	}
	node := ac.root
	n := 0
	for _, r := range normalized {
		if _, ok := node.children[r]; !ok {
			node.children[r] = newAhoCorasickNode()
		}
		node = node.children[r]
		n++
	}
	node.output = append(node.output, patternEntry{info: p, length: n})
	ac.size++
}

func (ac *AhoCorasick) buildFailLinks() {
	queue := make([]*ahoCorasickNode, 0, len(ac.root.children))
	for _, child := range ac.root.children {
		child.failLink = ac.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for r, child := range current.children {
			queue = append(queue, child)

			fail := current.failLink
			for fail != nil && fail.children[r] == nil {
				fail = fail.failLink
			}
			if fail == nil {
				child.failLink = ac.root
			} else {
				child.failLink = fail.children[r]
				child.output = append(child.output, child.failLink.output...)
			}
		}
	}
}

func (ac *AhoCorasick) step(node *ahoCorasickNode, r rune) *ahoCorasickNode {
	for node != nil && node.children[r] == nil {
		node = node.failLink
	}
	if node == nil {
		return ac.root
	}
	return node.children[r]
}

// Search returns every phrase occurrence, including ones inside longer words.
func (ac *AhoCorasick) Search(text string) []Match {
	return ac.search(text, false)
}

// SearchWords returns only occurrences that start and end on word boundaries.
func (ac *AhoCorasick) SearchWords(text string) []Match {
	return ac.search(text, true)
}

func (ac *AhoCorasick) search(text string, wholeWords bool) []Match {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	normalized := []rune(NormalizeText(text))
	var matches []Match
	node := ac.root
	for pos, r := range normalized {
		node = ac.step(node, r)
		for _, e := range node.output {
			start := pos - e.length + 1
			if wholeWords && (!isBoundary(normalized, start-1) || !isBoundary(normalized, pos+1)) {
				continue
			}
			matches = append(matches, Match{
				Phrase:   e.info.Phrase,
				Position: start,
				End:      pos + 1,
				Category: e.info.Category,
				Weight:   e.info.Weight,
			})
		}
	}
	return matches
}

func isBoundary(text []rune, i int) bool {
	return i < 0 || i >= len(text) || text[i] == ' '
}

// HasMatch reports whether any phrase occurs in text.
func (ac *AhoCorasick) HasMatch(text string) bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	node := ac.root
	for _, r := range NormalizeText(text) {
		node = ac.step(node, r)
		if len(node.output) > 0 {
			return true
		}
	}
	return false
}

var foldDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeText lowercases, strips diacritics and apostrophes, turns other
// punctuation into spaces and collapses whitespace.
func NormalizeText(text string) string {
	folded, _, err := transform.String(foldDiacritics, text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}
