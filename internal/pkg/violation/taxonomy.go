package violation

import (
	"slices"
	"strings"

	"videoanalyzer/internal/pkg/filter"
)

// Type is one configured violation category.
type Type struct {
	Name     string   `json:"name"`
	Weight   float64  `json:"weight"`
	Keywords []string `json:"keywords"`
}

// DefaultTypes returns the built-in taxonomy. Deployments override it from config.
func DefaultTypes() []Type {
	return []Type{
		{Name: "excessive_force", Weight: 1.0, Keywords: []string{"excessive force", "unnecessary force", "brutal", "beating", "striking", "chokehold"}},
		{Name: "weapon_misuse", Weight: 1.0, Keywords: []string{"weapon misuse", "improper weapon", "unnecessary weapon", "firearm drawn", "pepper spray"}},
		{Name: "rights_violation", Weight: 0.9, Keywords: []string{"rights violation", "constitutional", "miranda", "civil rights"}},
		{Name: "search_seizure", Weight: 0.85, Keywords: []string{"illegal search", "improper search", "seizure", "warrantless"}},
		{Name: "discrimination", Weight: 0.85, Keywords: []string{"discrimination", "bias", "profiling"}},
		{Name: "verbal_abuse", Weight: 0.7, Keywords: []string{"verbal abuse", "inappropriate language", "threatening", "slur"}},
		{Name: "improper_procedure", Weight: 0.6, Keywords: []string{"improper procedure", "protocol violation", "incorrect procedure", "unauthorized"}},
	}
}

// DefaultWeight applies to labels that are not in the taxonomy.
const DefaultWeight = 0.5

// Taxonomy resolves classifier labels and descriptions to violation types.
type Taxonomy struct {
	types   map[string]Type
	order   []string
	matcher *filter.AhoCorasick
}

// NewTaxonomy builds a taxonomy. Later entries with a duplicate name replace earlier ones.
func NewTaxonomy(types []Type) *Taxonomy {
	t := &Taxonomy{types: make(map[string]Type, len(types))}
	var patterns []filter.PatternInfo
	for _, ty := range types {
		name := Canonical(ty.Name)
		if name == "" {
			continue
		}
		if _, ok := t.types[name]; !ok {
			t.order = append(t.order, name)
		}
		ty.Name = name
		t.types[name] = ty
		for _, kw := range ty.Keywords {
			patterns = append(patterns, filter.PatternInfo{Phrase: kw, Category: name, Weight: ty.Weight})
		}
	}
	t.matcher = filter.NewAhoCorasick()
	t.matcher.Build(patterns)
	return t
}

// Canonical turns "Excessive Force" and "excessive-force" into "excessive_force".
func Canonical(label string) string {
	return strings.ReplaceAll(filter.NormalizeText(label), " ", "_")
}

// Names returns the configured type names in configuration order.
func (t *Taxonomy) Names() []string {
	return slices.Clone(t.order)
}

// Match combines direct labels with keyword hits in description.
// Labels naming a known type are kept, unknown labels are dropped.
// The result is sorted and free of duplicates.
func (t *Taxonomy) Match(labels []string, description string) []string {
	seen := make(map[string]bool)
	for _, l := range labels {
		if name := Canonical(l); t.Known(name) {
			seen[name] = true
		}
	}
	for _, m := range t.matcher.SearchWords(description) {
		seen[m.Category] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Known reports whether name is a configured type.
func (t *Taxonomy) Known(name string) bool {
	_, ok := t.types[name]
	return ok
}

// Weight returns the largest weight among tags, or 0 when tags is empty.
func (t *Taxonomy) Weight(tags []string) float64 {
	var w float64
	for _, tag := range tags {
		ty, ok := t.types[Canonical(tag)]
		if !ok {
			w = max(w, DefaultWeight)
			continue
		}
		w = max(w, ty.Weight)
	}
	return w
}
