package sampler

import (
	"fmt"
	"math"
	"sort"

	"videoanalyzer/internal/pkg/signal"
	"videoanalyzer/internal/pkg/span"
)

// FrameSample is one timestamp selected for extraction and classification.
type FrameSample struct {
	Timestamp float64 `json:"timestamp"`
	Reason    Reason  `json:"strategy_reason"`
	Score     float64 `json:"score,omitempty"`
}

// Options configures one sampling pass.
type Options struct {
	MaxFrames      int
	Strategy       Strategy
	MinSpacing     float64 // minimum seconds between samples in one span
	MinSpan        float64 // spans shorter than this get no frames
	SceneThreshold float64 // histogram distance for a scene change
	// Profile is the coarse scan from the blackout pass. Nil means motion
	// and scene scoring are unavailable.
	Profile []signal.FrameSignal
}

// DefaultOptions returns the defaults for this domain.
func DefaultOptions() Options {
	return Options{
		MaxFrames:      50,
		Strategy:       Intelligent,
		MinSpacing:     1.0,
		MinSpan:        0.5,
		SceneThreshold: 0.3,
	}
}

type strategyFunc func(useful []span.MediaSpan, opts Options) []FrameSample

var strategies = map[Strategy]strategyFunc{
	Intelligent: sampleIntelligent,
	Uniform:     sampleUniform,
	Motion:      sampleMotion,
	Keyframe:    sampleKeyframe,
}

// Sample selects at most opts.MaxFrames timestamps inside the useful spans.
// A zero budget or no useful spans yields an empty slice, not an error.
func Sample(useful []span.MediaSpan, opts Options) ([]FrameSample, error) {
	fn, ok := strategies[opts.Strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, uint8(opts.Strategy))
	}
	if opts.MaxFrames <= 0 || len(useful) == 0 {
		return []FrameSample{}, nil
	}
	if opts.MinSpacing <= 0 {
		opts.MinSpacing = DefaultOptions().MinSpacing
	}
	if opts.MinSpan < 0 {
		opts.MinSpan = 0
	}
	return finalize(fn(useful, opts), opts.MaxFrames), nil
}

// finalize sorts, drops duplicate timestamps, and enforces the budget.
func finalize(samples []FrameSample, maxFrames int) []FrameSample {
	if len(samples) > maxFrames {
		samples = samples[:maxFrames]
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})
	out := make([]FrameSample, 0, len(samples))
	for _, s := range samples {
		s.Timestamp = math.Round(s.Timestamp*1000) / 1000
		if n := len(out); n > 0 && out[n-1].Timestamp == s.Timestamp {
			continue
		}
		out = append(out, s)
	}
	return out
}

// capacity is how many samples fit in s at the minimum spacing.
func capacity(s span.MediaSpan, opts Options) int {
	d := s.Duration()
	if d <= 0 || d < opts.MinSpan {
		return 0
	}
	return max(1, int(math.Floor(d/opts.MinSpacing)))
}

// spread places n samples at the midpoints of n equal slices of s.
func spread(s span.MediaSpan, n int, reason Reason) []FrameSample {
	out := make([]FrameSample, 0, n)
	step := s.Duration() / float64(n)
	for k := 0; k < n; k++ {
		out = append(out, FrameSample{Timestamp: s.Start + (float64(k)+0.5)*step, Reason: reason})
	}
	return out
}

// candidates returns profile samples that fall inside s.
func candidates(s span.MediaSpan, profile []signal.FrameSignal) []signal.FrameSignal {
	lo := sort.Search(len(profile), func(i int) bool { return profile[i].Timestamp >= s.Start })
	var out []signal.FrameSignal
	for i := lo; i < len(profile) && profile[i].Timestamp < s.End; i++ {
		out = append(out, profile[i])
	}
	return out
}

type scored struct {
	ts    float64
	score float64
}

// pickTop greedily takes the highest-scoring timestamps at least spacing apart.
// Ties go to the earlier timestamp.
func pickTop(items []scored, n int, spacing float64) []scored {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score == items[j].score {
			return items[i].ts < items[j].ts
		}
		return items[i].score > items[j].score
	})
	var picked []scored
	for _, it := range items {
		if len(picked) == n {
			break
		}
		if tooClose(it.ts, picked, spacing) {
			continue
		}
		picked = append(picked, it)
	}
	return picked
}

func tooClose(ts float64, picked []scored, spacing float64) bool {
	for _, p := range picked {
		if math.Abs(p.ts-ts) < spacing-1e-9 {
			return true
		}
	}
	return false
}

func sampleUniform(useful []span.MediaSpan, opts Options) []FrameSample {
	return uniformAcross(useful, opts, opts.MaxFrames)
}

// uniformAcross spaces n samples evenly over the concatenated useful spans.
func uniformAcross(useful []span.MediaSpan, opts Options, n int) []FrameSample {
	var eligible []span.MediaSpan
	achievable := 0
	for _, s := range useful {
		if c := capacity(s, opts); c > 0 {
			eligible = append(eligible, s)
			achievable += c
		}
	}
	n = min(n, achievable)
	if n <= 0 {
		return nil
	}
	total := span.Total(eligible)
	step := total / float64(n)

	out := make([]FrameSample, 0, n)
	idx, offset := 0, 0.0
	for k := 0; k < n; k++ {
		pos := (float64(k) + 0.5) * step
		for idx < len(eligible)-1 && pos >= offset+eligible[idx].Duration() {
			offset += eligible[idx].Duration()
			idx++
		}
		ts := eligible[idx].Start + (pos - offset)
		ts = math.Min(ts, math.Nextafter(eligible[idx].End, eligible[idx].Start))
		out = append(out, FrameSample{Timestamp: ts, Reason: ReasonUniform})
	}
	return out
}

func sampleMotion(useful []span.MediaSpan, opts Options) []FrameSample {
	var items []scored
	for _, s := range useful {
		if capacity(s, opts) == 0 {
			continue
		}
		for _, c := range candidates(s, opts.Profile) {
			items = append(items, scored{ts: c.Timestamp, score: c.Motion})
		}
	}
	if len(items) == 0 {
		return uniformAcross(useful, opts, opts.MaxFrames)
	}
	var out []FrameSample
	for _, p := range pickTop(items, opts.MaxFrames, opts.MinSpacing) {
		out = append(out, FrameSample{Timestamp: p.ts, Reason: ReasonMotion, Score: p.score})
	}
	return out
}

func sampleKeyframe(useful []span.MediaSpan, opts Options) []FrameSample {
	threshold := opts.SceneThreshold
	if threshold <= 0 {
		threshold = DefaultOptions().SceneThreshold
	}
	var scenes []scored
	p := opts.Profile
	for i := 1; i < len(p); i++ {
		d := p[i].HistogramDistance
		if d < threshold || d < p[i-1].HistogramDistance {
			continue
		}
		if i+1 < len(p) && d <= p[i+1].HistogramDistance {
			continue
		}
		if k := span.Find(useful, p[i].Timestamp); k < 0 || capacity(useful[k], opts) == 0 {
			continue
		}
		scenes = append(scenes, scored{ts: p[i].Timestamp, score: d})
	}
	picked := pickTop(scenes, opts.MaxFrames, opts.MinSpacing)

	out := make([]FrameSample, 0, opts.MaxFrames)
	for _, s := range picked {
		out = append(out, FrameSample{Timestamp: s.ts, Reason: ReasonSceneChange, Score: s.score})
	}
	if len(out) >= opts.MaxFrames {
		return out
	}
	// Backfill uniformly, skipping slots next to a scene change.
	for _, u := range uniformAcross(useful, opts, opts.MaxFrames) {
		if len(out) == opts.MaxFrames {
			break
		}
		if tooClose(u.Timestamp, picked, opts.MinSpacing) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func sampleIntelligent(useful []span.MediaSpan, opts Options) []FrameSample {
	alloc := Allocate(useful, opts)
	var out []FrameSample
	for i, s := range useful {
		n := alloc[i]
		if n == 0 {
			continue
		}
		out = append(out, pickInSpan(s, n, opts)...)
	}
	return out
}

// pickInSpan ranks coarse-scan candidates in s by motion and takes the top n,
// falling back to even spacing when there are not enough scored candidates.
func pickInSpan(s span.MediaSpan, n int, opts Options) []FrameSample {
	cands := candidates(s, opts.Profile)
	if len(cands) < n {
		return spread(s, n, ReasonProportional)
	}
	items := make([]scored, len(cands))
	for i, c := range cands {
		items[i] = scored{ts: c.Timestamp, score: c.Motion}
	}
	picked := pickTop(items, n, opts.MinSpacing)
	if len(picked) < n {
		return spread(s, n, ReasonProportional)
	}
	out := make([]FrameSample, len(picked))
	for i, p := range picked {
		out[i] = FrameSample{Timestamp: p.ts, Reason: ReasonProportional, Score: p.score}
	}
	return out
}

// Allocate splits the frame budget across spans in proportion to duration.
// Every span at least MinSpan long gets at least one frame while the budget
// allows; the result sums to min(MaxFrames, total capacity). Ties go to the
// longer span, then the earlier one.
func Allocate(spans []span.MediaSpan, opts Options) []int {
	if opts.MinSpacing <= 0 {
		opts.MinSpacing = DefaultOptions().MinSpacing
	}
	alloc := make([]int, len(spans))
	caps := make([]int, len(spans))
	var order []int
	achievable := 0
	total := 0.0
	for i, s := range spans {
		caps[i] = capacity(s, opts)
		if caps[i] > 0 {
			order = append(order, i)
			achievable += caps[i]
			total += s.Duration()
		}
	}
	target := min(opts.MaxFrames, achievable)
	if target <= 0 {
		return alloc
	}

	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := spans[order[a]], spans[order[b]]
		if sa.Duration() == sb.Duration() {
			return sa.Start < sb.Start
		}
		return sa.Duration() > sb.Duration()
	})

	if len(order) > target {
		for _, i := range order[:target] {
			alloc[i] = 1
		}
		return alloc
	}

	sum := 0
	for _, i := range order {
		n := int(math.Round(float64(target) * spans[i].Duration() / total))
		alloc[i] = min(max(n, 1), caps[i])
		sum += alloc[i]
	}
	for sum > target {
		for k := len(order) - 1; k >= 0 && sum > target; k-- {
			if i := order[k]; alloc[i] > 1 {
				alloc[i]--
				sum--
			}
		}
	}
	for sum < target {
		for _, i := range order {
			if sum == target {
				break
			}
			if alloc[i] < caps[i] {
				alloc[i]++
				sum++
			}
		}
	}
	return alloc
}
