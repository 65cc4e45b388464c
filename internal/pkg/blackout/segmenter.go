package blackout

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"videoanalyzer/internal/pkg/media"
	"videoanalyzer/internal/pkg/signal"
	"videoanalyzer/internal/pkg/span"
)

// ErrUnknownSensitivity is returned for sensitivity names with no preset.
var ErrUnknownSensitivity = errors.New("blackout: unknown sensitivity")

// Sensitivity selects a threshold preset.
type Sensitivity string

const (
	SensitivityLow     Sensitivity = "low"
	SensitivityDefault Sensitivity = "default"
	SensitivityHigh    Sensitivity = "high"
)

// Thresholds decide when a sampled frame counts as blackout.
type Thresholds struct {
	MaxMeanBrightness    float64 // blackout when mean brightness is below this
	MaxDarkPixelFraction float64 // or when the dark-pixel fraction exceeds this
	DarkPixelThreshold   uint8
}

var presets = map[Sensitivity]Thresholds{
	SensitivityLow:     {MaxMeanBrightness: 15, MaxDarkPixelFraction: 0.8, DarkPixelThreshold: signal.DefaultDarkThreshold},
	SensitivityDefault: {MaxMeanBrightness: 20, MaxDarkPixelFraction: 0.6, DarkPixelThreshold: signal.DefaultDarkThreshold},
	SensitivityHigh:    {MaxMeanBrightness: 25, MaxDarkPixelFraction: 0.5, DarkPixelThreshold: signal.DefaultDarkThreshold},
}

// ParseSensitivity maps a config value to a preset name. Empty means default.
func ParseSensitivity(s string) (Sensitivity, error) {
	if s == "" {
		return SensitivityDefault, nil
	}
	v := Sensitivity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSensitivity, s)
	}
	return v, nil
}

// Thresholds returns the preset values.
func (s Sensitivity) Thresholds() Thresholds {
	if t, ok := presets[s]; ok {
		return t
	}
	return presets[SensitivityDefault]
}

// IsBlackout classifies one darkness measurement.
func (t Thresholds) IsBlackout(d signal.DarknessScore) bool {
	return d.MeanBrightness < t.MaxMeanBrightness || d.DarkPixelFraction > t.MaxDarkPixelFraction
}

// Result is the outcome of one blackout scan.
type Result struct {
	Duration float64              `json:"duration_seconds"`
	Interval float64              `json:"sample_interval_seconds"`
	Blackout []span.MediaSpan     `json:"blackout_segments"`
	Useful   []span.MediaSpan     `json:"useful_segments"`
	Profile  []signal.FrameSignal `json:"-"`
}

// UsefulFraction is the share of the duration not covered by blackout.
func (r *Result) UsefulFraction() float64 {
	if r == nil || r.Duration <= 0 {
		return 0
	}
	return span.Total(r.Useful) / r.Duration
}

// Segmenter turns darkness scores sampled at a fixed interval into spans.
// Scores must be pushed in ascending timestamp order.
type Segmenter struct {
	thresholds Thresholds
	interval   float64
	spans      []span.MediaSpan
	open       *span.MediaSpan
}

// NewSegmenter creates a segmenter for samples taken every interval seconds.
func NewSegmenter(t Thresholds, interval float64) *Segmenter {
	return &Segmenter{thresholds: t, interval: interval}
}

// Push classifies one sample and extends or closes the current run.
// A blackout sample at t covers [t, t+interval).
func (s *Segmenter) Push(d signal.DarknessScore) {
	if !s.thresholds.IsBlackout(d) {
		return
	}
	end := d.Timestamp + s.interval
	// open.End is the previous blackout timestamp plus one interval.
	if s.open != nil && d.Timestamp <= s.open.End+1e-9 {
		s.open.End = math.Max(s.open.End, end)
		return
	}
	s.flush()
	s.open = &span.MediaSpan{Start: d.Timestamp, End: end}
}

func (s *Segmenter) flush() {
	if s.open != nil {
		s.spans = append(s.spans, *s.open)
		s.open = nil
	}
}

// Finish clamps spans to [0, duration) and returns blackout and useful spans.
func (s *Segmenter) Finish(duration float64) ([]span.MediaSpan, []span.MediaSpan) {
	s.flush()
	var blackout []span.MediaSpan
	for _, sp := range s.spans {
		sp.Start = math.Max(sp.Start, 0)
		sp.End = math.Min(sp.End, duration)
		if sp.Start < sp.End {
			blackout = append(blackout, sp)
		}
	}
	blackout = span.Merge(blackout, 0)
	return blackout, span.Complement(blackout, duration)
}

// Config controls a blackout scan.
type Config struct {
	Sensitivity Sensitivity
	Interval    float64 // seconds between sampled frames
}

// DefaultConfig samples once per second with default thresholds.
func DefaultConfig() Config {
	return Config{Sensitivity: SensitivityDefault, Interval: 1.0}
}

// Scan samples src across its whole duration, segments blackout, and records
// the coarse motion profile reused by the frame sampler.
func Scan(ctx context.Context, src media.Source, duration float64, cfg Config) (*Result, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	t := cfg.Sensitivity.Thresholds()
	seg := NewSegmenter(t, cfg.Interval)

	var (
		profile  []signal.FrameSignal
		prev     *signal.Luma
		prevHist signal.Histogram
	)
	err := src.ScanFrames(ctx, cfg.Interval, func(ts float64, img image.Image) error {
		if ts >= duration {
			return nil
		}
		l := signal.NewLuma(img)
		score := l.Score(ts, t.DarkPixelThreshold)
		seg.Push(score)

		fs := signal.FrameSignal{DarknessScore: score}
		hist := l.Histogram()
		if prev != nil {
			fs.Motion = signal.FrameDiff(prev, l)
			fs.HistogramDistance = signal.HistogramDistance(prevHist, hist)
		}
		profile = append(profile, fs)
		prev, prevHist = l, hist
		return nil
	})
	if err != nil {
		return nil, err
	}

	blackout, useful := seg.Finish(duration)
	localizeProfile(profile, useful)
	return &Result{
		Duration: duration,
		Interval: cfg.Interval,
		Blackout: blackout,
		Useful:   useful,
		Profile:  profile,
	}, nil
}

// localizeProfile clears the inter-frame measures of samples whose
// predecessor lies outside their useful span, so leaving a blackout does
// not score as motion.
func localizeProfile(profile []signal.FrameSignal, useful []span.MediaSpan) {
	for i := 1; i < len(profile); i++ {
		cur := span.Find(useful, profile[i].Timestamp)
		if cur < 0 || cur != span.Find(useful, profile[i-1].Timestamp) {
			profile[i].Motion = 0
			profile[i].HistogramDistance = 0
		}
	}
}
