package blackout

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand"
	"testing"

	"videoanalyzer/internal/pkg/media"
	"videoanalyzer/internal/pkg/sampler"
	"videoanalyzer/internal/pkg/signal"
	"videoanalyzer/internal/pkg/span"
)

func grayFrame(v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 32, 18))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestParseSensitivity(t *testing.T) {
	for _, name := range []string{"", "low", "DEFAULT", " high "} {
		if _, err := ParseSensitivity(name); err != nil {
			t.Errorf("ParseSensitivity(%q) unexpected error: %v", name, err)
		}
	}
	if _, err := ParseSensitivity("extreme"); !errors.Is(err, ErrUnknownSensitivity) {
		t.Errorf("Expected ErrUnknownSensitivity, got %v", err)
	}
}

func TestThresholdsIsBlackout(t *testing.T) {
	th := SensitivityDefault.Thresholds()
	tests := []struct {
		name  string
		score signal.DarknessScore
		want  bool
	}{
		{"black", signal.DarknessScore{MeanBrightness: 0, DarkPixelFraction: 1}, true},
		{"dim but textured", signal.DarknessScore{MeanBrightness: 19, DarkPixelFraction: 0.1}, true},
		{"mostly dark pixels", signal.DarknessScore{MeanBrightness: 60, DarkPixelFraction: 0.65}, true},
		{"normal", signal.DarknessScore{MeanBrightness: 120, DarkPixelFraction: 0.05}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.IsBlackout(tt.score); got != tt.want {
				t.Errorf("IsBlackout() = %v; want %v", got, tt.want)
			}
		})
	}

	low := SensitivityLow.Thresholds()
	if low.IsBlackout(signal.DarknessScore{MeanBrightness: 19, DarkPixelFraction: 0.1}) {
		t.Error("Expected low sensitivity to keep a dim frame")
	}
}

func TestSegmenterSingleFlash(t *testing.T) {
	seg := NewSegmenter(SensitivityDefault.Thresholds(), 1)
	for i := 0; i < 10; i++ {
		score := signal.DarknessScore{Timestamp: float64(i), MeanBrightness: 128}
		if i == 4 {
			score.MeanBrightness = 0
		}
		seg.Push(score)
	}
	blackout, useful := seg.Finish(10)
	if len(blackout) != 1 || blackout[0] != (span.MediaSpan{Start: 4, End: 5}) {
		t.Errorf("Expected one-second blackout [4,5), got %v", blackout)
	}
	if len(useful) != 2 {
		t.Errorf("Expected two useful spans, got %v", useful)
	}
}

func TestScanLeadingBlackout(t *testing.T) {
	src := &media.Synthetic{
		Length: 600,
		Frames: func(ts float64) image.Image {
			if ts < 120 {
				return grayFrame(0)
			}
			return grayFrame(140)
		},
	}
	res, err := Scan(context.Background(), src, 600, DefaultConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(res.Blackout) != 1 || res.Blackout[0] != (span.MediaSpan{Start: 0, End: 120}) {
		t.Errorf("Expected blackout [[0,120]], got %v", res.Blackout)
	}
	if pct := res.UsefulFraction() * 100; math.Abs(pct-80) > 0.01 {
		t.Errorf("Expected 80%% useful content, got %f", pct)
	}
	if len(res.Profile) != 600 {
		t.Errorf("Expected 600 profile samples, got %d", len(res.Profile))
	}
	if res.Profile[120].Motion != 0 || res.Profile[120].HistogramDistance != 0 {
		t.Errorf("Expected no motion at the blackout exit, got %+v", res.Profile[120])
	}
}

func TestScanMotionIsLocalToUsefulSpan(t *testing.T) {
	src := &media.Synthetic{
		Length: 60,
		Frames: func(ts float64) image.Image {
			switch {
			case ts < 20:
				return grayFrame(0)
			case ts < 40:
				return grayFrame(120)
			}
			return grayFrame(200)
		},
	}
	res, err := Scan(context.Background(), src, 60, DefaultConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if res.Profile[20].Motion != 0 {
		t.Errorf("Expected no motion at t=20, got %f", res.Profile[20].Motion)
	}
	if res.Profile[40].Motion == 0 || res.Profile[40].HistogramDistance == 0 {
		t.Errorf("Expected the scene change at t=40 to register, got %+v", res.Profile[40])
	}

	for _, strategy := range []sampler.Strategy{sampler.Intelligent, sampler.Motion} {
		opts := sampler.DefaultOptions()
		opts.MaxFrames = 1
		opts.Strategy = strategy
		opts.Profile = res.Profile
		frames, err := sampler.Sample(res.Useful, opts)
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		if len(frames) != 1 || frames[0].Timestamp != 40 {
			t.Errorf("%s: expected the frame at t=40, got %+v", strategy, frames)
		}
	}
}

func TestScanEntirelyDark(t *testing.T) {
	src := &media.Synthetic{Length: 30, Frames: func(float64) image.Image { return grayFrame(3) }}
	res, err := Scan(context.Background(), src, 30, DefaultConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(res.Blackout) != 1 || res.Blackout[0] != (span.MediaSpan{Start: 0, End: 30}) {
		t.Errorf("Expected blackout covering [0,30), got %v", res.Blackout)
	}
	if len(res.Useful) != 0 {
		t.Errorf("Expected no useful spans, got %v", res.Useful)
	}
}

func TestScanCoversDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		duration := 5 + rng.Float64()*60
		dark := make(map[int]bool)
		for i := 0; i < int(duration)+1; i++ {
			dark[i] = rng.Intn(3) == 0
		}
		src := &media.Synthetic{
			Length: duration,
			Frames: func(ts float64) image.Image {
				if dark[int(ts)] {
					return grayFrame(0)
				}
				return grayFrame(200)
			},
		}
		res, err := Scan(context.Background(), src, duration, DefaultConfig())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		all := append(append([]span.MediaSpan{}, res.Blackout...), res.Useful...)
		span.Sort(all)
		cursor := 0.0
		for _, s := range all {
			if math.Abs(s.Start-cursor) > 1e-9 {
				t.Fatalf("trial %d: gap or overlap at %f (spans %v)", trial, cursor, all)
			}
			if s.Start >= s.End {
				t.Fatalf("trial %d: empty span %v", trial, s)
			}
			cursor = s.End
		}
		if math.Abs(cursor-duration) > 1e-9 {
			t.Fatalf("trial %d: spans end at %f, want %f", trial, cursor, duration)
		}
		for i := 1; i < len(res.Blackout); i++ {
			if res.Blackout[i].Start <= res.Blackout[i-1].End {
				t.Fatalf("trial %d: blackout spans not disjoint and sorted: %v", trial, res.Blackout)
			}
		}
	}
}
