package signal

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestLumaDarkness(t *testing.T) {
	tests := []struct {
		name     string
		img      image.Image
		wantMean float64
		wantDark float64
	}{
		{"black", uniformGray(8, 8, 0), 0, 1},
		{"white", uniformGray(8, 8, 255), 255, 0},
		{"just above threshold", uniformGray(4, 4, 15), 15, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, dark := NewLuma(tt.img).Darkness(DefaultDarkThreshold)
			if mean != tt.wantMean {
				t.Errorf("Expected mean %f, got %f", tt.wantMean, mean)
			}
			if dark != tt.wantDark {
				t.Errorf("Expected dark fraction %f, got %f", tt.wantDark, dark)
			}
		})
	}
}

func TestNewLumaRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	l := NewLuma(img)
	if l.W != 2 || l.H != 2 {
		t.Fatalf("Expected 2x2 plane, got %dx%d", l.W, l.H)
	}
	for _, p := range l.Pix {
		if p != 255 {
			t.Errorf("Expected white luma 255, got %d", p)
		}
	}
}

func TestFrameDiff(t *testing.T) {
	black := NewLuma(uniformGray(4, 4, 0))
	white := NewLuma(uniformGray(4, 4, 255))
	if d := FrameDiff(black, black); d != 0 {
		t.Errorf("Expected identical frames to differ by 0, got %f", d)
	}
	if d := FrameDiff(black, white); d != 1 {
		t.Errorf("Expected black/white diff 1, got %f", d)
	}
	small := NewLuma(uniformGray(2, 2, 255))
	if d := FrameDiff(black, small); d != 1 {
		t.Errorf("Expected resized compare diff 1, got %f", d)
	}
}

func TestHistogramDistance(t *testing.T) {
	black := NewLuma(uniformGray(4, 4, 0)).Histogram()
	white := NewLuma(uniformGray(4, 4, 255)).Histogram()
	if d := HistogramDistance(black, black); d != 0 {
		t.Errorf("Expected 0, got %f", d)
	}
	if d := HistogramDistance(black, white); d != 1 {
		t.Errorf("Expected 1, got %f", d)
	}
}

func TestRMSAndSNR(t *testing.T) {
	if r := RMS([]float64{0.5, -0.5, 0.5, -0.5}); r != 0.5 {
		t.Errorf("Expected RMS 0.5, got %f", r)
	}
	if r := RMS(nil); r != 0 {
		t.Errorf("Expected RMS 0 for empty input, got %f", r)
	}
	if s := SNR(0.1, 0.01); math.Abs(s-20) > 1e-9 {
		t.Errorf("Expected SNR 20dB, got %f", s)
	}
	if s := SNR(0.1, 0); s != MaxSNR {
		t.Errorf("Expected capped SNR, got %f", s)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2, 5}
	if p := Percentile(values, 50); p != 3 {
		t.Errorf("Expected median 3, got %f", p)
	}
	if p := Percentile(values, 0); p != 1 {
		t.Errorf("Expected min 1, got %f", p)
	}
	if p := Percentile(values, 25); p != 2 {
		t.Errorf("Expected p25 2, got %f", p)
	}
	if values[0] != 4 {
		t.Error("Expected input to be left unsorted")
	}
}
