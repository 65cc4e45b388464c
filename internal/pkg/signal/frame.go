package signal

import (
	"image"
	"image/color"
	"math"
)

// DefaultDarkThreshold is the luma value below which a pixel counts as dark (15/255).
const DefaultDarkThreshold uint8 = 15

// HistogramBins is the number of luma buckets used for scene-change distance.
const HistogramBins = 32

// DarknessScore is the per-sample measurement consumed by the blackout segmenter.
type DarknessScore struct {
	Timestamp         float64 `json:"timestamp"`
	MeanBrightness    float64 `json:"mean_brightness"`
	DarkPixelFraction float64 `json:"dark_pixel_fraction"`
}

// FrameSignal is one coarse-scan sample with its inter-frame measures.
// Motion and HistogramDistance compare against the previous scan sample
// and are zero for the first one.
type FrameSignal struct {
	DarknessScore
	Motion            float64 `json:"motion"`
	HistogramDistance float64 `json:"histogram_distance"`
}

// Luma is an 8-bit luminance plane.
type Luma struct {
	Pix  []uint8
	W, H int
}

// NewLuma extracts the luminance plane of img.
func NewLuma(img image.Image) *Luma {
	b := img.Bounds()
	l := &Luma{W: b.Dx(), H: b.Dy(), Pix: make([]uint8, b.Dx()*b.Dy())}

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < l.H; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(l.Pix[y*l.W:(y+1)*l.W], src.Pix[off:off+l.W])
		}
	case *image.YCbCr:
		for y := 0; y < l.H; y++ {
			off := src.YOffset(b.Min.X, b.Min.Y+y)
			copy(l.Pix[y*l.W:(y+1)*l.W], src.Y[off:off+l.W])
		}
	default:
		for y := 0; y < l.H; y++ {
			for x := 0; x < l.W; x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				l.Pix[y*l.W+x] = g.Y
			}
		}
	}
	return l
}

// Darkness returns mean brightness (0-255) and the fraction of pixels below threshold.
func (l *Luma) Darkness(threshold uint8) (mean, darkFraction float64) {
	if len(l.Pix) == 0 {
		return 0, 1
	}
	var sum, dark int
	for _, p := range l.Pix {
		sum += int(p)
		if p < threshold {
			dark++
		}
	}
	n := float64(len(l.Pix))
	return float64(sum) / n, float64(dark) / n
}

// Score measures darkness for the sample at ts.
func (l *Luma) Score(ts float64, threshold uint8) DarknessScore {
	mean, frac := l.Darkness(threshold)
	return DarknessScore{Timestamp: ts, MeanBrightness: mean, DarkPixelFraction: frac}
}

// Histogram is a normalised luma histogram.
type Histogram [HistogramBins]float64

// Histogram buckets the plane into HistogramBins bins summing to 1.
func (l *Luma) Histogram() Histogram {
	var h Histogram
	if len(l.Pix) == 0 {
		return h
	}
	for _, p := range l.Pix {
		h[int(p)*HistogramBins/256]++
	}
	n := float64(len(l.Pix))
	for i := range h {
		h[i] /= n
	}
	return h
}

// HistogramDistance is half the L1 distance between two histograms, in [0, 1].
func HistogramDistance(a, b Histogram) float64 {
	var d float64
	for i := range a {
		d += math.Abs(a[i] - b[i])
	}
	return d / 2
}

// FrameDiff is the mean absolute luma difference normalised to [0, 1].
// Planes of different sizes are compared by nearest-neighbour sampling of b.
func FrameDiff(a, b *Luma) float64 {
	if a == nil || b == nil || len(a.Pix) == 0 || len(b.Pix) == 0 {
		return 0
	}
	var sum int
	if a.W == b.W && a.H == b.H {
		for i, p := range a.Pix {
			sum += absDiff(p, b.Pix[i])
		}
	} else {
		for y := 0; y < a.H; y++ {
			by := y * b.H / a.H
			for x := 0; x < a.W; x++ {
				bx := x * b.W / a.W
				sum += absDiff(a.Pix[y*a.W+x], b.Pix[by*b.W+bx])
			}
		}
	}
	return float64(sum) / (255 * float64(len(a.Pix)))
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
