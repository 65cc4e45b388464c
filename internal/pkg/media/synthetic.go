package media

import (
	"context"
	"fmt"
	"image"
	"math"
)

// Synthetic is an in-memory Source driven by generator functions.
type Synthetic struct {
	Length     float64
	Frames     func(ts float64) image.Image // nil yields mid-gray frames
	Samples    []float64
	SampleRate int
	Sequential bool // report no concurrent seek support
}

// Probe reports the configured length and streams.
func (s *Synthetic) Probe(ctx context.Context) (*Info, error) {
	if s.Length <= 0 {
		return nil, fmt.Errorf("%w: no duration", ErrUnreadable)
	}
	return &Info{
		Duration: s.Length,
		HasVideo: true,
		HasAudio: len(s.Samples) > 0,
		Width:    64,
		Height:   36,
		Format:   "synthetic",
	}, nil
}

// ScanFrames generates one frame per interval.
func (s *Synthetic) ScanFrames(ctx context.Context, interval float64, fn FrameFunc) error {
	if interval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %g", interval)
	}
	n := int(math.Ceil(s.Length / interval))
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ts := float64(i) * interval
		if err := fn(ts, s.frame(ts)); err != nil {
			return err
		}
	}
	return nil
}

// Frame returns the generated frame at ts.
func (s *Synthetic) Frame(ctx context.Context, ts float64, maxWidth int) (image.Image, error) {
	if ts < 0 || ts >= s.Length {
		return nil, fmt.Errorf("timestamp %.3f outside [0, %.3f)", ts, s.Length)
	}
	return s.frame(ts), nil
}

// Audio returns the configured samples.
func (s *Synthetic) Audio(ctx context.Context, sampleRate int) (*PCM, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Samples) == 0 {
		return nil, ErrNoAudio
	}
	rate := s.SampleRate
	if rate <= 0 {
		rate = sampleRate
	}
	return &PCM{Samples: s.Samples, SampleRate: rate}, nil
}

func (s *Synthetic) ConcurrentSeek() bool { return !s.Sequential }

func (s *Synthetic) Close() error { return nil }

func (s *Synthetic) frame(ts float64) image.Image {
	if s.Frames != nil {
		return s.Frames(ts)
	}
	img := image.NewGray(image.Rect(0, 0, 64, 36))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}
