package media

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"

	"videoanalyzer/internal/pkg/span"
)

var (
	// ErrNoAudio is returned by Audio when the container has no audio stream.
	ErrNoAudio = errors.New("media: no audio stream")
	// ErrUnreadable is returned when the container cannot be probed or decoded.
	ErrUnreadable = errors.New("media: unreadable")
)

// Info describes a probed media file.
type Info struct {
	Duration float64 `json:"duration_seconds"`
	HasVideo bool    `json:"has_video"`
	HasAudio bool    `json:"has_audio"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Format   string  `json:"format"`
}

// PCM is a mono waveform with samples in [-1, 1].
type PCM struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (p *PCM) Duration() float64 {
	if p == nil || p.SampleRate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// Slice returns the samples covered by s, clamped to the waveform.
func (p *PCM) Slice(s span.MediaSpan) []float64 {
	if p == nil || p.SampleRate <= 0 {
		return nil
	}
	lo := int(math.Floor(s.Start * float64(p.SampleRate)))
	hi := int(math.Ceil(s.End * float64(p.SampleRate)))
	lo = max(lo, 0)
	hi = min(hi, len(p.Samples))
	if lo >= hi {
		return nil
	}
	return p.Samples[lo:hi]
}

// FrameFunc receives one scanned frame. Returning an error stops the scan.
type FrameFunc func(ts float64, img image.Image) error

// Source is a read-only handle on one media file, opened once per run.
type Source interface {
	// Probe returns container metadata.
	Probe(ctx context.Context) (*Info, error)
	// ScanFrames calls fn for one low-resolution frame every interval
	// seconds across the whole duration, in order. It may be called again.
	ScanFrames(ctx context.Context, interval float64, fn FrameFunc) error
	// Frame decodes the frame at ts scaled to at most maxWidth pixels wide.
	Frame(ctx context.Context, ts float64, maxWidth int) (image.Image, error)
	// Audio decodes the full audio track as mono PCM.
	Audio(ctx context.Context, sampleRate int) (*PCM, error)
	// ConcurrentSeek reports whether Frame may be called from several goroutines.
	ConcurrentSeek() bool
	Close() error
}

type lockedSource struct {
	Source
	mu sync.Mutex
}

// Locked serialises Frame and Audio through one decode lock when src does
// not support concurrent seeks. Sources that do are returned unchanged.
func Locked(src Source) Source {
	if src.ConcurrentSeek() {
		return src
	}
	return &lockedSource{Source: src}
}

func (s *lockedSource) Frame(ctx context.Context, ts float64, maxWidth int) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Source.Frame(ctx, ts, maxWidth)
}

func (s *lockedSource) Audio(ctx context.Context, sampleRate int) (*PCM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Source.Audio(ctx, sampleRate)
}

func (s *lockedSource) ConcurrentSeek() bool { return true }
