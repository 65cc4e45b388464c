package speech

import (
	"math"

	"videoanalyzer/internal/pkg/media"
	"videoanalyzer/internal/pkg/signal"
	"videoanalyzer/internal/pkg/span"
)

// SegmenterConfig controls energy-based speech detection.
type SegmenterConfig struct {
	WindowSeconds   float64 // RMS window length
	HopSeconds      float64 // distance between window starts
	MinSpeechEnergy float64 // absolute floor for the noise threshold
	NoisePercentile float64 // percentile of window RMS taken as background noise
	NoiseMultiplier float64 // threshold = max(MinSpeechEnergy, multiplier * noise)
	MinSilence      float64 // quiet runs longer than this split speech
	MinSpeech       float64 // shorter fragments are coalesced into a neighbour or dropped
	CoalesceGap     float64 // segments closer than this are merged
}

// DefaultSegmenterConfig returns default configuration.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		WindowSeconds:   0.025,
		HopSeconds:      0.010,
		MinSpeechEnergy: 0.005,
		NoisePercentile: 10,
		NoiseMultiplier: 2.0,
		MinSilence:      0.5,
		MinSpeech:       0.1,
		CoalesceGap:     0.8,
	}
}

// SpeechSegment is one contiguous non-silent span of audio.
type SpeechSegment struct {
	Span      span.MediaSpan `json:"span"`
	RMSEnergy float64        `json:"rms_energy"`
	SNRDB     float64        `json:"snr_db"`
}

// Segmentation is the result of segmenting one audio track.
type Segmentation struct {
	Segments      []SpeechSegment
	NoiseFloor    float64 // RMS threshold separating speech from silence
	NoiseRMS      float64
	SpeechSeconds float64
}

// Segment splits the whole waveform into speech segments. It never sub-samples.
func Segment(pcm *media.PCM, cfg SegmenterConfig) Segmentation {
	def := DefaultSegmenterConfig()
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = def.WindowSeconds
	}
	if cfg.HopSeconds <= 0 {
		cfg.HopSeconds = def.HopSeconds
	}
	if pcm == nil || pcm.SampleRate <= 0 || len(pcm.Samples) == 0 {
		return Segmentation{}
	}

	rate := float64(pcm.SampleRate)
	win := max(1, int(math.Round(cfg.WindowSeconds*rate)))
	hop := max(1, int(math.Round(cfg.HopSeconds*rate)))

	var energies []float64
	for start := 0; start < len(pcm.Samples); start += hop {
		end := min(start+win, len(pcm.Samples))
		energies = append(energies, signal.RMS(pcm.Samples[start:end]))
	}

	noise := signal.Percentile(energies, cfg.NoisePercentile)
	floor := math.Max(cfg.MinSpeechEnergy, cfg.NoiseMultiplier*noise)

	var voiced []span.MediaSpan
	for i, e := range energies {
		if e < floor {
			continue
		}
		start := float64(i*hop) / rate
		end := math.Min(float64(i*hop+win), float64(len(pcm.Samples))) / rate
		voiced = append(voiced, span.MediaSpan{Start: start, End: end})
	}

	// Speech split by less than CoalesceGap of silence stays one segment.
	spans := coalesce(span.Merge(voiced, math.Max(cfg.MinSilence, cfg.CoalesceGap)), cfg)

	seg := Segmentation{NoiseFloor: floor, NoiseRMS: noise}
	for _, s := range spans {
		rms := signal.RMS(pcm.Slice(s))
		seg.Segments = append(seg.Segments, SpeechSegment{
			Span:      s,
			RMSEnergy: rms,
			SNRDB:     signal.SNR(rms, noise),
		})
		seg.SpeechSeconds += s.Duration()
	}
	return seg
}

// coalesce folds fragments shorter than MinSpeech into a neighbour within
// CoalesceGap and drops the ones that are isolated.
func coalesce(spans []span.MediaSpan, cfg SegmenterConfig) []span.MediaSpan {
	var out []span.MediaSpan
	pending := -1.0
	for i, s := range spans {
		if pending >= 0 {
			s.Start = pending
			pending = -1
		}
		if s.Duration() >= cfg.MinSpeech {
			out = append(out, s)
			continue
		}
		if n := len(out); n > 0 && s.Start-out[n-1].End <= cfg.CoalesceGap {
			out[n-1].End = s.End
			continue
		}
		if i+1 < len(spans) && spans[i+1].Start-s.End <= cfg.CoalesceGap {
			pending = s.Start
		}
	}
	return out
}
