package coverage

import (
	"math"

	"videoanalyzer/internal/pkg/span"
	"videoanalyzer/internal/pkg/timeline"
)

// SectionStatus marks whether one part of the report has data.
// An unavailable section is reported, never omitted.
type SectionStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Available is the status of a section with data.
var Available = SectionStatus{Available: true}

// Unavailable returns the status of a section without data.
func Unavailable(reason string) SectionStatus {
	return SectionStatus{Reason: reason}
}

// Cost is an estimate in the pricing currency.
type Cost struct {
	Frames float64 `json:"frames"`
	Audio  float64 `json:"audio"`
	Total  float64 `json:"total"`
}

// Distribution counts entries per confidence bucket.
type Distribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Add counts one confidence value: low <0.5, medium 0.5 to 0.75, high >0.75.
func (d *Distribution) Add(confidence float64) {
	switch {
	case confidence < 0.5:
		d.Low++
	case confidence <= 0.75:
		d.Medium++
	default:
		d.High++
	}
}

// Pricing holds per-call costs for the external capabilities.
type Pricing struct {
	CostPerFrame       float64 `json:"cost_per_frame"`
	LocalTranscription bool    `json:"local_transcription"`
	CostPerAudioSecond float64 `json:"cost_per_audio_second"`
}

// Input is everything the reporter reads. It is not modified.
type Input struct {
	Duration               float64
	Useful                 []span.MediaSpan
	BlackoutApplied        bool
	FramesAnalyzed         int
	DegradedUnits          int
	SpeechSeconds          float64
	DiscardedLowConfidence int
	Entries                []timeline.Entry
	Resolution             timeline.Resolution
	Visual                 SectionStatus
	Audio                  SectionStatus
	Cancelled              bool
}

// Report summarises one run.
type Report struct {
	DurationSeconds          float64       `json:"duration_seconds"`
	UsefulSeconds            float64       `json:"useful_seconds"`
	UsefulFraction           float64       `json:"useful_fraction"`
	UsefulContentPercentage  float64       `json:"useful_content_percentage"`
	BlackoutFilteringApplied bool          `json:"blackout_filtering_applied"`
	FramesAnalyzed           int           `json:"frames_analyzed"`
	DegradedUnits            int           `json:"degraded_units"`
	SpeechSeconds            float64       `json:"speech_seconds"`
	DiscardedLowConfidence   int           `json:"discarded_low_confidence"`
	Cost                     Cost          `json:"cost_estimate"`
	ConfidenceDistribution   Distribution  `json:"confidence_distribution"`
	RealTimeAssigned         bool          `json:"real_time_assigned"`
	RealTimeCaveat           bool          `json:"real_time_caveat"`
	RealTimeNote             string        `json:"real_time_note,omitempty"`
	Visual                   SectionStatus `json:"visual"`
	Audio                    SectionStatus `json:"audio"`
	Cancelled                bool          `json:"cancelled"`
}

// Compute derives the report. It has no side effects.
func Compute(in Input, p Pricing) Report {
	r := Report{
		DurationSeconds:          in.Duration,
		BlackoutFilteringApplied: in.BlackoutApplied,
		FramesAnalyzed:           in.FramesAnalyzed,
		DegradedUnits:            in.DegradedUnits,
		SpeechSeconds:            in.SpeechSeconds,
		DiscardedLowConfidence:   in.DiscardedLowConfidence,
		RealTimeAssigned:         in.Resolution.Clock != nil,
		RealTimeCaveat:           in.Resolution.Caveat == timeline.CaveatAnchorsDisagree,
		RealTimeNote:             string(in.Resolution.Caveat),
		Visual:                   in.Visual,
		Audio:                    in.Audio,
		Cancelled:                in.Cancelled,
	}

	r.UsefulSeconds = span.Total(in.Useful)
	if in.Duration > 0 {
		r.UsefulFraction = math.Min(1, r.UsefulSeconds/in.Duration)
	}
	r.UsefulContentPercentage = round(r.UsefulFraction*100, 2)

	r.Cost.Frames = float64(in.FramesAnalyzed) * p.CostPerFrame
	if !p.LocalTranscription {
		r.Cost.Audio = in.SpeechSeconds * p.CostPerAudioSecond
	}
	r.Cost.Total = r.Cost.Frames + r.Cost.Audio

	for _, e := range in.Entries {
		r.ConfidenceDistribution.Add(e.Confidence)
	}
	return r
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
