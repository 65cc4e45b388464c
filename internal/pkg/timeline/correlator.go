package timeline

import (
	"sort"
	"time"

	"videoanalyzer/internal/pkg/span"
)

// Source identifies which input stream produced an entry.
type Source string

const (
	SourceFrame Source = "frame"
	SourceAudio Source = "audio"
	SourceOCR   Source = "ocr"
)

func (s Source) rank() int {
	switch s {
	case SourceFrame:
		return 0
	case SourceAudio:
		return 1
	default:
		return 2
	}
}

// Severity of a violation-tagged entry.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// ContentKind says which part of an entry's content is populated.
type ContentKind string

const (
	ContentFinding     ContentKind = "finding"
	ContentTranscript  ContentKind = "transcript"
	ContentAnchor      ContentKind = "anchor"
	ContentPlaceholder ContentKind = "placeholder"
)

// FrameResult is one classified (or failed) frame.
type FrameResult struct {
	Timestamp   float64
	Violations  []string
	Description string
	Confidence  float64
	Failed      bool
	Error       string
}

// Transcript is one accepted transcript segment.
type Transcript struct {
	Span       span.MediaSpan `json:"span"`
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence"`
	Language   string         `json:"language,omitempty"`
}

// FailedSegment is a speech segment whose transcription exhausted retries.
type FailedSegment struct {
	Span  span.MediaSpan
	Error string
}

// Entry is one correlated timeline record.
type Entry struct {
	VideoTime    float64     `json:"timestamp"`
	RealTime     *time.Time  `json:"real_time,omitempty"`
	Source       Source      `json:"source"`
	Confidence   float64     `json:"confidence"`
	Severity     Severity    `json:"severity,omitempty"`
	Kind         ContentKind `json:"content"`
	Violations   []string    `json:"violations"`
	Description  string      `json:"description"`
	EndTime      float64     `json:"end_timestamp,omitempty"`
	Corroborated bool        `json:"audio_corroborated,omitempty"`
	Group        int         `json:"group"`
}

// Weigher returns the severity weight of a set of violation tags.
type Weigher interface {
	Weight(tags []string) float64
}

// Config controls correlation.
type Config struct {
	Window                  float64 // co-occurrence window in seconds
	AnchorMinConfidence     float64
	AnchorTolerance         float64 // max disagreement between anchor offsets, seconds
	CorroborationConfidence float64 // transcripts at or above this escalate nearby findings
	HighScore               float64
	MediumScore             float64
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Window:                  2.0,
		AnchorMinConfidence:     0.5,
		AnchorTolerance:         2.0,
		CorroborationConfidence: 0.7,
		HighScore:               0.75,
		MediumScore:             0.5,
	}
}

// Input holds the three streams to merge. Order within each slice does not matter.
type Input struct {
	Frames      []FrameResult
	Transcripts []Transcript
	Failed      []FailedSegment
	Anchors     []Anchor
}

// Result is the merged timeline.
type Result struct {
	Entries    []Entry
	Resolution Resolution
}

// Correlator merges frame, audio and OCR streams into one timeline.
type Correlator struct {
	cfg     Config
	weigher Weigher
}

// NewCorrelator creates a correlator.
func NewCorrelator(cfg Config, weigher Weigher) *Correlator {
	return &Correlator{cfg: cfg, weigher: weigher}
}

// Severity grades a finding. Monotonic in confidence; corroboration raises it by one level.
func (c *Correlator) Severity(confidence, weight float64, corroborated bool) Severity {
	score := confidence * weight
	sev := SeverityLow
	switch {
	case score >= c.cfg.HighScore:
		sev = SeverityHigh
	case score >= c.cfg.MediumScore:
		sev = SeverityMedium
	}
	if corroborated {
		sev = sev.escalate()
	}
	return sev
}

func (c *Correlator) corroborated(t float64, transcripts []Transcript) bool {
	for _, tr := range transcripts {
		if tr.Confidence >= c.cfg.CorroborationConfidence && tr.Span.Near(t, c.cfg.Window) {
			return true
		}
	}
	return false
}

// Correlate builds the timeline. Entries are ordered by video time, then
// frame before audio before OCR. Sources are never collapsed.
func (c *Correlator) Correlate(in Input) Result {
	res := Result{Resolution: ResolveClock(in.Anchors, c.cfg.AnchorMinConfidence, c.cfg.AnchorTolerance)}

	entries := make([]Entry, 0, len(in.Frames)+len(in.Transcripts)+len(in.Failed)+len(in.Anchors))
	for _, f := range in.Frames {
		e := Entry{
			VideoTime:   f.Timestamp,
			Source:      SourceFrame,
			Confidence:  f.Confidence,
			Violations:  nonNil(f.Violations),
			Description: f.Description,
			Kind:        ContentFinding,
		}
		if f.Failed {
			e.Kind = ContentPlaceholder
			e.Confidence = 0
			e.Violations = []string{}
			e.Description = "classification failed"
			if f.Error != "" {
				e.Description += ": " + f.Error
			}
		} else if len(f.Violations) > 0 {
			e.Corroborated = c.corroborated(f.Timestamp, in.Transcripts)
			e.Severity = c.Severity(f.Confidence, c.weigher.Weight(f.Violations), e.Corroborated)
		}
		entries = append(entries, e)
	}
	for _, t := range in.Transcripts {
		entries = append(entries, Entry{
			VideoTime:   t.Span.Start,
			EndTime:     t.Span.End,
			Source:      SourceAudio,
			Confidence:  t.Confidence,
			Violations:  []string{},
			Description: t.Text,
			Kind:        ContentTranscript,
		})
	}
	for _, f := range in.Failed {
		desc := "transcription failed"
		if f.Error != "" {
			desc += ": " + f.Error
		}
		entries = append(entries, Entry{
			VideoTime:   f.Span.Start,
			EndTime:     f.Span.End,
			Source:      SourceAudio,
			Violations:  []string{},
			Description: desc,
			Kind:        ContentPlaceholder,
		})
	}
	for _, a := range in.Anchors {
		if a.Confidence <= c.cfg.AnchorMinConfidence {
			continue
		}
		if _, _, ok := ParseTimestamp(a.Text); !ok {
			continue
		}
		entries = append(entries, Entry{
			VideoTime:   a.VideoTime,
			Source:      SourceOCR,
			Confidence:  a.Confidence,
			Violations:  []string{},
			Description: a.Text,
			Kind:        ContentAnchor,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.VideoTime != b.VideoTime {
			return a.VideoTime < b.VideoTime
		}
		if a.Source != b.Source {
			return a.Source.rank() < b.Source.rank()
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Description < b.Description
	})

	group := 0
	for i := range entries {
		if i == 0 || entries[i].VideoTime-entries[i-1].VideoTime > c.cfg.Window {
			group++
		}
		entries[i].Group = group
		if clock := res.Resolution.Clock; clock != nil {
			rt := clock.At(entries[i].VideoTime)
			entries[i].RealTime = &rt
		}
	}
	res.Entries = entries
	return res
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
