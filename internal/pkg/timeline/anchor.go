package timeline

import (
	"regexp"
	"strings"
	"time"
)

// Anchor is an on-screen timestamp read from one frame.
type Anchor struct {
	VideoTime  float64 `json:"video_time"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Position   string  `json:"position,omitempty"`
}

type timestampFormat struct {
	name   string
	re     *regexp.Regexp
	layout string
}

var timestampFormats = []timestampFormat{
	{
		name:   "YYYY-MM-DD HH:MM:SS ZZZZ",
		re:     regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}\s+[+-]\d{4}`),
		layout: "2006-01-02 15:04:05 -0700",
	},
	{
		name:   "YYYY/MM/DD HH:MM:SS ZZZZ",
		re:     regexp.MustCompile(`\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2}\s+[+-]\d{4}`),
		layout: "2006/01/02 15:04:05 -0700",
	},
	{
		name:   "MM-DD-YYYY HH:MM:SS AM/PM",
		re:     regexp.MustCompile(`(?i)\d{2}-\d{2}-\d{4}\s+\d{2}:\d{2}:\d{2}\s+[AP]M`),
		layout: "01-02-2006 03:04:05 PM",
	},
	{
		name:   "YYYY-MM-DD HH:MM:SS",
		re:     regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`),
		layout: "2006-01-02 15:04:05",
	},
}

var spaces = regexp.MustCompile(`\s+`)

// ParseTimestamp finds a bodycam-style timestamp in OCR text.
// Timestamps without a zone are taken as UTC.
func ParseTimestamp(text string) (time.Time, string, bool) {
	for _, f := range timestampFormats {
		raw := f.re.FindString(text)
		if raw == "" {
			continue
		}
		raw = spaces.ReplaceAllString(raw, " ")
		if len(raw) > 10 && raw[10] == 'T' {
			raw = raw[:10] + " " + raw[11:]
		}
		if f.layout == "01-02-2006 03:04:05 PM" {
			raw = strings.ToUpper(raw)
		}
		ts, err := time.Parse(f.layout, raw)
		if err != nil {
			continue
		}
		return ts, f.name, true
	}
	return time.Time{}, "", false
}

// Clock maps video time to real time.
type Clock struct {
	// Origin is the real time at video time zero.
	Origin time.Time
}

// At returns the real time of videoTime.
func (c Clock) At(videoTime float64) time.Time {
	return c.Origin.Add(time.Duration(videoTime * float64(time.Second)))
}

// Caveat explains why no real time could be assigned.
type Caveat string

const (
	CaveatNone                Caveat = ""
	CaveatInsufficientAnchors Caveat = "insufficient_anchors"
	CaveatAnchorsDisagree     Caveat = "anchors_disagree"
)

// Resolution is the outcome of anchor offset resolution.
type Resolution struct {
	Clock    *Clock  `json:"-"`
	Accepted int     `json:"accepted_anchors"`
	SpreadS  float64 `json:"spread_seconds"`
	Caveat   Caveat  `json:"caveat,omitempty"`
}

// ResolveClock accepts anchors above minConfidence that parse, and
// returns a clock when at least two of them agree on the video-to-real
// offset within tolerance seconds. The offset is their mean.
func ResolveClock(anchors []Anchor, minConfidence, tolerance float64) Resolution {
	var origins []time.Time
	for _, a := range anchors {
		if a.Confidence <= minConfidence {
			continue
		}
		ts, _, ok := ParseTimestamp(a.Text)
		if !ok {
			continue
		}
		origins = append(origins, ts.Add(-time.Duration(a.VideoTime*float64(time.Second))))
	}

	res := Resolution{Accepted: len(origins)}
	if len(origins) < 2 {
		res.Caveat = CaveatInsufficientAnchors
		return res
	}

	lo, hi := origins[0], origins[0]
	var sum time.Duration
	for _, o := range origins {
		if o.Before(lo) {
			lo = o
		}
		if o.After(hi) {
			hi = o
		}
		sum += o.Sub(origins[0])
	}
	res.SpreadS = hi.Sub(lo).Seconds()
	if res.SpreadS > tolerance {
		res.Caveat = CaveatAnchorsDisagree
		return res
	}
	res.Clock = &Clock{Origin: origins[0].Add(sum / time.Duration(len(origins)))}
	return res
}
