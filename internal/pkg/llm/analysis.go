package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FrameAnalysis is a vision model's reading of one frame.
type FrameAnalysis struct {
	Labels      []string
	Confidence  float64
	Description string
	Model       string
}

// TimestampReading is on-screen text a vision model recognised as a timestamp.
type TimestampReading struct {
	Text       string
	Confidence float64
}

// UnstructuredConfidence is assigned when the model answers in prose instead of JSON.
const UnstructuredConfidence = 0.3

// FramePrompt builds the classification prompt for a frame at videoTime
// with the categories the model may report.
func FramePrompt(context string, categories []string) string {
	var b strings.Builder
	b.WriteString("You are reviewing one still frame from law-enforcement video evidence.\n")
	if context != "" {
		b.WriteString(context)
		b.WriteString("\n")
	}
	b.WriteString("Describe only what is visible. Do not speculate about what happened before or after.\n")
	if len(categories) > 0 {
		fmt.Fprintf(&b, "Possible violation categories: %s.\n", strings.Join(categories, ", "))
	}
	b.WriteString(`Answer with JSON only: {"violations": [category names that apply, or empty], "confidence": number 0-1, "description": "one or two sentences"}`)
	return b.String()
}

// TimestampPrompt asks for the burned-in date and time overlay.
const TimestampPrompt = `Read the date and time overlay burned into this video frame, usually in a corner.
Copy it exactly as shown, including any timezone offset or AM/PM.
Answer with JSON only: {"text": "the overlay text or empty", "confidence": number 0-1}`

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type frameJSON struct {
	Violations  []string `json:"violations"`
	Labels      []string `json:"labels"`
	Confidence  *float64 `json:"confidence"`
	Description string   `json:"description"`
}

// ParseFrameAnalysis reads the model answer. Prose answers are kept as the
// description with UnstructuredConfidence.
func ParseFrameAnalysis(content, model string) *FrameAnalysis {
	out := &FrameAnalysis{Model: model, Labels: []string{}}
	raw := jsonObject.FindString(content)

	var parsed frameJSON
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		out.Description = strings.TrimSpace(content)
		out.Confidence = UnstructuredConfidence
		return out
	}

	out.Labels = append(out.Labels, parsed.Violations...)
	out.Labels = append(out.Labels, parsed.Labels...)
	out.Description = strings.TrimSpace(parsed.Description)
	out.Confidence = UnstructuredConfidence
	if parsed.Confidence != nil {
		out.Confidence = clamp01(*parsed.Confidence)
	}
	return out
}

type timestampJSON struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// ParseTimestampReading reads the overlay answer. An unparseable answer is an error.
func ParseTimestampReading(content string) (*TimestampReading, error) {
	raw := jsonObject.FindString(content)
	var parsed timestampJSON
	if raw == "" {
		return nil, fmt.Errorf("no JSON in timestamp answer: %q", content)
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse timestamp answer: %w", err)
	}
	r := &TimestampReading{Text: strings.TrimSpace(parsed.Text)}
	if parsed.Confidence != nil {
		r.Confidence = clamp01(*parsed.Confidence)
	}
	return r, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
