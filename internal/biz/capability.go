package biz

import (
	"context"
)

// Classification is a frame classifier's answer.
type Classification struct {
	Labels      []string `json:"labels"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Model       string   `json:"model,omitempty"`
}

// Transcription is a transcriber's answer for one audio clip.
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// AnchorReading is on-screen timestamp text read from one frame.
type AnchorReading struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// FrameClassifier labels one JPEG-encoded frame.
type FrameClassifier interface {
	ClassifyFrame(ctx context.Context, image []byte, prompt string) (*Classification, error)
}

// Transcriber transcribes one WAV-encoded speech segment.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (*Transcription, error)
}

// AnchorReader reads the burned-in date/time overlay of one JPEG frame.
type AnchorReader interface {
	ReadTimestamp(ctx context.Context, image []byte) (*AnchorReading, error)
}

// Capabilities are the external collaborators of a run. Transcriber and
// Anchors may be nil; the matching report section is then unavailable.
type Capabilities struct {
	Classifier  FrameClassifier
	Transcriber Transcriber
	Anchors     AnchorReader
}
