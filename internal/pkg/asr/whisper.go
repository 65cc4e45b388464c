package asr

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Transcription is the text recognised in one audio clip.
type Transcription struct {
	Text       string
	Confidence float64
	Language   string
}

// Config configures an OpenAI-compatible transcription endpoint. Point
// BaseURL at a local Whisper server to keep audio on the host.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string // ISO-639-1 hint, empty for auto-detect
	Timeout  time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Model:   openai.Whisper1,
		Timeout: 2 * time.Minute,
	}
}

// NoSegmentConfidence is used when the server returns text without segment statistics.
const NoSegmentConfidence = 0.6

// WhisperTranscriber transcribes WAV clips.
type WhisperTranscriber struct {
	config Config
	cli    *openai.Client
}

// NewWhisperTranscriber creates a new transcriber.
func NewWhisperTranscriber(config Config) *WhisperTranscriber {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &WhisperTranscriber{config: config, cli: openai.NewClientWithConfig(clientConfig)}
}

// Transcribe sends one WAV clip.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, wav []byte) (*Transcription, error) {
	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	resp, err := w.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:       w.config.Model,
		FilePath:    "segment.wav",
		Reader:      bytes.NewReader(wav),
		Language:    w.config.Language,
		Temperature: 0,
		Format:      openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	out := &Transcription{
		Text:       strings.TrimSpace(resp.Text),
		Language:   resp.Language,
		Confidence: NoSegmentConfidence,
	}
	if len(resp.Segments) > 0 {
		var sum float64
		for _, s := range resp.Segments {
			sum += segmentConfidence(s.AvgLogprob, s.NoSpeechProb)
		}
		out.Confidence = sum / float64(len(resp.Segments))
	}
	return out, nil
}

// segmentConfidence turns Whisper's mean token log-probability and
// no-speech probability into a 0-1 score.
func segmentConfidence(avgLogprob, noSpeechProb float64) float64 {
	c := math.Exp(avgLogprob) * (1 - noSpeechProb)
	return math.Max(0, math.Min(1, c))
}
