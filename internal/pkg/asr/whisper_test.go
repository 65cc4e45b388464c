package asr

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhisperTranscriber_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("Expected /v1/audio/transcriptions, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Expected multipart body: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("Expected verbose_json, got %q", got)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("Expected whisper-1, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"task": "transcribe",
			"language": "english",
			"duration": 3.2,
			"text": " Step out of the vehicle. ",
			"segments": [
				{"id": 0, "start": 0, "end": 1.5, "text": "Step out", "avg_logprob": -0.1, "no_speech_prob": 0.0},
				{"id": 1, "start": 1.5, "end": 3.2, "text": "of the vehicle.", "avg_logprob": -0.3, "no_speech_prob": 0.2}
			]
		}`))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL + "/v1"
	tr := NewWhisperTranscriber(cfg)

	got, err := tr.Transcribe(context.Background(), []byte("RIFF...."))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Text != "Step out of the vehicle." {
		t.Errorf("Expected trimmed text, got %q", got.Text)
	}
	if got.Language != "english" {
		t.Errorf("Expected english, got %q", got.Language)
	}
	want := (math.Exp(-0.1) + math.Exp(-0.3)*0.8) / 2
	if math.Abs(got.Confidence-want) > 1e-9 {
		t.Errorf("Expected confidence %f, got %f", want, got.Confidence)
	}
}

func TestWhisperTranscriber_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL + "/v1"
	_, err := NewWhisperTranscriber(cfg).Transcribe(context.Background(), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "transcription failed") {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestSegmentConfidence(t *testing.T) {
	tests := []struct {
		logprob, noSpeech, expected float64
	}{
		{0, 0, 1},
		{0, 1, 0},
		{math.Log(0.5), 0.5, 0.25},
	}
	for _, tt := range tests {
		if got := segmentConfidence(tt.logprob, tt.noSpeech); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("segmentConfidence(%v, %v) = %v; want %v", tt.logprob, tt.noSpeech, got, tt.expected)
		}
	}
}
