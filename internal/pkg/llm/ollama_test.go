package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaClient_ClassifyFrame(t *testing.T) {
	frame := []byte{0xff, 0xd8, 0xff}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected /api/chat, got %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Format != "json" {
			t.Errorf("Expected json format, got %q", req.Format)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
			t.Fatalf("Expected one message with one image, got %+v", req.Messages)
		}
		if req.Messages[0].Images[0] != base64.StdEncoding.EncodeToString(frame) {
			t.Error("Image was not base64 encoded")
		}

		resp := ollamaResponse{
			Model: "llava:13b",
			Message: ollamaMessage{
				Role:    "assistant",
				Content: `{"violations": ["excessive_force"], "confidence": 0.82, "description": "Officer kneels on a subject's neck."}`,
			},
			Done: true,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "llava:13b"})

	result, err := client.ClassifyFrame(context.Background(), frame, FramePrompt("Frame at 00:01:05.", []string{"excessive_force"}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Labels) != 1 || result.Labels[0] != "excessive_force" {
		t.Errorf("Expected excessive_force label, got %v", result.Labels)
	}
	if result.Confidence != 0.82 {
		t.Errorf("Expected confidence 0.82, got %f", result.Confidence)
	}
	if result.Model != "llava:13b" {
		t.Errorf("Expected model llava:13b, got %s", result.Model)
	}
}

func TestOllamaClient_ReadTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{
			Message: ollamaMessage{Role: "assistant", Content: `{"text": "2024-03-29 10:46:45 -0500", "confidence": 0.9}`},
			Done:    true,
		})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	reading, err := client.ReadTimestamp(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reading.Text != "2024-03-29 10:46:45 -0500" || reading.Confidence != 0.9 {
		t.Errorf("Unexpected reading %+v", reading)
	}
}

func TestOllamaClient_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	_, err := client.ClassifyFrame(context.Background(), []byte{1}, "prompt")
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestOllamaClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected /api/tags, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"models": [{"name": "llava:13b"}]}`))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})

	err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestParseFrameAnalysis(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		labels      int
		confidence  float64
		description string
	}{
		{
			name:        "plain json",
			content:     `{"violations": [], "confidence": 0.4, "description": "Empty hallway."}`,
			confidence:  0.4,
			description: "Empty hallway.",
		},
		{
			name:        "json wrapped in prose",
			content:     "Sure.\n```json\n{\"labels\": [\"weapon_misuse\"], \"confidence\": 1.7, \"description\": \"Taser drawn.\"}\n```",
			labels:      1,
			confidence:  1,
			description: "Taser drawn.",
		},
		{
			name:        "prose only",
			content:     "A man stands near a car.",
			confidence:  UnstructuredConfidence,
			description: "A man stands near a car.",
		},
		{
			name:        "missing confidence",
			content:     `{"violations": ["x"], "description": "d"}`,
			labels:      1,
			confidence:  UnstructuredConfidence,
			description: "d",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFrameAnalysis(tt.content, "m")
			if len(got.Labels) != tt.labels {
				t.Errorf("Expected %d labels, got %v", tt.labels, got.Labels)
			}
			if got.Confidence != tt.confidence {
				t.Errorf("Expected confidence %f, got %f", tt.confidence, got.Confidence)
			}
			if got.Description != tt.description {
				t.Errorf("Expected description %q, got %q", tt.description, got.Description)
			}
		})
	}
}

func TestParseTimestampReadingRejectsProse(t *testing.T) {
	if _, err := ParseTimestampReading("I cannot see a timestamp."); err == nil {
		t.Error("Expected error for prose answer")
	}
}

func TestFramePrompt(t *testing.T) {
	p := FramePrompt("Frame at 00:02:00.", []string{"excessive_force", "verbal_abuse"})
	if !strings.Contains(p, "excessive_force, verbal_abuse") || !strings.Contains(p, "Frame at 00:02:00.") {
		t.Errorf("Prompt missing context or categories: %s", p)
	}
}
