package detector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func TestClient_Detect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("Expected /predict, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Expected multipart body: %v", err)
		}
		if r.FormValue("prompt") != "frame at 12s" {
			t.Errorf("Expected prompt field, got %q", r.FormValue("prompt"))
		}
		w.Write([]byte(`{"labels": [{"name": "weapon_misuse", "score": 0.4}, {"name": "excessive_force", "score": 0.9}], "description": "struggle on the ground", "model": "det-v2"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Threshold: 0.5})

	result, err := client.Detect(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0}, "frame at 12s")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Confidence != 0.9 {
		t.Errorf("Expected confidence from top label 0.9, got %f", result.Confidence)
	}
	if got := result.Above(0.5); !slices.Equal(got, []string{"excessive_force"}) {
		t.Errorf("Expected only excessive_force above threshold, got %v", got)
	}
	if got := result.Above(0.1); !slices.Equal(got, []string{"excessive_force", "weapon_misuse"}) {
		t.Errorf("Expected labels ordered by score, got %v", got)
	}
}

func TestClient_DetectError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if _, err := client.Detect(context.Background(), []byte{1}, ""); err == nil {
		t.Error("Expected error for 502")
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected /health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected BaseURL http://localhost:8080, got %s", config.BaseURL)
	}
	if config.Threshold != 0.5 {
		t.Errorf("Expected Threshold 0.5, got %f", config.Threshold)
	}
}
