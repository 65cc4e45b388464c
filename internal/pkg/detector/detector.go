package detector

import (
	"fmt"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Label is one class score returned by the detector.
type Label struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Detection is the detector's verdict on one frame.
type Detection struct {
	Labels      []Label
	Confidence  float64
	Description string
	Model       string
	ProcessedAt time.Time
}

// Above returns label names scoring at least threshold, highest first.
func (d *Detection) Above(threshold float64) []string {
	labels := make([]Label, 0, len(d.Labels))
	for _, l := range d.Labels {
		if l.Score >= threshold {
			labels = append(labels, l)
		}
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Score > labels[j].Score })
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}

// Config holds configuration shared by the HTTP and gRPC detector clients.
type Config struct {
	BaseURL   string        // HTTP API URL, e.g., "http://localhost:8080"
	Address   string        // gRPC server address, e.g., "localhost:50051"
	Timeout   time.Duration // Per-request timeout
	Threshold float64       // Minimum score for a label to count
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8080",
		Address:   "localhost:50051",
		Timeout:   30 * time.Second,
		Threshold: 0.5,
	}
}

// apiResponse is the JSON body of the HTTP API and the struct payload of the gRPC API.
type apiResponse struct {
	Labels      []Label  `json:"labels"`
	Confidence  *float64 `json:"confidence"`
	Description string   `json:"description"`
	Model       string   `json:"model"`
}

func (r *apiResponse) detection() *Detection {
	d := &Detection{
		Labels:      r.Labels,
		Description: r.Description,
		Model:       r.Model,
		ProcessedAt: time.Now(),
	}
	if r.Confidence != nil {
		d.Confidence = *r.Confidence
	} else {
		for _, l := range r.Labels {
			d.Confidence = max(d.Confidence, l.Score)
		}
	}
	return d
}

// Dial creates a new gRPC client connection from config.
// Caller is responsible for closing the connection.
func Dial(cfg Config, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("detector: failed to dial %s: %w", cfg.Address, err)
	}
	return conn, nil
}
