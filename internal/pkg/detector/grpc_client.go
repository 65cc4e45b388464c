package detector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the gRPC service the detector registers.
	ServiceName = "framedetector.v1.FrameDetector"
	// ClassifyMethod takes and returns a google.protobuf.Struct.
	ClassifyMethod = "/" + ServiceName + "/Classify"
)

// GRPCClient calls a frame detector served over gRPC. The service speaks
// google.protobuf.Struct so no generated stubs are needed.
type GRPCClient struct {
	config Config
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewGRPCClient creates a new gRPC detector client.
func NewGRPCClient(config Config, opts ...grpc.DialOption) (*GRPCClient, error) {
	conn, err := Dial(config, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{
		config: config,
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *GRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Detect classifies one JPEG frame.
func (c *GRPCClient) Detect(ctx context.Context, imageData []byte, prompt string) (*Detection, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(map[string]any{
		"image_data": base64.StdEncoding.EncodeToString(imageData),
		"prompt":     prompt,
		"threshold":  c.config.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ClassifyMethod, req, resp); err != nil {
		return nil, fmt.Errorf("gRPC Classify call failed: %w", err)
	}

	raw, err := json.Marshal(resp.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return apiResp.detection(), nil
}

// Ping checks the standard gRPC health service.
func (c *GRPCClient) Ping(ctx context.Context) error {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("gRPC health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("detector service unhealthy: %s", resp.GetStatus())
	}
	return nil
}
