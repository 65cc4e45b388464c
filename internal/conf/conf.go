// Package conf holds the configuration scanned from configs/config.yaml.
package conf

import (
	"os"
	"time"
)

// Bootstrap is the root of the configuration file.
type Bootstrap struct {
	Server       *Server       `json:"server"`
	Data         *Data         `json:"data"`
	Analysis     *Analysis     `json:"analysis"`
	Capabilities *Capabilities `json:"capabilities"`
	Media        *Media        `json:"media"`
}

type Server struct {
	HTTP *Server_HTTP `json:"http"`
}

type Server_HTTP struct {
	Addr           string  `json:"addr"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// Timeout returns the request timeout. Zero disables it.
func (s *Server_HTTP) Timeout() time.Duration {
	return seconds(s.TimeoutSeconds)
}

type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
}

type Data_Database struct {
	Driver string     `json:"driver"`
	Source string     `json:"source"`
	Pool   *Data_Pool `json:"pool"`
}

// Data_Pool sizes the pgx pool. Lifetimes are in minutes.
type Data_Pool struct {
	MaxOpenConns    int32 `json:"max_open_conns"`
	MinIdleConns    int32 `json:"min_idle_conns"`
	MaxConnLifetime int64 `json:"max_conn_lifetime"`
	MaxConnIdleTime int64 `json:"max_conn_idle_time"`
}

type Data_Redis struct {
	Enabled             bool    `json:"enabled"`
	Addr                string  `json:"addr"`
	Network             string  `json:"network"`
	ReadTimeoutSeconds  float64 `json:"read_timeout_seconds"`
	WriteTimeoutSeconds float64 `json:"write_timeout_seconds"`
	CacheTTLSeconds     float64 `json:"cache_ttl_seconds"`
}

func (r *Data_Redis) ReadTimeout() time.Duration  { return seconds(r.ReadTimeoutSeconds) }
func (r *Data_Redis) WriteTimeout() time.Duration { return seconds(r.WriteTimeoutSeconds) }
func (r *Data_Redis) CacheTTL() time.Duration     { return seconds(r.CacheTTLSeconds) }

// Analysis holds the defaults applied to every run before request overrides.
type Analysis struct {
	MaxFrames                int     `json:"max_frames"`
	Strategy                 string  `json:"strategy"`
	BlackoutSensitivity      string  `json:"blackout_sensitivity"`
	ConfidenceFloor          float64 `json:"confidence_floor"`
	CorrelationWindowSeconds float64 `json:"correlation_window_seconds"`
	ConcurrencyLimit         int     `json:"concurrency_limit"`
	CallTimeoutSeconds       float64 `json:"call_timeout_seconds"`
	MaxRetries               int     `json:"max_retries"`
	ScanIntervalSeconds      float64 `json:"scan_interval_seconds"`
	DedupeDistance           int     `json:"dedupe_distance"`
	PromptContext            string  `json:"prompt_context"`
	ReadAnchors              bool    `json:"read_anchors"`

	Violations []*Analysis_Violation `json:"violations"`
}

// Analysis_Violation overrides or extends the built-in violation taxonomy.
type Analysis_Violation struct {
	Name     string   `json:"name"`
	Weight   float64  `json:"weight"`
	Keywords []string `json:"keywords"`
}

type Capabilities struct {
	Classifier  *Capabilities_Classifier  `json:"classifier"`
	Transcriber *Capabilities_Transcriber `json:"transcriber"`
	Anchor      *Capabilities_Anchor      `json:"anchor"`
}

// Capabilities_Classifier selects the frame classification backend.
// Provider is one of ollama, openai, detector_http, detector_grpc.
type Capabilities_Classifier struct {
	Provider       string  `json:"provider"`
	BaseURL        string  `json:"base_url"`
	Model          string  `json:"model"`
	APIKeyEnv      string  `json:"api_key_env"`
	Address        string  `json:"address"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
	Threshold      float64 `json:"threshold"`
	CostPerCall    float64 `json:"cost_per_call"`
}

func (c *Capabilities_Classifier) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

// APIKey reads the key from the environment variable named by APIKeyEnv.
func (c *Capabilities_Classifier) APIKey() string { return env(c.APIKeyEnv) }

// Capabilities_Transcriber configures an OpenAI-compatible Whisper endpoint.
// Local marks a self-hosted server, which has no per-second cost.
type Capabilities_Transcriber struct {
	Provider       string  `json:"provider"`
	BaseURL        string  `json:"base_url"`
	Model          string  `json:"model"`
	APIKeyEnv      string  `json:"api_key_env"`
	Language       string  `json:"language"`
	Local          bool    `json:"local"`
	CostPerSecond  float64 `json:"cost_per_second"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

func (c *Capabilities_Transcriber) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }
func (c *Capabilities_Transcriber) APIKey() string         { return env(c.APIKeyEnv) }

// Capabilities_Anchor configures on-screen timestamp reading.
// Positions are fractions of the duration where overlays are read.
type Capabilities_Anchor struct {
	Provider       string    `json:"provider"`
	BaseURL        string    `json:"base_url"`
	Model          string    `json:"model"`
	APIKeyEnv      string    `json:"api_key_env"`
	TimeoutSeconds float64   `json:"timeout_seconds"`
	Positions      []float64 `json:"positions"`
}

func (c *Capabilities_Anchor) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }
func (c *Capabilities_Anchor) APIKey() string         { return env(c.APIKeyEnv) }

type Media struct {
	FFmpegPath      string `json:"ffmpeg_path"`
	FFprobePath     string `json:"ffprobe_path"`
	SerializeDecode bool   `json:"serialize_decode"`
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func env(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
