package biz

import (
	"math"
	"time"

	"videoanalyzer/internal/conf"
	"videoanalyzer/internal/pkg/blackout"
	"videoanalyzer/internal/pkg/sampler"
	"videoanalyzer/internal/pkg/violation"
)

const (
	// MaxFramesLimit caps the frame budget of one run.
	MaxFramesLimit = 200
	// MaxRetriesLimit caps retries of one external call.
	MaxRetriesLimit = 2
)

// AnalysisConfig is the per-run configuration.
type AnalysisConfig struct {
	MaxFrames                int     `json:"max_frames"`
	Strategy                 string  `json:"strategy"`
	BlackoutSensitivity      string  `json:"blackout_sensitivity"`
	ConfidenceFloor          float64 `json:"confidence_floor"`
	CorrelationWindowSeconds float64 `json:"correlation_window_seconds"`
	ConcurrencyLimit         int     `json:"concurrency_limit"`
	CallTimeoutSeconds       float64 `json:"call_timeout_seconds"`
	MaxRetries               int     `json:"max_retries"`
	ScanIntervalSeconds      float64 `json:"scan_interval_seconds"`
	// DedupeDistance is the pHash Hamming distance under which a frame reuses
	// an earlier classification. Negative disables reuse.
	DedupeDistance int    `json:"dedupe_distance"`
	PromptContext  string `json:"prompt_context,omitempty"`
	ReadAnchors    bool   `json:"read_anchors"`
}

// DefaultAnalysisConfig returns default configuration.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		MaxFrames:                50,
		Strategy:                 sampler.Intelligent.String(),
		BlackoutSensitivity:      string(blackout.SensitivityDefault),
		ConfidenceFloor:          0.5,
		CorrelationWindowSeconds: 2,
		ConcurrencyLimit:         4,
		CallTimeoutSeconds:       60,
		MaxRetries:               2,
		ScanIntervalSeconds:      1,
		DedupeDistance:           4,
		ReadAnchors:              true,
	}
}

// NewAnalysisConfig builds the configured defaults. Zero values in the file
// keep the built-in default; a request override can still set them to zero.
func NewAnalysisConfig(c *conf.Analysis) AnalysisConfig {
	cfg := DefaultAnalysisConfig()
	if c == nil {
		return cfg
	}
	if c.MaxFrames > 0 {
		cfg.MaxFrames = c.MaxFrames
	}
	if c.Strategy != "" {
		cfg.Strategy = c.Strategy
	}
	if c.BlackoutSensitivity != "" {
		cfg.BlackoutSensitivity = c.BlackoutSensitivity
	}
	if c.ConfidenceFloor > 0 {
		cfg.ConfidenceFloor = c.ConfidenceFloor
	}
	if c.CorrelationWindowSeconds > 0 {
		cfg.CorrelationWindowSeconds = c.CorrelationWindowSeconds
	}
	if c.ConcurrencyLimit > 0 {
		cfg.ConcurrencyLimit = c.ConcurrencyLimit
	}
	if c.CallTimeoutSeconds > 0 {
		cfg.CallTimeoutSeconds = c.CallTimeoutSeconds
	}
	if c.MaxRetries > 0 {
		cfg.MaxRetries = c.MaxRetries
	}
	if c.ScanIntervalSeconds > 0 {
		cfg.ScanIntervalSeconds = c.ScanIntervalSeconds
	}
	if c.DedupeDistance != 0 {
		cfg.DedupeDistance = c.DedupeDistance
	}
	cfg.PromptContext = c.PromptContext
	cfg.ReadAnchors = c.ReadAnchors
	return cfg
}

// ConfigOverrides are optional per-request changes to the defaults.
type ConfigOverrides struct {
	MaxFrames                *int     `json:"max_frames,omitempty"`
	Strategy                 *string  `json:"strategy,omitempty"`
	BlackoutSensitivity      *string  `json:"blackout_sensitivity,omitempty"`
	ConfidenceFloor          *float64 `json:"confidence_floor,omitempty"`
	CorrelationWindowSeconds *float64 `json:"correlation_window_seconds,omitempty"`
	ConcurrencyLimit         *int     `json:"concurrency_limit,omitempty"`
	CallTimeoutSeconds       *float64 `json:"call_timeout_seconds,omitempty"`
	MaxRetries               *int     `json:"max_retries,omitempty"`
	PromptContext            *string  `json:"prompt_context,omitempty"`
	ReadAnchors              *bool    `json:"read_anchors,omitempty"`
}

// Apply returns cfg with the set overrides applied. It does not validate.
func (o *ConfigOverrides) Apply(cfg AnalysisConfig) AnalysisConfig {
	if o == nil {
		return cfg
	}
	if o.MaxFrames != nil {
		cfg.MaxFrames = *o.MaxFrames
	}
	if o.Strategy != nil {
		cfg.Strategy = *o.Strategy
	}
	if o.BlackoutSensitivity != nil {
		cfg.BlackoutSensitivity = *o.BlackoutSensitivity
	}
	if o.ConfidenceFloor != nil {
		cfg.ConfidenceFloor = *o.ConfidenceFloor
	}
	if o.CorrelationWindowSeconds != nil {
		cfg.CorrelationWindowSeconds = *o.CorrelationWindowSeconds
	}
	if o.ConcurrencyLimit != nil {
		cfg.ConcurrencyLimit = *o.ConcurrencyLimit
	}
	if o.CallTimeoutSeconds != nil {
		cfg.CallTimeoutSeconds = *o.CallTimeoutSeconds
	}
	if o.MaxRetries != nil {
		cfg.MaxRetries = *o.MaxRetries
	}
	if o.PromptContext != nil {
		cfg.PromptContext = *o.PromptContext
	}
	if o.ReadAnchors != nil {
		cfg.ReadAnchors = *o.ReadAnchors
	}
	return cfg
}

// Validate rejects configurations the pipeline cannot run.
func (c AnalysisConfig) Validate() error {
	if c.MaxFrames < 0 || c.MaxFrames > MaxFramesLimit {
		return ErrConfigurationInvalid("max_frames must be in [0, %d], got %d", MaxFramesLimit, c.MaxFrames)
	}
	if _, err := sampler.ParseStrategy(c.Strategy); err != nil {
		return ErrConfigurationInvalid("strategy: %v", err)
	}
	if _, err := blackout.ParseSensitivity(c.BlackoutSensitivity); err != nil {
		return ErrConfigurationInvalid("blackout_sensitivity: %v", err)
	}
	if !inUnit(c.ConfidenceFloor) {
		return ErrConfigurationInvalid("confidence_floor must be in [0, 1], got %g", c.ConfidenceFloor)
	}
	if !(c.CorrelationWindowSeconds > 0) || math.IsInf(c.CorrelationWindowSeconds, 0) {
		return ErrConfigurationInvalid("correlation_window_seconds must be positive, got %g", c.CorrelationWindowSeconds)
	}
	if c.ConcurrencyLimit < 1 {
		return ErrConfigurationInvalid("concurrency_limit must be at least 1, got %d", c.ConcurrencyLimit)
	}
	if !(c.CallTimeoutSeconds > 0) {
		return ErrConfigurationInvalid("call_timeout_seconds must be positive, got %g", c.CallTimeoutSeconds)
	}
	if c.MaxRetries < 0 || c.MaxRetries > MaxRetriesLimit {
		return ErrConfigurationInvalid("max_retries must be in [0, %d], got %d", MaxRetriesLimit, c.MaxRetries)
	}
	if !(c.ScanIntervalSeconds > 0) {
		return ErrConfigurationInvalid("scan_interval_seconds must be positive, got %g", c.ScanIntervalSeconds)
	}
	return nil
}

func (c AnalysisConfig) callTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds * float64(time.Second))
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// NewTaxonomy builds the violation taxonomy from the defaults plus configured types.
func NewTaxonomy(c *conf.Analysis) *violation.Taxonomy {
	types := violation.DefaultTypes()
	if c != nil {
		for _, v := range c.Violations {
			types = append(types, violation.Type{Name: v.Name, Weight: v.Weight, Keywords: v.Keywords})
		}
	}
	return violation.NewTaxonomy(types)
}
