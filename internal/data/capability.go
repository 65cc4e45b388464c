package data

import (
	"context"
	"fmt"
	"time"

	"videoanalyzer/internal/biz"
	"videoanalyzer/internal/conf"
	"videoanalyzer/internal/pkg/asr"
	"videoanalyzer/internal/pkg/detector"
	"videoanalyzer/internal/pkg/llm"
	"videoanalyzer/internal/pkg/redis"

	"github.com/go-kratos/kratos/v2/log"
)

// Provider names accepted in the capabilities section.
const (
	ProviderNone         = "none"
	ProviderOllama       = "ollama"
	ProviderOpenAI       = "openai"
	ProviderDetectorHTTP = "detector_http"
	ProviderDetectorGRPC = "detector_grpc"
)

// defaultCacheTTL applies when redis is enabled without a ttl.
const defaultCacheTTL = 24 * time.Hour

// visionClient is implemented by the llm clients.
type visionClient interface {
	ClassifyFrame(ctx context.Context, image []byte, prompt string) (*llm.FrameAnalysis, error)
	ReadTimestamp(ctx context.Context, image []byte) (*llm.TimestampReading, error)
}

// visionAdapter adapts an llm client to biz.FrameClassifier and biz.AnchorReader.
type visionAdapter struct {
	client visionClient
}

func (a *visionAdapter) ClassifyFrame(ctx context.Context, image []byte, prompt string) (*biz.Classification, error) {
	res, err := a.client.ClassifyFrame(ctx, image, prompt)
	if err != nil {
		return nil, err
	}
	return &biz.Classification{
		Labels:      res.Labels,
		Confidence:  res.Confidence,
		Description: res.Description,
		Model:       res.Model,
	}, nil
}

func (a *visionAdapter) ReadTimestamp(ctx context.Context, image []byte) (*biz.AnchorReading, error) {
	res, err := a.client.ReadTimestamp(ctx, image)
	if err != nil {
		return nil, err
	}
	return &biz.AnchorReading{Text: res.Text, Confidence: res.Confidence}, nil
}

// detectorClient is implemented by the HTTP and gRPC detector clients.
type detectorClient interface {
	Detect(ctx context.Context, imageData []byte, prompt string) (*detector.Detection, error)
}

// detectorAdapter adapts a detector to biz.FrameClassifier. Labels below
// the threshold are dropped.
type detectorAdapter struct {
	client    detectorClient
	threshold float64
}

func (a *detectorAdapter) ClassifyFrame(ctx context.Context, image []byte, prompt string) (*biz.Classification, error) {
	res, err := a.client.Detect(ctx, image, prompt)
	if err != nil {
		return nil, err
	}
	return &biz.Classification{
		Labels:      res.Above(a.threshold),
		Confidence:  res.Confidence,
		Description: res.Description,
		Model:       res.Model,
	}, nil
}

// transcriberAdapter adapts asr.WhisperTranscriber to biz.Transcriber.
type transcriberAdapter struct {
	client *asr.WhisperTranscriber
}

func (a *transcriberAdapter) Transcribe(ctx context.Context, wav []byte) (*biz.Transcription, error) {
	res, err := a.client.Transcribe(ctx, wav)
	if err != nil {
		return nil, err
	}
	return &biz.Transcription{Text: res.Text, Confidence: res.Confidence, Language: res.Language}, nil
}

// NewCapabilities builds the external capabilities from configuration.
// cache may be nil, in which case results are not cached.
func NewCapabilities(c *conf.Capabilities, dc *conf.Data, cache redis.Cache, logger log.Logger) (*biz.Capabilities, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data/capability"))
	caps := &biz.Capabilities{}
	cleanup := func() {}
	if c == nil {
		helper.Warn("no capabilities configured, only audio segmentation and blackout detection will run")
		return caps, cleanup, nil
	}

	ttl := defaultCacheTTL
	if dc != nil && dc.Redis != nil && dc.Redis.CacheTTL() > 0 {
		ttl = dc.Redis.CacheTTL()
	}

	classifier, closeClassifier, err := newClassifier(c.Classifier)
	if err != nil {
		return nil, nil, err
	}
	cleanup = closeClassifier
	if classifier != nil {
		helper.Infof("frame classifier: %s", c.Classifier.Provider)
		if cache != nil {
			classifier = biz.NewCachedClassifier(classifier, cache, ttl, logger)
		}
		caps.Classifier = classifier
	}

	transcriber, err := newTranscriber(c.Transcriber)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if transcriber != nil {
		helper.Infof("transcriber: %s (%s)", c.Transcriber.Provider, c.Transcriber.Model)
		if cache != nil {
			transcriber = biz.NewCachedTranscriber(transcriber, cache, ttl, logger)
		}
		caps.Transcriber = transcriber
	}

	anchors, err := newAnchorReader(c.Anchor)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if anchors != nil {
		helper.Infof("anchor reader: %s", c.Anchor.Provider)
		caps.Anchors = anchors
	}

	return caps, cleanup, nil
}

func newClassifier(c *conf.Capabilities_Classifier) (biz.FrameClassifier, func(), error) {
	noop := func() {}
	if c == nil {
		return nil, noop, nil
	}
	switch c.Provider {
	case "", ProviderNone:
		return nil, noop, nil
	case ProviderOllama, ProviderOpenAI:
		return &visionAdapter{client: newVisionClient(c.Provider, c.BaseURL, c.Model, c.APIKey(), c.Timeout())}, noop, nil
	case ProviderDetectorHTTP, ProviderDetectorGRPC:
		cfg := detector.DefaultConfig()
		if c.BaseURL != "" {
			cfg.BaseURL = c.BaseURL
		}
		if c.Address != "" {
			cfg.Address = c.Address
		}
		if c.Timeout() > 0 {
			cfg.Timeout = c.Timeout()
		}
		if c.Threshold > 0 {
			cfg.Threshold = c.Threshold
		}
		if c.Provider == ProviderDetectorHTTP {
			return &detectorAdapter{client: detector.NewClient(cfg), threshold: cfg.Threshold}, noop, nil
		}
		client, err := detector.NewGRPCClient(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("dial detector %s: %w", cfg.Address, err)
		}
		return &detectorAdapter{client: client, threshold: cfg.Threshold}, func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown classifier provider %q", c.Provider)
	}
}

func newTranscriber(c *conf.Capabilities_Transcriber) (biz.Transcriber, error) {
	if c == nil {
		return nil, nil
	}
	switch c.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		cfg := asr.DefaultConfig()
		cfg.BaseURL = c.BaseURL
		cfg.APIKey = c.APIKey()
		cfg.Language = c.Language
		if c.Model != "" {
			cfg.Model = c.Model
		}
		if c.Timeout() > 0 {
			cfg.Timeout = c.Timeout()
		}
		return &transcriberAdapter{client: asr.NewWhisperTranscriber(cfg)}, nil
	default:
		return nil, fmt.Errorf("unknown transcriber provider %q", c.Provider)
	}
}

func newAnchorReader(c *conf.Capabilities_Anchor) (biz.AnchorReader, error) {
	if c == nil {
		return nil, nil
	}
	switch c.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOllama, ProviderOpenAI:
		return &visionAdapter{client: newVisionClient(c.Provider, c.BaseURL, c.Model, c.APIKey(), c.Timeout())}, nil
	default:
		return nil, fmt.Errorf("unknown anchor provider %q", c.Provider)
	}
}

func newVisionClient(provider, baseURL, model, apiKey string, timeout time.Duration) visionClient {
	if provider == ProviderOllama {
		cfg := llm.DefaultOllamaConfig()
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		if model != "" {
			cfg.Model = model
		}
		if timeout > 0 {
			cfg.Timeout = timeout
		}
		return llm.NewOllamaClient(cfg)
	}
	cfg := llm.DefaultOpenAIConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = apiKey
	if model != "" {
		cfg.Model = model
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return llm.NewOpenAIClient(cfg)
}
