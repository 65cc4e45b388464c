package biz

import (
	"context"
	"time"

	"videoanalyzer/internal/conf"
	"videoanalyzer/internal/pkg/coverage"
	"videoanalyzer/internal/pkg/media"
	"videoanalyzer/internal/pkg/pagination"
	"videoanalyzer/internal/pkg/sampler"
	"videoanalyzer/internal/pkg/span"
	"videoanalyzer/internal/pkg/speech"
	"videoanalyzer/internal/pkg/timeline"
	"videoanalyzer/internal/pkg/violation"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// FilteredTranscript is a transcript rejected as a hallucination, kept for audit.
type FilteredTranscript struct {
	Span       span.MediaSpan  `json:"span"`
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Reasons    []speech.Reason `json:"reasons"`
}

// AnalysisResult is the serializable aggregate of one run. Every slice is
// non-nil so the JSON shape never loses a top-level field.
type AnalysisResult struct {
	Media                   *media.Info            `json:"media"`
	Config                  AnalysisConfig         `json:"config"`
	BlackoutSegments        []span.MediaSpan       `json:"blackout_segments"`
	UsefulSegments          []span.MediaSpan       `json:"useful_segments"`
	UsefulContentPercentage float64                `json:"useful_content_percentage"`
	SampledFrames           []sampler.FrameSample  `json:"sampled_frames"`
	FramesAnalyzed          int                    `json:"frames_analyzed"`
	FramesReused            int                    `json:"frames_reused"`
	SpeechSegments          []speech.SpeechSegment `json:"speech_segments"`
	ViolationTimeline       []timeline.Entry       `json:"violation_timeline"`
	Timeline                []timeline.Entry       `json:"timeline"`
	TranscriptSegments      []timeline.Transcript  `json:"transcript_segments"`
	FilteredHallucinations  []FilteredTranscript   `json:"filtered_hallucinations"`
	Anchors                 []timeline.Anchor      `json:"anchors"`
	Clock                   timeline.Resolution    `json:"clock"`
	CostEstimate            coverage.Cost          `json:"cost_estimate"`
	Coverage                coverage.Report        `json:"coverage"`
	StartedAt               time.Time              `json:"started_at"`
	CompletedAt             time.Time              `json:"completed_at"`
}

func newAnalysisResult(cfg AnalysisConfig, info *media.Info) *AnalysisResult {
	return &AnalysisResult{
		Media:                  info,
		Config:                 cfg,
		BlackoutSegments:       []span.MediaSpan{},
		UsefulSegments:         []span.MediaSpan{},
		SampledFrames:          []sampler.FrameSample{},
		SpeechSegments:         []speech.SpeechSegment{},
		ViolationTimeline:      []timeline.Entry{},
		Timeline:               []timeline.Entry{},
		TranscriptSegments:     []timeline.Transcript{},
		FilteredHallucinations: []FilteredTranscript{},
		Anchors:                []timeline.Anchor{},
		StartedAt:              time.Now().UTC(),
	}
}

// RunStatus is the terminal state of a persisted run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// Run is one persisted analysis.
type Run struct {
	ID        string          `json:"id"`
	CaseID    string          `json:"case_id,omitempty"`
	MediaURI  string          `json:"media_uri"`
	Status    RunStatus       `json:"status"`
	Config    AnalysisConfig  `json:"config"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AnalysisRepo persists runs.
type AnalysisRepo interface {
	Save(ctx context.Context, run *Run) error
	// Get returns nil, nil when the run does not exist.
	Get(ctx context.Context, id string) (*Run, error)
	// List returns runs newest first. Items carry no Result.
	List(ctx context.Context, req *pagination.CursorRequest) (*pagination.CursorResponse[*Run], error)
}

// MediaOpener opens a media URI read-only for one run.
type MediaOpener interface {
	Open(ctx context.Context, uri string) (media.Source, error)
}

// SubmitRequest asks for one analysis.
type SubmitRequest struct {
	MediaURI  string
	CaseID    string
	Overrides *ConfigOverrides
}

// NewPricing reads per-call costs from the capability configuration.
func NewPricing(c *conf.Capabilities) coverage.Pricing {
	var p coverage.Pricing
	if c == nil {
		return p
	}
	if c.Classifier != nil {
		p.CostPerFrame = c.Classifier.CostPerCall
	}
	if c.Transcriber != nil {
		p.LocalTranscription = c.Transcriber.Local
		p.CostPerAudioSecond = c.Transcriber.CostPerSecond
	}
	return p
}

// AnalysisUsecase runs the pre-analysis pipeline and persists its results.
type AnalysisUsecase struct {
	repo      AnalysisRepo
	opener    MediaOpener
	caps      *Capabilities
	defaults  AnalysisConfig
	taxonomy  *violation.Taxonomy
	pricing   coverage.Pricing
	positions []float64
	filter    *speech.Filter
	logger    log.Logger
	log       *log.Helper
}

// NewAnalysisUsecase creates a new AnalysisUsecase. repo and opener may be
// nil when only Analyze is used.
func NewAnalysisUsecase(
	repo AnalysisRepo,
	opener MediaOpener,
	caps *Capabilities,
	defaults AnalysisConfig,
	taxonomy *violation.Taxonomy,
	pricing coverage.Pricing,
	capConf *conf.Capabilities,
	logger log.Logger,
) *AnalysisUsecase {
	if caps == nil {
		caps = &Capabilities{}
	}
	if taxonomy == nil {
		taxonomy = violation.NewTaxonomy(violation.DefaultTypes())
	}
	positions := DefaultAnchorPositions
	if capConf != nil && capConf.Anchor != nil && len(capConf.Anchor.Positions) > 0 {
		positions = capConf.Anchor.Positions
	}
	return &AnalysisUsecase{
		repo:      repo,
		opener:    opener,
		caps:      caps,
		defaults:  defaults,
		taxonomy:  taxonomy,
		pricing:   pricing,
		positions: positions,
		filter:    speech.NewFilter(speech.DefaultRules(speech.DefaultFilterConfig())),
		logger:    logger,
		log:       log.NewHelper(log.With(logger, "module", "biz/analysis")),
	}
}

// Defaults returns the configured per-run defaults.
func (uc *AnalysisUsecase) Defaults() AnalysisConfig {
	return uc.defaults
}

// Submit opens the media, runs the analysis and persists the run. A
// cancelled ctx yields a persisted partial run, not an error.
func (uc *AnalysisUsecase) Submit(ctx context.Context, req *SubmitRequest) (*Run, error) {
	cfg := req.Overrides.Apply(uc.defaults)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if req.MediaURI == "" {
		return nil, ErrConfigurationInvalid("media_uri is required")
	}

	run := &Run{
		ID:        uuid.NewString(),
		CaseID:    req.CaseID,
		MediaURI:  req.MediaURI,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
	uc.log.Infof("Submit: run=%s case=%s media=%s", run.ID, run.CaseID, run.MediaURI)

	result, err := uc.analyzeURI(ctx, run.ID, req.MediaURI, cfg)
	if err != nil {
		if !IsMediaUnreadable(err) {
			return nil, err
		}
		run.Status = RunFailed
		run.Error = err.Error()
	} else {
		run.Result = result
		run.Status = RunCompleted
		if result.Coverage.Cancelled {
			run.Status = RunCancelled
		}
	}
	run.UpdatedAt = time.Now().UTC()

	// A cancelled request still keeps what was analyzed.
	if serr := uc.repo.Save(context.WithoutCancel(ctx), run); serr != nil {
		uc.log.Errorf("Submit: persist run %s: %v", run.ID, serr)
		return nil, serr
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (uc *AnalysisUsecase) analyzeURI(ctx context.Context, id, uri string, cfg AnalysisConfig) (*AnalysisResult, error) {
	src, err := uc.opener.Open(ctx, uri)
	if err != nil {
		return nil, ErrMediaUnreadable(StageProbe, 0, 0, err)
	}
	defer src.Close()
	return uc.analyze(ctx, id, src, cfg)
}

// Get returns one run.
func (uc *AnalysisUsecase) Get(ctx context.Context, id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAnalysisNotFound
	}
	run, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrAnalysisNotFound
	}
	return run, nil
}

// List returns runs newest first.
func (uc *AnalysisUsecase) List(ctx context.Context, cursor string, limit int) (*pagination.CursorResponse[*Run], error) {
	req := pagination.NewCursorRequest(cursor, limit)
	if _, err := req.DecodedCursor(); err != nil {
		return nil, ErrConfigurationInvalid("invalid cursor")
	}
	return uc.repo.List(ctx, req)
}
