package biz

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"videoanalyzer/internal/pkg/blackout"
	"videoanalyzer/internal/pkg/coverage"
	"videoanalyzer/internal/pkg/hash"
	"videoanalyzer/internal/pkg/llm"
	"videoanalyzer/internal/pkg/media"
	"videoanalyzer/internal/pkg/sampler"
	"videoanalyzer/internal/pkg/signal"
	"videoanalyzer/internal/pkg/span"
	"videoanalyzer/internal/pkg/speech"
	"videoanalyzer/internal/pkg/timeline"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// AudioSampleRate is the rate speech is decoded and transcribed at.
	AudioSampleRate = 16000
	// FrameMaxWidth bounds frames sent for classification.
	FrameMaxWidth = 512
	// AnchorMaxWidth keeps small overlay text legible.
	AnchorMaxWidth = 1280
)

// DefaultAnchorPositions are the fractions of the duration where timestamp
// overlays are read.
var DefaultAnchorPositions = []float64{0.1, 0.3, 0.5}

// stageStats are the per-stage counters merged into the run once the stage returns.
type stageStats struct {
	Degraded  int
	Discarded int
	Skipped   int
	Reused    int
}

func (s *stageStats) merge(o stageStats) {
	s.Degraded += o.Degraded
	s.Discarded += o.Discarded
	s.Skipped += o.Skipped
	s.Reused += o.Reused
}

// runContext is the state owned by one run. Nothing in it is shared with
// other runs.
type runContext struct {
	id       string
	cfg      AnalysisConfig
	src      media.Source
	info     *media.Info
	dispatch *dispatcher
	log      *log.Helper
	stats    stageStats
}

type scanOutcome struct {
	result *blackout.Result
	err    error
}

type audioOutcome struct {
	pcm *media.PCM
	err error
}

type frameStage struct {
	samples  []sampler.FrameSample
	frames   []timeline.FrameResult
	analyzed int
	stats    stageStats
}

type audioStage struct {
	segments    []speech.SpeechSegment
	transcripts []timeline.Transcript
	failed      []timeline.FailedSegment
	filtered    []FilteredTranscript
	speechSecs  float64
	status      coverage.SectionStatus
	stats       stageStats
}

type anchorStage struct {
	anchors []timeline.Anchor
	stats   stageStats
}

// Analyze runs the whole pipeline on src. Only ConfigurationInvalid and
// MediaUnreadable are returned as errors; failed external calls degrade
// single units and a cancelled ctx yields a partial result.
func (uc *AnalysisUsecase) Analyze(ctx context.Context, src media.Source, cfg AnalysisConfig) (*AnalysisResult, error) {
	return uc.analyze(ctx, "", src, cfg)
}

func (uc *AnalysisUsecase) analyze(ctx context.Context, id string, src media.Source, cfg AnalysisConfig) (*AnalysisResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxFrames > 0 && uc.caps.Classifier == nil {
		return nil, ErrConfigurationInvalid("max_frames is %d but no frame classifier is configured", cfg.MaxFrames)
	}
	strategy, _ := sampler.ParseStrategy(cfg.Strategy)
	sensitivity, _ := blackout.ParseSensitivity(cfg.BlackoutSensitivity)

	helper := uc.log
	if id != "" {
		helper = log.NewHelper(log.With(uc.logger, "module", "biz/analysis", "run", id))
	}

	info, err := src.Probe(ctx)
	if err != nil {
		return nil, ErrMediaUnreadable(StageProbe, 0, 0, err)
	}
	if !(info.Duration > 0) {
		return nil, ErrMediaUnreadable(StageProbe, 0, 0, fmt.Errorf("%w: zero duration", media.ErrUnreadable))
	}
	if !src.ConcurrentSeek() {
		src = media.Locked(src)
	}

	rc := &runContext{
		id:       id,
		cfg:      cfg,
		src:      src,
		info:     info,
		dispatch: newDispatcher(cfg.ConcurrencyLimit, cfg.callTimeout(), cfg.MaxRetries, helper),
		log:      helper,
	}
	result := newAnalysisResult(cfg, info)
	rc.log.Infof("Analyze: duration=%.1fs video=%v audio=%v strategy=%s max_frames=%d",
		info.Duration, info.HasVideo, info.HasAudio, strategy, cfg.MaxFrames)

	// The coarse scan and the audio decode read the media independently.
	var (
		scan  scanOutcome
		audio audioOutcome
		wg    sync.WaitGroup
	)
	if info.HasVideo {
		wg.Go(func() {
			scan.result, scan.err = blackout.Scan(ctx, src, info.Duration, blackout.Config{
				Sensitivity: sensitivity,
				Interval:    cfg.ScanIntervalSeconds,
			})
		})
	}
	wg.Go(func() {
		audio.pcm, audio.err = src.Audio(ctx, AudioSampleRate)
	})
	wg.Wait()

	full := []span.MediaSpan{{Start: 0, End: info.Duration}}
	useful, blackoutApplied := full, false
	var profile []signal.FrameSignal
	visual := coverage.Available
	switch {
	case !info.HasVideo:
		useful = nil
		visual = coverage.Unavailable("no video stream")
	case scan.err != nil:
		rc.log.Warnf("blackout scan failed, sampling the full duration: %v", scan.err)
	default:
		useful, blackoutApplied = scan.result.Useful, true
		profile = scan.result.Profile
		result.BlackoutSegments = nonNilSpans(scan.result.Blackout)
		if len(useful) == 0 {
			// No uniform fallback over dark footage: every sample would land in blackout.
			visual = coverage.Unavailable("entire video is blackout")
		}
	}
	if visual.Available && cfg.MaxFrames == 0 {
		visual = coverage.Unavailable("frame analysis disabled")
	}
	result.UsefulSegments = nonNilSpans(useful)
	rc.log.Infof("blackout: applied=%v blackout=%d useful=%d (%.1fs)",
		blackoutApplied, len(result.BlackoutSegments), len(useful), span.Total(useful))

	// Frame, anchor and speech calls share the run's concurrency limit.
	var (
		frames  frameStage
		speechS audioStage
		anchors anchorStage
		stages  sync.WaitGroup
	)
	if visual.Available {
		stages.Go(func() {
			frames = uc.runFrames(ctx, rc, useful, strategy, profile)
		})
		if cfg.ReadAnchors && uc.caps.Anchors != nil {
			stages.Go(func() {
				anchors = uc.runAnchors(ctx, rc, useful)
			})
		}
	}
	stages.Go(func() {
		speechS = uc.runAudio(ctx, rc, audio)
	})
	stages.Wait()

	rc.stats.merge(frames.stats)
	rc.stats.merge(speechS.stats)
	rc.stats.merge(anchors.stats)

	if visual.Available && len(frames.samples) == 0 {
		visual = coverage.Unavailable("no frames sampled")
	}

	tcfg := timeline.DefaultConfig()
	tcfg.Window = cfg.CorrelationWindowSeconds
	tl := timeline.NewCorrelator(tcfg, uc.taxonomy).Correlate(timeline.Input{
		Frames:      frames.frames,
		Transcripts: speechS.transcripts,
		Failed:      speechS.failed,
		Anchors:     anchors.anchors,
	})

	cancelled := rc.stats.Skipped > 0 || ctx.Err() != nil
	report := coverage.Compute(coverage.Input{
		Duration:               info.Duration,
		Useful:                 useful,
		BlackoutApplied:        blackoutApplied,
		FramesAnalyzed:         frames.analyzed,
		DegradedUnits:          rc.stats.Degraded,
		SpeechSeconds:          speechS.speechSecs,
		DiscardedLowConfidence: rc.stats.Discarded,
		Entries:                tl.Entries,
		Resolution:             tl.Resolution,
		Visual:                 visual,
		Audio:                  speechS.status,
		Cancelled:              cancelled,
	}, uc.pricing)

	result.SampledFrames = append(result.SampledFrames, frames.samples...)
	result.FramesAnalyzed = frames.analyzed
	result.FramesReused = rc.stats.Reused
	result.SpeechSegments = append(result.SpeechSegments, speechS.segments...)
	result.Timeline = append(result.Timeline, tl.Entries...)
	for _, e := range tl.Entries {
		if e.Source == timeline.SourceFrame && len(e.Violations) > 0 {
			result.ViolationTimeline = append(result.ViolationTimeline, e)
		}
	}
	result.TranscriptSegments = append(result.TranscriptSegments, speechS.transcripts...)
	result.FilteredHallucinations = append(result.FilteredHallucinations, speechS.filtered...)
	result.Anchors = append(result.Anchors, anchors.anchors...)
	result.Clock = tl.Resolution
	result.UsefulContentPercentage = report.UsefulContentPercentage
	result.CostEstimate = report.Cost
	result.Coverage = report
	result.CompletedAt = time.Now().UTC()

	rc.log.Infof("Analyze done: frames=%d transcripts=%d filtered=%d degraded=%d cancelled=%v",
		result.FramesAnalyzed, len(result.TranscriptSegments), len(result.FilteredHallucinations),
		report.DegradedUnits, cancelled)
	return result, nil
}

// runFrames samples timestamps and classifies each sampled frame.
func (uc *AnalysisUsecase) runFrames(ctx context.Context, rc *runContext, useful []span.MediaSpan, strategy sampler.Strategy, profile []signal.FrameSignal) frameStage {
	var st frameStage
	opts := sampler.DefaultOptions()
	opts.MaxFrames = rc.cfg.MaxFrames
	opts.Strategy = strategy
	opts.Profile = profile
	samples, err := sampler.Sample(useful, opts)
	if err != nil {
		// Strategy was validated before the run started.
		rc.log.Errorf("sampling: %v", err)
		return st
	}
	st.samples = samples
	rc.log.Infof("frames: %d samples selected by %s", len(samples), strategy)

	var memo *frameMemo
	if rc.cfg.DedupeDistance >= 0 {
		memo = newFrameMemo(rc.cfg.DedupeDistance)
	}
	hasher := hash.NewPerceptualHasher()
	prompt := llm.FramePrompt(rc.cfg.PromptContext, uc.taxonomy.Names())

	type classified struct {
		c      *Classification
		reused bool
	}
	results := dispatch(ctx, rc.dispatch, StageFrames, samples, func(ctx context.Context, s sampler.FrameSample) (classified, error) {
		img, err := rc.src.Frame(ctx, s.Timestamp, FrameMaxWidth)
		if err != nil {
			return classified{}, fmt.Errorf("extract frame: %w", err)
		}
		var fh *hash.FrameHash
		if memo != nil {
			if fh, err = hasher.ComputePHash(img); err == nil {
				if c := memo.lookup(fh); c != nil {
					return classified{c: c, reused: true}, nil
				}
			}
		}
		jpg, err := media.EncodeJPEG(img, media.DefaultJPEGQuality)
		if err != nil {
			return classified{}, fmt.Errorf("encode frame: %w", err)
		}
		c, err := uc.caps.Classifier.ClassifyFrame(ctx, jpg, prompt)
		if err != nil {
			return classified{}, err
		}
		if c == nil {
			return classified{}, errors.New("empty classification")
		}
		memo.store(fh, c)
		return classified{c: c}, nil
	})

	for i, r := range results {
		s := samples[i]
		switch {
		case r.Skipped:
			st.stats.Skipped++
		case r.Err != nil:
			st.stats.Degraded++
			callErr := ErrExternalCallFailed(StageFrames, s.Timestamp, s.Timestamp, r.Err)
			rc.log.Warnf("frame at %.2fs degraded after %d attempts: %v", s.Timestamp, r.Attempts, callErr)
			st.frames = append(st.frames, timeline.FrameResult{
				Timestamp: s.Timestamp,
				Failed:    true,
				Error:     r.Err.Error(),
			})
		default:
			c := r.Value.c
			if r.Value.reused {
				st.stats.Reused++
			}
			st.analyzed++
			st.frames = append(st.frames, timeline.FrameResult{
				Timestamp:   s.Timestamp,
				Violations:  uc.taxonomy.Match(c.Labels, c.Description),
				Description: c.Description,
				Confidence:  c.Confidence,
			})
		}
	}
	return st
}

// runAudio segments the full waveform and transcribes every speech segment.
func (uc *AnalysisUsecase) runAudio(ctx context.Context, rc *runContext, audio audioOutcome) audioStage {
	st := audioStage{status: coverage.Available}
	switch {
	case errors.Is(audio.err, media.ErrNoAudio) || (audio.err == nil && audio.pcm.Duration() == 0):
		st.status = coverage.Unavailable("no audio track")
		return st
	case audio.err != nil && ctx.Err() != nil:
		st.status = coverage.Unavailable("cancelled before audio was decoded")
		return st
	case audio.err != nil:
		rc.log.Warnf("audio decode failed: %v", audio.err)
		st.status = coverage.Unavailable("audio track could not be decoded")
		return st
	}

	seg := speech.Segment(audio.pcm, speech.DefaultSegmenterConfig())
	st.segments = seg.Segments
	st.speechSecs = seg.SpeechSeconds
	rc.log.Infof("audio: %d speech segments (%.1fs), noise floor %.4f", len(seg.Segments), seg.SpeechSeconds, seg.NoiseFloor)
	if len(seg.Segments) == 0 {
		st.status = coverage.Unavailable("audio track is silent")
		return st
	}
	if uc.caps.Transcriber == nil {
		st.status = coverage.Unavailable("no transcriber configured")
		return st
	}

	results := dispatch(ctx, rc.dispatch, StageAudio, seg.Segments, func(ctx context.Context, s speech.SpeechSegment) (*Transcription, error) {
		wav := media.EncodeWAV(audio.pcm.Slice(s.Span), audio.pcm.SampleRate)
		t, err := uc.caps.Transcriber.Transcribe(ctx, wav)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, errors.New("empty transcription")
		}
		return t, nil
	})

	for i, r := range results {
		s := seg.Segments[i]
		switch {
		case r.Skipped:
			st.stats.Skipped++
		case r.Err != nil:
			st.stats.Degraded++
			callErr := ErrExternalCallFailed(StageAudio, s.Span.Start, s.Span.End, r.Err)
			rc.log.Warnf("speech segment %v degraded after %d attempts: %v", s.Span, r.Attempts, callErr)
			st.failed = append(st.failed, timeline.FailedSegment{Span: s.Span, Error: r.Err.Error()})
		case r.Value.Confidence < rc.cfg.ConfidenceFloor:
			st.stats.Discarded++
		default:
			t := r.Value
			if reasons := uc.filter.Apply(speech.Candidate{Text: t.Text, Duration: s.Span.Duration()}); len(reasons) > 0 {
				st.filtered = append(st.filtered, FilteredTranscript{
					Span:       s.Span,
					Text:       t.Text,
					Confidence: t.Confidence,
					Reasons:    reasons,
				})
				continue
			}
			st.transcripts = append(st.transcripts, timeline.Transcript{
				Span:       s.Span,
				Text:       t.Text,
				Confidence: t.Confidence,
				Language:   t.Language,
			})
		}
	}
	return st
}

// runAnchors reads the timestamp overlay at the configured positions.
func (uc *AnalysisUsecase) runAnchors(ctx context.Context, rc *runContext, useful []span.MediaSpan) anchorStage {
	var st anchorStage
	times := anchorTimes(rc.info.Duration, useful, uc.positions)
	if len(times) == 0 {
		return st
	}

	results := dispatch(ctx, rc.dispatch, StageAnchors, times, func(ctx context.Context, ts float64) (*AnchorReading, error) {
		img, err := rc.src.Frame(ctx, ts, AnchorMaxWidth)
		if err != nil {
			return nil, fmt.Errorf("extract frame: %w", err)
		}
		jpg, err := media.EncodeJPEG(img, media.DefaultJPEGQuality)
		if err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
		return uc.caps.Anchors.ReadTimestamp(ctx, jpg)
	})

	for i, r := range results {
		switch {
		case r.Skipped:
			st.stats.Skipped++
		case r.Err != nil:
			st.stats.Degraded++
			rc.log.Warnf("timestamp read at %.2fs failed after %d attempts: %v", times[i], r.Attempts, r.Err)
		case r.Value != nil && r.Value.Text != "":
			st.anchors = append(st.anchors, timeline.Anchor{
				VideoTime:  times[i],
				Text:       r.Value.Text,
				Confidence: r.Value.Confidence,
				Position:   fmt.Sprintf("%.0f%%", 100*times[i]/rc.info.Duration),
			})
		}
	}
	return st
}

// anchorTimes maps duration fractions to timestamps inside useful content.
// A position that falls in blackout moves to the start of the next useful
// span; positions past the last useful span are dropped.
func anchorTimes(duration float64, useful []span.MediaSpan, positions []float64) []float64 {
	var out []float64
	for _, p := range positions {
		if p < 0 || p >= 1 {
			continue
		}
		t := p * duration
		if span.Find(useful, t) < 0 {
			moved := math.NaN()
			for _, u := range useful {
				if u.Start > t {
					moved = u.Start
					break
				}
			}
			if math.IsNaN(moved) {
				continue
			}
			t = moved
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

func nonNilSpans(s []span.MediaSpan) []span.MediaSpan {
	if s == nil {
		return []span.MediaSpan{}
	}
	return s
}
