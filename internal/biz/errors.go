package biz

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/errors"
)

// Error reasons surfaced to API callers.
const (
	ReasonMediaUnreadable      = "MEDIA_UNREADABLE"
	ReasonConfigurationInvalid = "CONFIGURATION_INVALID"
	ReasonExternalCallFailed   = "EXTERNAL_CALL_FAILED"
	ReasonAnalysisNotFound     = "ANALYSIS_NOT_FOUND"
)

// Pipeline stages named in error metadata.
const (
	StageConfig   = "config"
	StageProbe    = "probe"
	StageBlackout = "blackout"
	StageSampling = "sampling"
	StageFrames   = "frames"
	StageAudio    = "audio"
	StageAnchors  = "anchors"
	StagePersist  = "persist"
)

// ErrAnalysisNotFound is returned when a run id is unknown.
var ErrAnalysisNotFound = errors.NotFound(ReasonAnalysisNotFound, "analysis not found")

// ErrMediaUnreadable is fatal: the run cannot start on this input.
func ErrMediaUnreadable(stage string, start, end float64, err error) *errors.Error {
	return errors.New(422, ReasonMediaUnreadable, fmt.Sprintf("media unreadable: %v", err)).
		WithCause(err).
		WithMetadata(rangeMetadata(stage, start, end))
}

// ErrConfigurationInvalid is fatal and raised before any work starts.
func ErrConfigurationInvalid(format string, args ...any) *errors.Error {
	return errors.BadRequest(ReasonConfigurationInvalid, fmt.Sprintf(format, args...)).
		WithMetadata(map[string]string{"stage": StageConfig})
}

// ErrExternalCallFailed describes one unit that exhausted its retries.
// It is recorded, never returned from Analyze.
func ErrExternalCallFailed(stage string, start, end float64, err error) *errors.Error {
	return errors.New(502, ReasonExternalCallFailed, fmt.Sprintf("external call failed: %v", err)).
		WithCause(err).
		WithMetadata(rangeMetadata(stage, start, end))
}

func IsMediaUnreadable(err error) bool {
	return errors.Reason(err) == ReasonMediaUnreadable
}

func IsConfigurationInvalid(err error) bool {
	return errors.Reason(err) == ReasonConfigurationInvalid
}

func IsExternalCallFailed(err error) bool {
	return errors.Reason(err) == ReasonExternalCallFailed
}

func IsAnalysisNotFound(err error) bool {
	return errors.Reason(err) == ReasonAnalysisNotFound
}

func rangeMetadata(stage string, start, end float64) map[string]string {
	return map[string]string{
		"stage":         stage,
		"start_seconds": fmt.Sprintf("%.3f", start),
		"end_seconds":   fmt.Sprintf("%.3f", end),
	}
}
