package service

import (
	"context"

	"videoanalyzer/internal/biz"
	"videoanalyzer/internal/pkg/pagination"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// SubmitAnalysisRequest is the body of POST /v1/analyses.
type SubmitAnalysisRequest struct {
	MediaURI string               `json:"media_uri"`
	CaseID   string               `json:"case_id,omitempty"`
	Config   *biz.ConfigOverrides `json:"config,omitempty"`
}

// GetAnalysisRequest selects one run.
type GetAnalysisRequest struct {
	ID string `json:"id"`
}

// ListAnalysesRequest pages through runs, newest first.
type ListAnalysesRequest struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
}

// ListAnalysesReply is one page of runs without their results.
type ListAnalysesReply = pagination.CursorResponse[*biz.Run]

// AnalysisService exposes the analysis usecase over HTTP.
type AnalysisService struct {
	uc  *biz.AnalysisUsecase
	log *log.Helper
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(uc *biz.AnalysisUsecase, logger log.Logger) *AnalysisService {
	return &AnalysisService{uc: uc, log: log.NewHelper(log.With(logger, "module", "service/analysis"))}
}

// SubmitAnalysis runs one analysis synchronously. Cancelling the request
// cancels the run; the partial run is still persisted.
func (s *AnalysisService) SubmitAnalysis(ctx context.Context, in *SubmitAnalysisRequest) (*biz.Run, error) {
	return s.uc.Submit(ctx, &biz.SubmitRequest{
		MediaURI:  in.MediaURI,
		CaseID:    in.CaseID,
		Overrides: in.Config,
	})
}

// GetAnalysis returns a persisted run with its result.
func (s *AnalysisService) GetAnalysis(ctx context.Context, in *GetAnalysisRequest) (*biz.Run, error) {
	return s.uc.Get(ctx, in.ID)
}

// ListAnalyses returns runs newest first.
func (s *AnalysisService) ListAnalyses(ctx context.Context, in *ListAnalysesRequest) (*ListAnalysesReply, error) {
	return s.uc.List(ctx, in.Cursor, in.Limit)
}

// RegisterAnalysisHTTPServer routes the analysis API on srv.
func RegisterAnalysisHTTPServer(srv *khttp.Server, s *AnalysisService) {
	r := srv.Route("/")
	r.POST("/v1/analyses", submitAnalysisHandler(s))
	r.GET("/v1/analyses", listAnalysesHandler(s))
	r.GET("/v1/analyses/{id}", getAnalysisHandler(s))
	r.GET("/healthz", func(ctx khttp.Context) error {
		return ctx.Result(200, map[string]string{"status": "ok"})
	})
}

func submitAnalysisHandler(s *AnalysisService) khttp.HandlerFunc {
	return func(ctx khttp.Context) error {
		var in SubmitAnalysisRequest
		if err := ctx.Bind(&in); err != nil {
			return biz.ErrConfigurationInvalid("decode request: %v", err)
		}
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return s.SubmitAnalysis(ctx, req.(*SubmitAnalysisRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func getAnalysisHandler(s *AnalysisService) khttp.HandlerFunc {
	return func(ctx khttp.Context) error {
		in := GetAnalysisRequest{ID: ctx.Vars().Get("id")}
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return s.GetAnalysis(ctx, req.(*GetAnalysisRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func listAnalysesHandler(s *AnalysisService) khttp.HandlerFunc {
	return func(ctx khttp.Context) error {
		var in ListAnalysesRequest
		if err := ctx.BindQuery(&in); err != nil {
			return biz.ErrConfigurationInvalid("decode query: %v", err)
		}
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return s.ListAnalyses(ctx, req.(*ListAnalysesRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
