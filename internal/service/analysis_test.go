package service

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"videoanalyzer/internal/biz"
	"videoanalyzer/internal/pkg/media"
	"videoanalyzer/internal/pkg/pagination"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

type memoryRepo struct {
	mu   sync.Mutex
	runs []*biz.Run
}

func (r *memoryRepo) Save(ctx context.Context, run *biz.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (*biz.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) List(ctx context.Context, req *pagination.CursorRequest) (*pagination.CursorResponse[*biz.Run], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := make([]*biz.Run, 0, len(r.runs))
	for i := len(r.runs) - 1; i >= 0; i-- {
		runs = append(runs, r.runs[i])
	}
	return pagination.BuildCursorResponse(runs, req.GetLimit(), func(run *biz.Run) *pagination.Cursor {
		return &pagination.Cursor{ID: run.ID, CreatedAt: run.CreatedAt}
	}), nil
}

type syntheticOpener struct{}

func (syntheticOpener) Open(ctx context.Context, uri string) (media.Source, error) {
	if !strings.HasSuffix(uri, ".mp4") {
		return nil, media.ErrUnreadable
	}
	return &media.Synthetic{Length: 12, Frames: func(ts float64) image.Image {
		img := image.NewGray(image.Rect(0, 0, 32, 32))
		for i := range img.Pix {
			img.Pix[i] = uint8(60 + (i*7+int(ts)*13)%120)
		}
		return img
	}}, nil
}

type cleanClassifier struct{}

func (cleanClassifier) ClassifyFrame(ctx context.Context, image []byte, prompt string) (*biz.Classification, error) {
	return &biz.Classification{Confidence: 0.9, Description: "officer talking to driver"}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := biz.DefaultAnalysisConfig()
	cfg.MaxFrames = 3
	cfg.Strategy = "uniform"
	cfg.ReadAnchors = false

	uc := biz.NewAnalysisUsecase(&memoryRepo{}, syntheticOpener{}, &biz.Capabilities{Classifier: cleanClassifier{}},
		cfg, nil, biz.NewPricing(nil), nil, log.DefaultLogger)
	srv := khttp.NewServer()
	RegisterAnalysisHTTPServer(srv, NewAnalysisService(uc, log.DefaultLogger))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestAnalysisHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/analyses", `{"media_uri":"cam1.mp4","case_id":"case-1","config":{"max_frames":2}}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var run biz.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Status != biz.RunCompleted || run.CaseID != "case-1" {
		t.Errorf("Unexpected run %+v", run)
	}
	if run.Result == nil || run.Result.FramesAnalyzed != 2 {
		t.Errorf("Expected 2 frames analyzed, got %+v", run.Result)
	}

	get, err := http.Get(ts.URL + "/v1/analyses/" + run.ID)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for GET, got %d", get.StatusCode)
	}

	list, err := http.Get(ts.URL + "/v1/analyses?limit=5")
	if err != nil {
		t.Fatalf("LIST: %v", err)
	}
	defer list.Body.Close()
	var page ListAnalysesReply
	if err := json.NewDecoder(list.Body).Decode(&page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(page.Items) != 1 || page.HasMore {
		t.Errorf("Expected one run and no more pages, got %+v", page)
	}
}

func TestAnalysisHTTPErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		do         func() (*http.Response, error)
		wantStatus int
		wantReason string
	}{
		{
			name: "unknown id",
			do: func() (*http.Response, error) {
				return http.Get(ts.URL + "/v1/analyses/7d9f4c2e-0000-4000-8000-000000000000")
			},
			wantStatus: 404,
			wantReason: biz.ReasonAnalysisNotFound,
		},
		{
			name: "invalid config",
			do: func() (*http.Response, error) {
				return http.Post(ts.URL+"/v1/analyses", "application/json", strings.NewReader(`{"media_uri":"cam1.mp4","config":{"max_frames":500}}`))
			},
			wantStatus: 400,
			wantReason: biz.ReasonConfigurationInvalid,
		},
		{
			name: "unreadable media",
			do: func() (*http.Response, error) {
				return http.Post(ts.URL+"/v1/analyses", "application/json", strings.NewReader(`{"media_uri":"notes.txt"}`))
			},
			wantStatus: 422,
			wantReason: biz.ReasonMediaUnreadable,
		},
		{
			name: "bad cursor",
			do: func() (*http.Response, error) {
				return http.Get(ts.URL + "/v1/analyses?cursor=%21%21")
			},
			wantStatus: 400,
			wantReason: biz.ReasonConfigurationInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.do()
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			var body struct {
				Reason string `json:"reason"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Reason != tt.wantReason {
				t.Errorf("Expected reason %s, got %s", tt.wantReason, body.Reason)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
