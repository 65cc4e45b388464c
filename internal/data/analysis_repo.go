package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"videoanalyzer/internal/biz"
	"videoanalyzer/internal/pkg/pagination"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
)

const (
	upsertRun = `
INSERT INTO analysis_runs (id, case_id, media_uri, status, config, result, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    result = EXCLUDED.result,
    error = EXCLUDED.error,
    updated_at = EXCLUDED.updated_at`

	selectRun = `
SELECT id, case_id, media_uri, status, config, result, error, created_at, updated_at
FROM analysis_runs WHERE id = $1`

	listRunsColumns = `
SELECT id, case_id, media_uri, status, config, NULL::jsonb, error, created_at, updated_at
FROM analysis_runs`
)

type analysisRepo struct {
	data *Data
	log  *log.Helper
}

// NewAnalysisRepo creates a new AnalysisRepo.
func NewAnalysisRepo(data *Data, logger log.Logger) biz.AnalysisRepo {
	return &analysisRepo{
		data: data,
		log:  log.NewHelper(log.With(logger, "module", "data/analysis")),
	}
}

func (r *analysisRepo) Save(ctx context.Context, run *biz.Run) error {
	config, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	var result []byte
	if run.Result != nil {
		if result, err = json.Marshal(run.Result); err != nil {
			return err
		}
	}
	_, err = r.data.Pool.Exec(ctx, upsertRun,
		run.ID, run.CaseID, run.MediaURI, string(run.Status),
		config, result, run.Error, run.CreatedAt, run.UpdatedAt,
	)
	return err
}

func (r *analysisRepo) Get(ctx context.Context, id string) (*biz.Run, error) {
	run, err := scanRun(r.data.Pool.QueryRow(ctx, selectRun, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return run, nil
}

func (r *analysisRepo) List(ctx context.Context, req *pagination.CursorRequest) (*pagination.CursorResponse[*biz.Run], error) {
	cursor, err := req.DecodedCursor()
	if err != nil {
		return nil, err
	}

	query := listRunsColumns
	args := []any{req.GetFetchLimit()}
	if cursor != nil {
		query += " WHERE " + pagination.SQLCursorCondition("created_at", pagination.DESC, 2)
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT $1", pagination.SQLOrderBy("created_at", pagination.DESC))

	rows, err := r.data.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*biz.Run, 0, req.GetFetchLimit())
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pagination.BuildCursorResponse(runs, req.GetLimit(), func(run *biz.Run) *pagination.Cursor {
		return &pagination.Cursor{ID: run.ID, CreatedAt: run.CreatedAt}
	}), nil
}

// scanRun reads one row in column order of selectRun.
func scanRun(row pgx.Row) (*biz.Run, error) {
	var (
		run            biz.Run
		status         string
		config, result []byte
	)
	if err := row.Scan(&run.ID, &run.CaseID, &run.MediaURI, &status, &config, &result, &run.Error, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.Status = biz.RunStatus(status)
	if err := json.Unmarshal(config, &run.Config); err != nil {
		return nil, fmt.Errorf("decode config of run %s: %w", run.ID, err)
	}
	if len(result) > 0 {
		run.Result = &biz.AnalysisResult{}
		if err := json.Unmarshal(result, run.Result); err != nil {
			return nil, fmt.Errorf("decode result of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}
