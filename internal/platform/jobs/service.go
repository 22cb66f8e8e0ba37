package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Migiro-Johans/HRS/internal/platform/metrics"
)

const JobPayslipBatch = "payslip_batch"

// Service runs background work off the request path. Every run is recorded
// in job_runs so operators can see what happened after the HTTP response
// went out.
type Service struct {
	DB      *pgxpool.Pool
	Metrics *metrics.Collector
	queue   chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, collector *metrics.Collector) *Service {
	return &Service{
		DB:      db,
		Metrics: collector,
		queue:   make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	if s.Metrics != nil {
		s.Metrics.RecordJob(err != nil)
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}
