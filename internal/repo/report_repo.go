package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Genflow/internal/domain"
)

// ReportRepo — репозиторий отчётов run в PostgreSQL.
type ReportRepo struct {
	pool *pgxpool.Pool
}

var _ ReportStore = (*ReportRepo)(nil)

// NewReportRepo создаёт ReportRepo.
func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// EnsureSchema создаёт таблицу run_reports, если её нет.
func (r *ReportRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS run_reports (
			id          UUID PRIMARY KEY,
			flow        TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			succeeded   BOOLEAN NOT NULL,
			error       TEXT,
			report      JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_run_reports_flow ON run_reports (flow, created_at DESC);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create run_reports: %w", err)
	}
	return nil
}

// Save сохраняет отчёт.
func (r *ReportRepo) Save(ctx context.Context, report *domain.RunReport) error {
	data, err := encodeReport(report)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO run_reports (id, flow, status, succeeded, error, report, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, succeeded = EXCLUDED.succeeded, error = EXCLUDED.error,
		    report = EXCLUDED.report, finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		report.ID,
		report.Flow,
		report.Status,
		report.Succeeded(),
		nullString(report.Error),
		data,
		report.CreatedAt,
		report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get возвращает отчёт по ID.
func (r *ReportRepo) Get(ctx context.Context, id uuid.UUID) (*domain.RunReport, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT report FROM run_reports WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return decodeReport(data)
}

// List возвращает отчёты по фильтру, новые первыми.
func (r *ReportRepo) List(ctx context.Context, filter ReportFilter) ([]domain.RunReport, error) {
	query := `
		SELECT report
		FROM run_reports
		WHERE ($1::text IS NULL OR flow = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Flow),
		nullString(string(filter.Status)),
		filter.limit(),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.RunReport
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report, err := decodeReport(data)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
