package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
)

// SQLiteReportRepo — репозиторий отчётов run в SQLite.
// Используется CLI для локальной истории запусков.
type SQLiteReportRepo struct {
	db *sql.DB
}

var _ ReportStore = (*SQLiteReportRepo)(nil)

// NewSQLiteReportRepo создаёт репозиторий и схему.
func NewSQLiteReportRepo(ctx context.Context, db *sql.DB) (*SQLiteReportRepo, error) {
	r := &SQLiteReportRepo{db: db}
	if err := r.initSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteReportRepo) initSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_reports (
			id TEXT PRIMARY KEY,
			flow TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			succeeded INTEGER NOT NULL,
			report TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_run_reports_flow ON run_reports(flow, created_at);
	`)
	if err != nil {
		return fmt.Errorf("create run_reports: %w", err)
	}
	return nil
}

// Save сохраняет отчёт.
func (r *SQLiteReportRepo) Save(ctx context.Context, report *domain.RunReport) error {
	data, err := encodeReport(report)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO run_reports (id, flow, status, succeeded, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			succeeded = excluded.succeeded,
			report = excluded.report`,
		report.ID.String(),
		report.Flow,
		string(report.Status),
		report.Succeeded(),
		string(data),
		report.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get возвращает отчёт по ID.
func (r *SQLiteReportRepo) Get(ctx context.Context, id uuid.UUID) (*domain.RunReport, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT report FROM run_reports WHERE id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return decodeReport([]byte(data))
}

// List возвращает отчёты по фильтру, новые первыми.
func (r *SQLiteReportRepo) List(ctx context.Context, filter ReportFilter) ([]domain.RunReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT report
		FROM run_reports
		WHERE (? = '' OR flow = ?)
		  AND (? = '' OR status = ?)
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		filter.Flow, filter.Flow,
		string(filter.Status), string(filter.Status),
		filter.limit(), filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.RunReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report, err := decodeReport([]byte(data))
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}
