package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
)

// ReportStore хранит отчёты завершённых run.
type ReportStore interface {
	// Save сохраняет отчёт. Повторное сохранение перезаписывает его.
	Save(ctx context.Context, report *domain.RunReport) error

	// Get возвращает отчёт по ID или ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.RunReport, error)

	// List возвращает отчёты, новые первыми.
	List(ctx context.Context, filter ReportFilter) ([]domain.RunReport, error)
}

// ReportFilter — параметры фильтрации отчётов.
type ReportFilter struct {
	Flow   string
	Status domain.RunStatus
	Limit  int
	Offset int
}

const defaultListLimit = 50

func (f ReportFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// encodeReport сериализует отчёт целиком.
func encodeReport(report *domain.RunReport) ([]byte, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

func decodeReport(data []byte) (*domain.RunReport, error) {
	var report domain.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
