package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
)

// MemoryReportRepo хранит отчёты в памяти процесса.
//
// Отчёты хранятся в сериализованном виде: результат Get
// не разделяет данные с сохранённым отчётом.
type MemoryReportRepo struct {
	mu      sync.RWMutex
	reports map[uuid.UUID][]byte
}

var _ ReportStore = (*MemoryReportRepo)(nil)

// NewMemoryReportRepo создаёт MemoryReportRepo.
func NewMemoryReportRepo() *MemoryReportRepo {
	return &MemoryReportRepo{reports: make(map[uuid.UUID][]byte)}
}

// Save сохраняет отчёт.
func (r *MemoryReportRepo) Save(_ context.Context, report *domain.RunReport) error {
	data, err := encodeReport(report)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ID] = data
	return nil
}

// Get возвращает отчёт по ID.
func (r *MemoryReportRepo) Get(_ context.Context, id uuid.UUID) (*domain.RunReport, error) {
	r.mu.RLock()
	data, ok := r.reports[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decodeReport(data)
}

// List возвращает отчёты по фильтру, новые первыми.
func (r *MemoryReportRepo) List(_ context.Context, filter ReportFilter) ([]domain.RunReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reports []domain.RunReport
	for _, data := range r.reports {
		report, err := decodeReport(data)
		if err != nil {
			return nil, err
		}
		if filter.Flow != "" && report.Flow != filter.Flow {
			continue
		}
		if filter.Status != "" && report.Status != filter.Status {
			continue
		}
		reports = append(reports, *report)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	if filter.Offset >= len(reports) {
		return nil, nil
	}
	reports = reports[filter.Offset:]
	if limit := filter.limit(); len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
