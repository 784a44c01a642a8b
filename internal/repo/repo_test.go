package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Genflow/internal/domain"
)

func sampleReport(flow string, created time.Time, failed bool) *domain.RunReport {
	report := domain.NewRunReport(flow)
	report.CreatedAt = created
	report.Order = []string{"load", "report"}
	report.MarkRunning()

	load := domain.StepResult{Name: "load", Type: domain.StepTypeFunctionCall}
	load.MarkStarted()
	load.MarkExecuted(map[string]any{"data": []any{"a", "b"}})
	report.Outputs["load"] = load.Outputs

	second := domain.StepResult{Name: "report", Type: domain.StepTypeFunctionCall}
	second.MarkStarted()
	if failed {
		second.MarkFailed(domain.StepStatusExecutionFailed, "boom")
	} else {
		second.MarkExecuted(map[string]any{"done": true})
		report.Outputs["report"] = second.Outputs
	}

	report.Steps = []domain.StepResult{load, second}
	report.MarkCompleted()
	return report
}

func stores(t *testing.T) map[string]ReportStore {
	t.Helper()
	ctx := context.Background()

	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqliteRepo, err := NewSQLiteReportRepo(ctx, db)
	require.NoError(t, err)

	result := map[string]ReportStore{
		"memory": NewMemoryReportRepo(),
		"sqlite": sqliteRepo,
	}

	if dsn := os.Getenv("GENFLOW_TEST_DB_URL"); dsn != "" {
		pool, err := NewPool(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)

		pgRepo := NewReportRepo(pool)
		require.NoError(t, pgRepo.EnsureSchema(ctx))
		_, err = pool.Exec(ctx, `TRUNCATE run_reports`)
		require.NoError(t, err)
		result["postgres"] = pgRepo
	}
	return result
}

func TestReportStore_SaveGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			report := sampleReport("pipeline", time.Now(), true)

			require.NoError(t, store.Save(ctx, report))

			got, err := store.Get(ctx, report.ID)
			require.NoError(t, err)
			assert.Equal(t, report.ID, got.ID)
			assert.Equal(t, "pipeline", got.Flow)
			assert.Equal(t, domain.RunStatusCompleted, got.Status)
			assert.Equal(t, []string{"load", "report"}, got.Order)
			assert.Equal(t, []any{"a", "b"}, got.Outputs["load"]["data"])
			assert.Equal(t, []string{"report"}, got.FailedSteps())
			assert.False(t, got.Succeeded())

			step, ok := got.Step("report")
			require.True(t, ok)
			assert.Equal(t, "boom", step.Error)

			_, err = store.Get(ctx, uuid.New())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestReportStore_SaveOverwrites(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			report := sampleReport("pipeline", time.Now(), false)
			require.NoError(t, store.Save(ctx, report))

			report.MarkAborted("cancelled")
			require.NoError(t, store.Save(ctx, report))

			got, err := store.Get(ctx, report.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.RunStatusAborted, got.Status)
			assert.Equal(t, "cancelled", got.Error)
			assert.Empty(t, got.Steps)
		})
	}
}

func TestReportStore_List(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().Add(-time.Hour)

			first := sampleReport("alpha", base, false)
			second := sampleReport("beta", base.Add(time.Minute), false)
			third := sampleReport("alpha", base.Add(2*time.Minute), true)
			aborted := sampleReport("alpha", base.Add(3*time.Minute), false)
			aborted.MarkAborted("cycle")

			for _, r := range []*domain.RunReport{first, second, third, aborted} {
				require.NoError(t, store.Save(ctx, r))
			}

			all, err := store.List(ctx, ReportFilter{})
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{aborted.ID, third.ID, second.ID, first.ID}, ids(all))

			alpha, err := store.List(ctx, ReportFilter{Flow: "alpha", Status: domain.RunStatusCompleted})
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{third.ID, first.ID}, ids(alpha))

			page, err := store.List(ctx, ReportFilter{Limit: 2, Offset: 1})
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{third.ID, second.ID}, ids(page))

			empty, err := store.List(ctx, ReportFilter{Flow: "missing"})
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func ids(reports []domain.RunReport) []uuid.UUID {
	out := make([]uuid.UUID, len(reports))
	for i := range reports {
		out[i] = reports[i].ID
	}
	return out
}
