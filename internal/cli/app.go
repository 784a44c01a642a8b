package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Genflow/internal/config"
	"github.com/shaiso/Genflow/internal/executor"
	"github.com/shaiso/Genflow/internal/llm"
	"github.com/shaiso/Genflow/internal/repo"
	"github.com/shaiso/Genflow/internal/steps"
)

// ServiceOpenAI — имя completion-сервиса OpenAI в service_call.
const ServiceOpenAI = "openai"

// ErrNoReportStore — не задан ни DB_URL, ни SQLITE_PATH.
var ErrNoReportStore = errors.New("no report store configured (set DB_URL or SQLITE_PATH)")

// App — зависимости команд CLI.
// Создаётся после разбора флагов корневой команды.
type App struct {
	Config *config.Config
	Out    *Output
	Logger *slog.Logger
}

// Executors создаёт resolver внешних исполнителей.
// Без REDIS_URL разрешаются только функции, заданные URL.
func (a *App) Executors() (*executor.Resolver, error) {
	if a.Config.RedisURL == "" {
		return executor.NewResolver(nil, a.Config.ExecutorPrefix, nil), nil
	}
	return executor.NewRedisResolver(a.Config.RedisURL, a.Config.ExecutorPrefix, nil)
}

// Capabilities собирает возможности диспетчера шагов.
func (a *App) Capabilities(executors steps.ExecutorResolver, toolSchemas map[string]map[string]any) steps.Capabilities {
	services := make(map[string]steps.CompletionService)
	if a.Config.OpenAIKey != "" || a.Config.OpenAIBaseURL != "" {
		services[ServiceOpenAI] = llm.NewOpenAI(a.Config.OpenAIKey,
			llm.WithBaseURL(a.Config.OpenAIBaseURL),
			llm.WithModel(a.Config.OpenAIModel),
		)
	}

	return steps.Capabilities{
		Executors:   executors,
		Services:    services,
		ToolSchemas: toolSchemas,
	}
}

// OpenReports открывает хранилище отчётов: PostgreSQL, если задан DB_URL,
// иначе SQLite. Возвращаемая функция закрывает соединение.
func (a *App) OpenReports(ctx context.Context) (repo.ReportStore, func(), error) {
	switch {
	case a.Config.DatabaseURL != "":
		pool, err := repo.NewPool(ctx, a.Config.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := repo.NewReportRepo(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case a.Config.SQLitePath != "":
		db, err := repo.OpenSQLite(ctx, a.Config.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := repo.NewSQLiteReportRepo(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	default:
		return nil, nil, ErrNoReportStore
	}
}

// LoadToolSchemas читает YAML файл "имя инструмента → JSON схема параметров".
func LoadToolSchemas(path string) (map[string]map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool schemas: %w", err)
	}

	var schemas map[string]map[string]any
	if err := yaml.Unmarshal(data, &schemas); err != nil {
		return nil, fmt.Errorf("parse tool schemas %s: %w", path, err)
	}
	return schemas, nil
}
