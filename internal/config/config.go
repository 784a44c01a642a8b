// Package config читает настройки GenFlow из переменных окружения.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shaiso/Genflow/internal/executor"
)

// Config — настройки процесса.
// Пустая строка означает, что соответствующий компонент не используется.
type Config struct {
	// LogLevel — DEBUG, INFO, WARN, ERROR.
	LogLevel string

	// LogFormat — json или text.
	LogFormat string

	// Workers — количество параллельно выполняемых шагов.
	Workers int

	// DatabaseURL — PostgreSQL для отчётов run.
	DatabaseURL string

	// SQLitePath — локальная база отчётов.
	SQLitePath string

	// RedisURL — реестр внешних исполнителей.
	RedisURL string

	// ExecutorPrefix — префикс ключей реестра исполнителей.
	ExecutorPrefix string

	// RabbitMQURL — публикация событий run.
	RabbitMQURL string

	// OpenAIKey — ключ completion-сервиса "openai".
	OpenAIKey string

	// OpenAIBaseURL — адрес OpenAI-совместимого API.
	OpenAIBaseURL string

	// OpenAIModel — модель по умолчанию.
	OpenAIModel string

	// PushgatewayURL — Prometheus Pushgateway для метрик run.
	PushgatewayURL string
}

// Load читает конфигурацию из окружения.
func Load() (*Config, error) {
	workers, err := getEnvInt("GENFLOW_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, fmt.Errorf("GENFLOW_WORKERS must be >= 1, got %d", workers)
	}

	format := strings.ToLower(getEnv("LOG_FORMAT", "json"))
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", format)
	}

	return &Config{
		LogLevel:       strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogFormat:      format,
		Workers:        workers,
		DatabaseURL:    os.Getenv("DB_URL"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ExecutorPrefix: getEnv("GENFLOW_EXECUTOR_PREFIX", executor.DefaultKeyPrefix),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
