package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Genflow/internal/steps"
)

// DefaultKeyPrefix — префикс ключей реестра исполнителей в Redis.
const DefaultKeyPrefix = "genflow:executor:"

const scanBatch = 100

// Resolver находит исполнителя функции по имени.
//
// Имя, являющееся http(s) URL, вызывается напрямую.
// Остальные имена ищутся в Redis: значение ключа "<prefix><name>" — URL.
// Без Redis разрешаются только URL.
type Resolver struct {
	client  *redis.Client
	prefix  string
	invoker *Invoker
}

// NewResolver создаёт Resolver. client может быть nil.
func NewResolver(client *redis.Client, prefix string, invoker *Invoker) *Resolver {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if invoker == nil {
		invoker = NewInvoker(nil, nil)
	}
	return &Resolver{client: client, prefix: prefix, invoker: invoker}
}

// NewRedisResolver подключается к Redis по URL (redis://host:port/db).
func NewRedisResolver(redisURL, prefix string, invoker *Invoker) (*Resolver, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewResolver(redis.NewClient(opts), prefix, invoker), nil
}

// ResolveFunction реализует steps.ExecutorResolver.
func (r *Resolver) ResolveFunction(ctx context.Context, name string) (steps.Function, error) {
	target, err := r.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.invoker.Function(target), nil
}

// Lookup возвращает URL исполнителя.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, error) {
	if IsURL(name) {
		return name, nil
	}
	if r.client == nil {
		return "", fmt.Errorf("%w: %s", steps.ErrFunctionNotFound, name)
	}

	target, err := r.client.Get(ctx, r.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", steps.ErrFunctionNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("lookup executor %s: %w", name, err)
	}

	if !IsURL(target) {
		return "", fmt.Errorf("%w: %s -> %q", ErrInvalidExecutor, name, target)
	}
	return target, nil
}

// Register записывает URL исполнителя в реестр.
func (r *Resolver) Register(ctx context.Context, name, target string) error {
	if r.client == nil {
		return errors.New("executor registry is not configured")
	}
	if !IsURL(target) {
		return fmt.Errorf("%w: %q", ErrInvalidExecutor, target)
	}
	if err := r.client.Set(ctx, r.prefix+name, target, 0).Err(); err != nil {
		return fmt.Errorf("register executor %s: %w", name, err)
	}
	return nil
}

// Unregister удаляет исполнителя из реестра.
func (r *Resolver) Unregister(ctx context.Context, name string) error {
	if r.client == nil {
		return errors.New("executor registry is not configured")
	}
	n, err := r.client.Del(ctx, r.prefix+name).Result()
	if err != nil {
		return fmt.Errorf("unregister executor %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", steps.ErrFunctionNotFound, name)
	}
	return nil
}

// List возвращает зарегистрированных исполнителей (имя → URL).
func (r *Resolver) List(ctx context.Context) (map[string]string, error) {
	executors := make(map[string]string)
	if r.client == nil {
		return executors, nil
	}

	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan executors: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return executors, nil
	}
	sort.Strings(keys)

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read executors: %w", err)
	}
	for i, key := range keys {
		if s, ok := values[i].(string); ok {
			executors[strings.TrimPrefix(key, r.prefix)] = s
		}
	}
	return executors, nil
}

// Close закрывает соединение с Redis.
func (r *Resolver) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
