package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	bencherr "github.com/arkilian/membench/internal/errors"
)

// RedisAdapter implements Adapter on Redis with the JSON module.
// Scalars use SET/GET; documents use JSON.SET and JSON.ARRINDEX.
type RedisAdapter struct {
	opts   *redis.Options
	client *redis.Client
}

// NewRedisAdapter parses a redis:// or rediss:// URL.
func NewRedisAdapter(rawURL string) (*RedisAdapter, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, bencherr.NewValidationError(bencherr.CodeInvalidConfig,
			fmt.Sprintf("invalid redis url: %v", err))
	}
	return &RedisAdapter{opts: opts}, nil
}

// NewRedisAdapterWithClient wraps an already configured client.
func NewRedisAdapterWithClient(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{opts: client.Options(), client: client}
}

// Connect opens the client and verifies the server answers PING.
func (r *RedisAdapter) Connect(ctx context.Context) error {
	if r.client == nil {
		r.client = redis.NewClient(r.opts)
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return bencherr.NewConnectionError(bencherr.CodeConnectFailed,
			fmt.Sprintf("failed to reach redis at %s", r.opts.Addr), err)
	}
	return nil
}

// Close closes the client.
func (r *RedisAdapter) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	if err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

// SetScalar issues SET key value.
func (r *RedisAdapter) SetScalar(ctx context.Context, key, value string) error {
	if r.client == nil {
		return ErrNotConnected
	}
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return classifyRedisError("SET", key, err)
	}
	return nil
}

// GetScalar issues GET key.
func (r *RedisAdapter) GetScalar(ctx context.Context, key string) (string, bool, error) {
	if r.client == nil {
		return "", false, ErrNotConnected
	}
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classifyRedisError("GET", key, err)
	}
	return v, true, nil
}

// SetDocumentArray issues JSON.SET key path <values as JSON>.
func (r *RedisAdapter) SetDocumentArray(ctx context.Context, key, path string, values []string) error {
	if r.client == nil {
		return ErrNotConnected
	}
	doc, err := encodeDocument(values)
	if err != nil {
		return bencherr.NewInternalError("failed to encode document", err)
	}
	if err := r.client.JSONSet(ctx, key, path, doc).Err(); err != nil {
		return classifyRedisError("JSON.SET", key, err)
	}
	return nil
}

// FindInDocumentArray issues JSON.ARRINDEX key path "<value>".
// With a JSONPath ($...) the server answers one index per matched array;
// the first match is returned.
func (r *RedisAdapter) FindInDocumentArray(ctx context.Context, key, path, value string) (int64, error) {
	if r.client == nil {
		return NotFound, ErrNotConnected
	}
	quoted, err := json.Marshal(value)
	if err != nil {
		return NotFound, bencherr.NewInternalError("failed to encode value", err)
	}
	idx, err := r.client.JSONArrIndex(ctx, key, path, string(quoted)).Result()
	if errors.Is(err, redis.Nil) || isMissingKey(err) {
		return NotFound, nil
	}
	if err != nil {
		return NotFound, classifyRedisError("JSON.ARRINDEX", key, err)
	}
	if len(idx) == 0 {
		return NotFound, nil
	}
	return idx[0], nil
}

// isMissingKey matches the RedisJSON reply for array operations on a key
// that was never written.
func isMissingKey(err error) bool {
	if err == nil {
		return false
	}
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "doesn't exist") || strings.Contains(msg, "does not exist")
}

// classifyRedisError separates server replies from transport failures.
// Only the latter are retryable.
func classifyRedisError(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return bencherr.NewStorageError(bencherr.CodeOperationFailed,
			fmt.Sprintf("%s %s rejected by server", op, key), err)
	}
	return bencherr.NewConnectionError(bencherr.CodeSessionLost,
		fmt.Sprintf("%s %s failed", op, key), err)
}
