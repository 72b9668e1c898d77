package storage

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bencherr "github.com/arkilian/membench/internal/errors"
)

// flakyAdapter fails the first n calls of every operation with err.
type flakyAdapter struct {
	*MemoryAdapter
	failures int
	err      error
	calls    int
}

func (f *flakyAdapter) GetScalar(ctx context.Context, key string) (string, bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", false, f.err
	}
	return f.MemoryAdapter.GetScalar(ctx, key)
}

func newRetrying(inner Adapter, maxRetries int) (*RetryingAdapter, *[]time.Duration) {
	var slept []time.Duration
	r := WithRetry(inner, RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   25 * time.Millisecond,
	}, log.New(io.Discard, "", 0))
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestRetryingAdapter_RecoversFromTransientErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter(1)
	require.NoError(t, mem.Connect(ctx))
	require.NoError(t, mem.SetScalar(ctx, "k", "v"))

	flaky := &flakyAdapter{
		MemoryAdapter: mem,
		failures:      2,
		err:           bencherr.NewConnectionError(bencherr.CodeSessionLost, "reset", io.EOF),
	}
	r, slept := newRetrying(flaky, 3)

	v, found, err := r.GetScalar(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", v)
	require.Equal(t, 3, flaky.calls)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *slept)
}

func TestRetryingAdapter_GivesUpAfterBudget(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter(1)
	require.NoError(t, mem.Connect(ctx))

	cause := bencherr.NewConnectionError(bencherr.CodeSessionLost, "reset", io.EOF)
	flaky := &flakyAdapter{MemoryAdapter: mem, failures: 100, err: cause}
	r, slept := newRetrying(flaky, 3)

	_, _, err := r.GetScalar(ctx, "k")
	require.ErrorIs(t, err, cause)
	require.Equal(t, 4, flaky.calls)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}, *slept)
}

func TestRetryingAdapter_DoesNotRetryPermanentErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter(1)
	require.NoError(t, mem.Connect(ctx))

	permanent := bencherr.NewStorageError(bencherr.CodeOperationFailed, "WRONGTYPE", errors.New("wrong type"))
	flaky := &flakyAdapter{MemoryAdapter: mem, failures: 100, err: permanent}
	r, slept := newRetrying(flaky, 3)

	_, _, err := r.GetScalar(ctx, "k")
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, flaky.calls)
	require.Empty(t, *slept)
}

func TestRetryingAdapter_ZeroRetries(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter(1)
	require.NoError(t, mem.Connect(ctx))

	flaky := &flakyAdapter{
		MemoryAdapter: mem,
		failures:      1,
		err:           bencherr.NewConnectionError(bencherr.CodeSessionLost, "reset", io.EOF),
	}
	r, _ := newRetrying(flaky, 0)

	_, _, err := r.GetScalar(ctx, "k")
	require.Error(t, err)
	require.Equal(t, 1, flaky.calls)
}

func TestRetryingAdapter_StopsOnCanceledContext(t *testing.T) {
	mem := NewMemoryAdapter(1)
	require.NoError(t, mem.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newRetrying(mem, 3)
	require.ErrorIs(t, r.SetScalar(ctx, "k", "v"), context.Canceled)
}

func TestRetryingAdapter_PassesThrough(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter(1)
	r, _ := newRetrying(mem, 3)

	require.NoError(t, r.Connect(ctx))
	require.NoError(t, r.SetScalar(ctx, "k", "v"))
	require.NoError(t, r.SetDocumentArray(ctx, "d", "$", []string{"a", "b"}))

	idx, err := r.FindInDocumentArray(ctx, "d", "$", "b")
	require.NoError(t, err)
	require.Equal(t, int64(1), idx)
	require.Same(t, Adapter(mem), r.Unwrap())
	require.NoError(t, r.Close())
}
