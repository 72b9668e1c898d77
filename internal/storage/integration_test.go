package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bencherr "github.com/arkilian/membench/internal/errors"
)

// Integration tests run against real backends when configured, either in
// the environment or in a .env file at the repository root:
//
//	MEMBENCH_TEST_REDIS_URL=redis://localhost:6379/15  (needs the JSON module)
//	MEMBENCH_TEST_S3_BUCKET=membench-it
//	MEMBENCH_TEST_S3_ENDPOINT=http://localhost:9000
func integrationEnv(t *testing.T, name string) string {
	t.Helper()
	_ = godotenv.Load("../../.env")
	v := os.Getenv(name)
	if v == "" {
		t.Skipf("%s not set", name)
	}
	return v
}

func TestRedisAdapter_Integration(t *testing.T) {
	url := integrationEnv(t, "MEMBENCH_TEST_REDIS_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := NewRedisAdapter(url)
	require.NoError(t, err)
	require.NoError(t, a.Connect(ctx))
	defer a.Close()
	require.NoError(t, a.client.FlushDB(ctx).Err())

	runAdapterContract(t, a)
}

func TestRedisAdapter_ConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Port 1 is reserved and never has a listener.
	a, err := NewRedisAdapter("redis://127.0.0.1:1")
	require.NoError(t, err)
	defer a.Close()

	err = a.Connect(ctx)
	require.Error(t, err)
}

func TestRedisAdapter_WithClientConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: time.Second,
		MaxRetries:  -1,
	})
	a := NewRedisAdapterWithClient(client)
	defer a.Close()

	err := a.Connect(ctx)
	require.Error(t, err)
	assert.Equal(t, bencherr.ErrCategoryConnection, bencherr.GetCategory(err))
	assert.Equal(t, bencherr.CodeConnectFailed, bencherr.GetCode(err))
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

// unreachableS3 returns a client whose endpoint has no listener.
func unreachableS3() *s3.Client {
	return s3.New(s3.Options{
		Region:           "us-east-1",
		BaseEndpoint:     aws.String("http://127.0.0.1:1"),
		Credentials:      aws.AnonymousCredentials{},
		UsePathStyle:     true,
		RetryMaxAttempts: 1,
	})
}

func TestS3Adapter_WithClientConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := NewS3AdapterWithClient(unreachableS3(), "membench", "bench")
	defer a.Close()

	err := a.Connect(ctx)
	require.Error(t, err)
	assert.Equal(t, bencherr.ErrCategoryConnection, bencherr.GetCategory(err))
	assert.Contains(t, err.Error(), "bucket membench is not reachable")
}

func TestS3Adapter_WithClientEmptyBucket(t *testing.T) {
	a := NewS3AdapterWithClient(unreachableS3(), "", "bench")
	err := a.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, bencherr.ErrCategoryValidation, bencherr.GetCategory(err))
	assert.Equal(t, bencherr.CodeInvalidConfig, bencherr.GetCode(err))
}

func TestS3Adapter_Integration(t *testing.T) {
	bucket := integrationEnv(t, "MEMBENCH_TEST_S3_BUCKET")
	cfg := DefaultS3Config()
	if v := os.Getenv("MEMBENCH_TEST_S3_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("MEMBENCH_TEST_S3_ENDPOINT"); v != "" {
		cfg.Endpoint = v
		cfg.UsePathStyle = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a := NewS3Adapter(bucket, fmt.Sprintf("it/%d", time.Now().UnixNano()), cfg)
	require.NoError(t, a.Connect(ctx))
	defer a.Close()

	runAdapterContract(t, a)
}
