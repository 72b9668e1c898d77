package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/golang/snappy"

	bencherr "github.com/arkilian/membench/internal/errors"
)

// S3Config holds configuration for S3 storage.
type S3Config struct {
	// Region is the AWS region for the S3 bucket.
	Region string `json:"region" yaml:"region"`
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region: "us-east-1",
	}
}

// S3Adapter implements Adapter with one object per key.
// Scalars are stored verbatim under <prefix>/kv/; documents are
// snappy-compressed JSON under <prefix>/doc/ and searched client-side.
type S3Adapter struct {
	client *s3.Client
	bucket string
	prefix string
	config S3Config
}

// NewS3Adapter creates an adapter for bucket, namespacing objects under prefix.
func NewS3Adapter(bucket, prefix string, cfg S3Config) *S3Adapter {
	return &S3Adapter{
		bucket: bucket,
		prefix: prefix,
		config: cfg,
	}
}

// NewS3AdapterWithClient creates an adapter with a pre-configured client.
func NewS3AdapterWithClient(client *s3.Client, bucket, prefix string) *S3Adapter {
	return &S3Adapter{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Connect loads AWS configuration and checks the bucket is reachable.
func (s *S3Adapter) Connect(ctx context.Context) error {
	if s.bucket == "" {
		return bencherr.NewValidationError(bencherr.CodeInvalidConfig, "s3 bucket is empty")
	}

	if s.client == nil {
		var opts []func(*config.LoadOptions) error
		if s.config.Region != "" {
			opts = append(opts, config.WithRegion(s.config.Region))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return bencherr.NewConnectionError(bencherr.CodeConnectFailed, "failed to load AWS config", err)
		}

		var s3Opts []func(*s3.Options)
		if s.config.Endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(s.config.Endpoint)
			})
		}
		if s.config.UsePathStyle {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.UsePathStyle = true
			})
		}
		s.client = s3.NewFromConfig(awsCfg, s3Opts...)
	}

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return bencherr.NewConnectionError(bencherr.CodeConnectFailed,
			fmt.Sprintf("bucket %s is not reachable", s.bucket), err)
	}
	return nil
}

// Close drops the client. The SDK holds no session to release.
func (s *S3Adapter) Close() error {
	s.client = nil
	return nil
}

func (s *S3Adapter) scalarPath(key string) string {
	return path.Join(s.prefix, "kv", key)
}

func (s *S3Adapter) documentPath(key string) string {
	return path.Join(s.prefix, "doc", key+".json.sz")
}

// SetScalar puts the value as the object body.
func (s *S3Adapter) SetScalar(ctx context.Context, key, value string) error {
	if s.client == nil {
		return ErrNotConnected
	}
	if err := s.put(ctx, s.scalarPath(key), []byte(value), "text/plain"); err != nil {
		return classifyS3Error("put", key, err)
	}
	return nil
}

// GetScalar fetches the object body.
func (s *S3Adapter) GetScalar(ctx context.Context, key string) (string, bool, error) {
	if s.client == nil {
		return "", false, ErrNotConnected
	}
	body, found, err := s.get(ctx, s.scalarPath(key))
	if err != nil {
		return "", false, classifyS3Error("get", key, err)
	}
	return string(body), found, nil
}

// SetDocumentArray puts the snappy-compressed JSON array.
func (s *S3Adapter) SetDocumentArray(ctx context.Context, key, p string, values []string) error {
	if s.client == nil {
		return ErrNotConnected
	}
	if err := checkRootPath(p); err != nil {
		return err
	}
	raw, err := encodeDocument(values)
	if err != nil {
		return bencherr.NewInternalError("failed to encode document", err)
	}
	if err := s.put(ctx, s.documentPath(key), snappy.Encode(nil, raw), "application/octet-stream"); err != nil {
		return classifyS3Error("put document", key, err)
	}
	return nil
}

// FindInDocumentArray fetches and decodes the document, then scans it.
func (s *S3Adapter) FindInDocumentArray(ctx context.Context, key, p, value string) (int64, error) {
	if s.client == nil {
		return NotFound, ErrNotConnected
	}
	if err := checkRootPath(p); err != nil {
		return NotFound, err
	}
	compressed, found, err := s.get(ctx, s.documentPath(key))
	if err != nil {
		return NotFound, classifyS3Error("get document", key, err)
	}
	if !found {
		return NotFound, nil
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return NotFound, bencherr.NewStorageError(bencherr.CodeCorruptDocument,
			fmt.Sprintf("document %s is not snappy encoded", key), err)
	}
	values, err := decodeDocument(key, raw)
	if err != nil {
		return NotFound, err
	}
	return indexOf(values, value), nil
}

func (s *S3Adapter) put(ctx context.Context, objectPath string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectPath),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *S3Adapter) get(ctx context.Context, objectPath string) ([]byte, bool, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// classifyS3Error treats service replies as permanent and everything else
// (DNS, connection reset, timeouts) as a lost session.
func classifyS3Error(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return bencherr.NewStorageError(bencherr.CodeOperationFailed,
			fmt.Sprintf("s3 %s %s: %s", op, key, apiErr.ErrorCode()), err)
	}
	return bencherr.NewConnectionError(bencherr.CodeSessionLost, fmt.Sprintf("s3 %s %s", op, key), err)
}
