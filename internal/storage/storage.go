// Package storage provides the key-value + document store abstraction the
// benchmark writes to and reads from.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	bencherr "github.com/arkilian/membench/internal/errors"
)

// NotFound is the index returned by FindInDocumentArray when the value is
// not an element of the array or the document does not exist.
const NotFound int64 = -1

// ErrNotConnected is returned by operations issued before Connect or after Close.
var ErrNotConnected = errors.New("adapter is not connected")

// Adapter is the narrow capability set the benchmark consumes.
// Implementations include Redis, SQLite, S3, Bitcask and an in-memory store.
type Adapter interface {
	// Connect establishes the session. It is called once per job.
	Connect(ctx context.Context) error

	// Close releases the session. It is safe to call after a failed Connect.
	Close() error

	// SetScalar overwrites the string value stored at key.
	SetScalar(ctx context.Context, key, value string) error

	// GetScalar returns the value at key; found is false when the key is absent.
	GetScalar(ctx context.Context, key string) (value string, found bool, err error)

	// SetDocumentArray overwrites the array stored at path within the
	// document at key.
	SetDocumentArray(ctx context.Context, key, path string, values []string) error

	// FindInDocumentArray returns the position of value within the array at
	// path, or NotFound.
	FindInDocumentArray(ctx context.Context, key, path, value string) (int64, error)
}

// Options holds backend settings that cannot be expressed in the URL.
type Options struct {
	// S3 configuration (for s3:// URLs)
	S3 S3Config
}

// Open returns an unconnected adapter for the storage URL.
//
// Supported schemes:
//
//	redis://host:port/db, rediss://...   Redis with the JSON module
//	sqlite:///path/to/file.db            SQLite (json_each for array lookups)
//	s3://bucket/prefix                   S3 or an S3-compatible endpoint
//	bitcask:///path/to/dir               embedded Bitcask
//	mem://                               in-process store
func Open(rawURL string, opts Options) (Adapter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, bencherr.NewValidationError(bencherr.CodeInvalidConfig,
			fmt.Sprintf("invalid storage url %q: %v", rawURL, err))
	}

	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss", "unix":
		return NewRedisAdapter(rawURL)
	case "sqlite", "sqlite3":
		return NewSQLiteAdapter(pathFromURL(u)), nil
	case "s3":
		return NewS3Adapter(u.Host, strings.TrimPrefix(u.Path, "/"), opts.S3), nil
	case "bitcask":
		return NewBitcaskAdapter(pathFromURL(u)), nil
	case "mem", "memory":
		return NewMemoryAdapter(DefaultShardCount), nil
	default:
		return nil, bencherr.New(bencherr.ErrCategoryStorage, bencherr.CodeUnsupportedBackend,
			fmt.Sprintf("unsupported storage scheme %q", u.Scheme))
	}
}

// pathFromURL accepts both sqlite:///abs/path and sqlite://rel/path.
func pathFromURL(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}

// encodeDocument renders an array document as JSON.
func encodeDocument(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

// decodeDocument parses an array document previously written by encodeDocument.
func decodeDocument(key string, data []byte) ([]string, error) {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, bencherr.NewStorageError(bencherr.CodeCorruptDocument,
			fmt.Sprintf("document %s is not a string array", key), err)
	}
	return values, nil
}

// indexOf is the client-side array lookup used by backends without a
// server-side ARRINDEX.
func indexOf(values []string, value string) int64 {
	for i, v := range values {
		if v == value {
			return int64(i)
		}
	}
	return NotFound
}

// checkRootPath restricts client-side backends to the root path "$", which is
// the only path the benchmark writes.
func checkRootPath(path string) error {
	if path != "$" && path != "." && path != "" {
		return bencherr.New(bencherr.ErrCategoryStorage, bencherr.CodeUnsupportedBackend,
			fmt.Sprintf("document path %q is not supported by this backend (use $)", path))
	}
	return nil
}
