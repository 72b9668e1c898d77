package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mills.io/bitcask/v2"

	bencherr "github.com/arkilian/membench/internal/errors"
)

// Limits for a single entry. Keys hold a tag, a namespace and a token of up
// to 64 hex characters; a document of 1000 such tokens is about 67KB.
const (
	bitcaskMaxKeySize   = 256
	bitcaskMaxValueSize = 1 << 20
)

// Scalars and documents share one keyspace, so each gets a one-byte tag.
const (
	bitcaskScalarTag   = 's'
	bitcaskDocumentTag = 'd'
)

// BitcaskAdapter implements Adapter on an embedded Bitcask store.
type BitcaskAdapter struct {
	dir string
	db  *bitcask.Bitcask
}

// NewBitcaskAdapter creates an adapter for the store in dir.
func NewBitcaskAdapter(dir string) *BitcaskAdapter {
	return &BitcaskAdapter{dir: dir}
}

// Connect opens (or creates) the store.
func (b *BitcaskAdapter) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.dir == "" {
		return bencherr.NewValidationError(bencherr.CodeInvalidConfig, "bitcask path is empty")
	}
	db, err := bitcask.Open(b.dir,
		bitcask.WithMaxKeySize(bitcaskMaxKeySize),
		bitcask.WithMaxValueSize(bitcaskMaxValueSize),
	)
	if err != nil {
		return bencherr.NewConnectionError(bencherr.CodeConnectFailed,
			fmt.Sprintf("failed to open bitcask at %s", b.dir), err)
	}
	b.db = db
	return nil
}

// Close closes the store.
func (b *BitcaskAdapter) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func bitcaskKey(tag byte, key string) []byte {
	k := make([]byte, 0, len(key)+1)
	k = append(k, tag)
	return append(k, key...)
}

// SetScalar stores value at key.
func (b *BitcaskAdapter) SetScalar(ctx context.Context, key, value string) error {
	if b.db == nil {
		return ErrNotConnected
	}
	if err := b.db.Put(bitcaskKey(bitcaskScalarTag, key), []byte(value)); err != nil {
		return bencherr.NewStorageError(bencherr.CodeOperationFailed, fmt.Sprintf("put %s", key), err)
	}
	return nil
}

// GetScalar returns the value at key.
func (b *BitcaskAdapter) GetScalar(ctx context.Context, key string) (string, bool, error) {
	if b.db == nil {
		return "", false, ErrNotConnected
	}
	v, err := b.db.Get(bitcaskKey(bitcaskScalarTag, key))
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, bencherr.NewStorageError(bencherr.CodeOperationFailed, fmt.Sprintf("get %s", key), err)
	}
	return string(v), true, nil
}

// SetDocumentArray stores the JSON array document at key.
func (b *BitcaskAdapter) SetDocumentArray(ctx context.Context, key, path string, values []string) error {
	if b.db == nil {
		return ErrNotConnected
	}
	if err := checkRootPath(path); err != nil {
		return err
	}
	body, err := encodeDocument(values)
	if err != nil {
		return bencherr.NewInternalError("failed to encode document", err)
	}
	if err := b.db.Put(bitcaskKey(bitcaskDocumentTag, key), body); err != nil {
		return bencherr.NewStorageError(bencherr.CodeOperationFailed, fmt.Sprintf("put document %s", key), err)
	}
	return nil
}

// FindInDocumentArray loads the document and scans it client-side.
func (b *BitcaskAdapter) FindInDocumentArray(ctx context.Context, key, path, value string) (int64, error) {
	if b.db == nil {
		return NotFound, ErrNotConnected
	}
	if err := checkRootPath(path); err != nil {
		return NotFound, err
	}
	body, err := b.db.Get(bitcaskKey(bitcaskDocumentTag, key))
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return NotFound, bencherr.NewStorageError(bencherr.CodeOperationFailed, fmt.Sprintf("get document %s", key), err)
	}
	values, err := decodeDocument(key, body)
	if err != nil {
		return NotFound, err
	}
	return indexOf(values, value), nil
}
