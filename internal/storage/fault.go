package storage

import (
	"context"
	"sync/atomic"
)

// FaultAdapter wraps an Adapter and fails the Nth read or write with a fixed
// error. Counting is 1-based; zero disables the fault. Used by tests to
// exercise the abort paths of generation and benchmarking.
type FaultAdapter struct {
	Adapter

	FailReadAt  int64
	FailWriteAt int64
	Err         error

	reads  atomic.Int64
	writes atomic.Int64
}

// NewFaultAdapter wraps inner. Configure the fault through the exported fields.
func NewFaultAdapter(inner Adapter, err error) *FaultAdapter {
	return &FaultAdapter{Adapter: inner, Err: err}
}

func (f *FaultAdapter) writeFault() error {
	n := f.writes.Add(1)
	if f.FailWriteAt > 0 && n == f.FailWriteAt {
		return f.Err
	}
	return nil
}

func (f *FaultAdapter) readFault() error {
	n := f.reads.Add(1)
	if f.FailReadAt > 0 && n == f.FailReadAt {
		return f.Err
	}
	return nil
}

func (f *FaultAdapter) SetScalar(ctx context.Context, key, value string) error {
	if err := f.writeFault(); err != nil {
		return err
	}
	return f.Adapter.SetScalar(ctx, key, value)
}

func (f *FaultAdapter) SetDocumentArray(ctx context.Context, key, path string, values []string) error {
	if err := f.writeFault(); err != nil {
		return err
	}
	return f.Adapter.SetDocumentArray(ctx, key, path, values)
}

func (f *FaultAdapter) GetScalar(ctx context.Context, key string) (string, bool, error) {
	if err := f.readFault(); err != nil {
		return "", false, err
	}
	return f.Adapter.GetScalar(ctx, key)
}

func (f *FaultAdapter) FindInDocumentArray(ctx context.Context, key, path, value string) (int64, error) {
	if err := f.readFault(); err != nil {
		return NotFound, err
	}
	return f.Adapter.FindInDocumentArray(ctx, key, path, value)
}

// Reads returns the number of read calls observed, including the failed one.
func (f *FaultAdapter) Reads() int64 {
	return f.reads.Load()
}

// Writes returns the number of write calls observed, including the failed one.
func (f *FaultAdapter) Writes() int64 {
	return f.writes.Load()
}
