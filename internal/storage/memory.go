package storage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the number of shards used by mem:// URLs.
const DefaultShardCount = 16

// OpCounts is a snapshot of the operations an adapter has served.
type OpCounts struct {
	ScalarWrites   int64
	ScalarReads    int64
	DocumentWrites int64
	DocumentReads  int64
}

// Writes returns the total number of write operations.
func (c OpCounts) Writes() int64 {
	return c.ScalarWrites + c.DocumentWrites
}

// MemoryAdapter implements Adapter in process memory.
// Keys are spread over shards by murmur3 hash. Primarily used for testing
// and for measuring harness overhead without a network hop.
type MemoryAdapter struct {
	shards    []*memoryShard
	connected atomic.Bool

	scalarWrites   atomic.Int64
	scalarReads    atomic.Int64
	documentWrites atomic.Int64
	documentReads  atomic.Int64
}

type memoryShard struct {
	mu        sync.RWMutex
	scalars   map[string]string
	documents map[string][]string
}

// NewMemoryAdapter creates an in-memory store with the given number of shards.
func NewMemoryAdapter(numShards int) *MemoryAdapter {
	if numShards <= 0 {
		numShards = DefaultShardCount
	}
	shards := make([]*memoryShard, numShards)
	for i := range shards {
		shards[i] = &memoryShard{
			scalars:   make(map[string]string),
			documents: make(map[string][]string),
		}
	}
	return &MemoryAdapter{shards: shards}
}

func (m *MemoryAdapter) shard(key string) *memoryShard {
	return m.shards[murmur3.Sum32([]byte(key))%uint32(len(m.shards))]
}

// Connect marks the adapter usable.
func (m *MemoryAdapter) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.connected.Store(true)
	return nil
}

// Close marks the adapter unusable. Data is retained so tests can inspect it.
func (m *MemoryAdapter) Close() error {
	m.connected.Store(false)
	return nil
}

func (m *MemoryAdapter) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.connected.Load() {
		return ErrNotConnected
	}
	return nil
}

// SetScalar stores value at key.
func (m *MemoryAdapter) SetScalar(ctx context.Context, key, value string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	s := m.shard(key)
	s.mu.Lock()
	s.scalars[key] = value
	s.mu.Unlock()
	m.scalarWrites.Add(1)
	return nil
}

// GetScalar returns the value at key.
func (m *MemoryAdapter) GetScalar(ctx context.Context, key string) (string, bool, error) {
	if err := m.ready(ctx); err != nil {
		return "", false, err
	}
	s := m.shard(key)
	s.mu.RLock()
	v, ok := s.scalars[key]
	s.mu.RUnlock()
	m.scalarReads.Add(1)
	return v, ok, nil
}

// SetDocumentArray stores a copy of values as the document at key.
func (m *MemoryAdapter) SetDocumentArray(ctx context.Context, key, path string, values []string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	if err := checkRootPath(path); err != nil {
		return err
	}
	cp := make([]string, len(values))
	copy(cp, values)

	s := m.shard(key)
	s.mu.Lock()
	s.documents[key] = cp
	s.mu.Unlock()
	m.documentWrites.Add(1)
	return nil
}

// FindInDocumentArray scans the document at key for value.
func (m *MemoryAdapter) FindInDocumentArray(ctx context.Context, key, path, value string) (int64, error) {
	if err := m.ready(ctx); err != nil {
		return NotFound, err
	}
	if err := checkRootPath(path); err != nil {
		return NotFound, err
	}
	s := m.shard(key)
	s.mu.RLock()
	doc, ok := s.documents[key]
	s.mu.RUnlock()
	m.documentReads.Add(1)
	if !ok {
		return NotFound, nil
	}
	return indexOf(doc, value), nil
}

// Counts returns the operations served so far.
func (m *MemoryAdapter) Counts() OpCounts {
	return OpCounts{
		ScalarWrites:   m.scalarWrites.Load(),
		ScalarReads:    m.scalarReads.Load(),
		DocumentWrites: m.documentWrites.Load(),
		DocumentReads:  m.documentReads.Load(),
	}
}

// Len returns the number of scalar keys and documents stored.
func (m *MemoryAdapter) Len() (scalars, documents int) {
	for _, s := range m.shards {
		s.mu.RLock()
		scalars += len(s.scalars)
		documents += len(s.documents)
		s.mu.RUnlock()
	}
	return scalars, documents
}

// Document returns a copy of the array stored at key.
func (m *MemoryAdapter) Document(key string) ([]string, bool) {
	s := m.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[key]
	if !ok {
		return nil, false
	}
	cp := make([]string, len(doc))
	copy(cp, doc)
	return cp, true
}
