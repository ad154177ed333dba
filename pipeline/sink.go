package pipeline

import (
	"context"
	"sync"

	"github.com/kbukum/assetflow/storage"
	"github.com/kbukum/assetflow/storage/local"
)

// Sink publishes final records. Write must be all-or-nothing: on error no
// partial artifact for rec may remain visible.
//
// A pipeline writes each record to its sinks in order and stops at the first
// failure. Sinks written before the failing one keep the record; there is no
// rollback across sinks.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// StorageSink writes records to a storage backend under their record path.
type StorageSink struct {
	name  string
	store storage.Storage
}

// NewStorageSink creates a sink over st.
func NewStorageSink(name string, st storage.Storage) *StorageSink {
	return &StorageSink{name: name, store: st}
}

func (s *StorageSink) Name() string { return s.name }

// Storage returns the backend the sink writes to.
func (s *StorageSink) Storage() storage.Storage { return s.store }

func (s *StorageSink) Write(ctx context.Context, rec Record) error {
	return s.store.Upload(ctx, rec.Path(), rec.Reader())
}

// DestSink writes records into a local directory using temp file + rename.
func DestSink(root string) (*StorageSink, error) {
	st, err := local.NewStorage(root)
	if err != nil {
		return nil, err
	}
	return NewStorageSink("dest:"+root, st), nil
}

// MemorySink captures records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Name() string { return "memory" }

func (m *MemorySink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns the captured records in write order.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// Reset drops all captured records.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}
