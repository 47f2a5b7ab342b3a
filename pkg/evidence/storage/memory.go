package storage

import (
	"context"
	"fmt"
	"sync"

	"civility-hq/kernel/pkg/evidence"
)

// MemoryStorage implements the Storage interface using an in-memory map.
// Stored traces are shared with callers and must be treated as read-only.
type MemoryStorage struct {
	records map[string]*evidence.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*evidence.Record),
	}
}

// Store persists a record to memory.
func (s *MemoryStorage) Store(ctx context.Context, record *evidence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return evidence.NewStorageError("memory", "store", fmt.Errorf("duplicate record id %q", record.ID))
	}
	recordCopy := *record
	s.records[record.ID] = &recordCopy
	return nil
}

// Get returns the record with the given ID.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*evidence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, evidence.NewStorageError("memory", "get", evidence.ErrNotFound)
	}
	recordCopy := *record
	return &recordCopy, nil
}

// Query retrieves records matching the query filters.
func (s *MemoryStorage) Query(ctx context.Context, q *evidence.Query) ([]*evidence.Record, error) {
	q, err := prepare(q)
	if err != nil {
		return nil, err
	}
	return page(s.filter(q), q), nil
}

// QueryStream streams the result of Query over a channel.
func (s *MemoryStorage) QueryStream(ctx context.Context, q *evidence.Query) (<-chan *evidence.Record, <-chan error, error) {
	records, err := s.Query(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	recordsCh := make(chan *evidence.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		for _, record := range records {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- record:
			}
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of records matching the query filters.
func (s *MemoryStorage) Count(ctx context.Context, q *evidence.Query) (int64, error) {
	q, err := prepare(q)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matches(record, q) {
			count++
		}
	}
	return count, nil
}

// Delete removes records matching the query filters.
func (s *MemoryStorage) Delete(ctx context.Context, q *evidence.Query) (int64, error) {
	q, err := prepare(q)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matches(record, q) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close releases resources held by the storage backend.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*evidence.Record)
	return nil
}

// Size returns the number of records in storage.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// filter returns sorted copies of every matching record.
func (s *MemoryStorage) filter(q *evidence.Query) []*evidence.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*evidence.Record{}
	for _, record := range s.records {
		if matches(record, q) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}
	sortRecords(results, q)
	return results
}
