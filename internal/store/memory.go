package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/weatherdesk/weather-record-service/internal/models"
)

// MemoryStore is a concurrency-safe in-memory RecordStore. Contents live for
// the lifetime of the instance; nothing is persisted.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]models.WeatherRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]models.WeatherRecord),
	}
}

// Insert stores a private copy of record under id. Returns ErrDuplicateID
// if id is already present; the existing record is left untouched.
func (s *MemoryStore) Insert(ctx context.Context, id string, record models.WeatherRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.ID = id
	record.Weather = cloneRaw(record.Weather)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[id]; exists {
		return ErrDuplicateID
	}
	s.data[id] = record
	return nil
}

// Get returns a copy of the record stored under id, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (models.WeatherRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherRecord{}, err
	}
	s.mu.RLock()
	record, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return models.WeatherRecord{}, ErrNotFound
	}
	record.Weather = cloneRaw(record.Weather)
	return record, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
