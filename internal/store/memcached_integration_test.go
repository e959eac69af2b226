//go:build integration
// +build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newIntegrationStore(t *testing.T) *MemcachedStore {
	s, err := NewMemcachedStore("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}
	return s
}

// TestMemcachedStore_InsertGet_Integration verifies a round trip through memcached.
func TestMemcachedStore_InsertGet_Integration(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	if err := s.Insert(ctx, id, testRecord()); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != id || got.Location != "Paris" || string(got.Weather) != string(testRecord().Weather) {
		t.Errorf("Get() = %+v", got)
	}
	if err := s.Insert(ctx, id, testRecord()); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate Insert() error = %v, want ErrDuplicateID", err)
	}
}

// TestMemcachedStore_Get_Miss_Integration verifies ErrNotFound for unknown and
// unkeyable ids.
func TestMemcachedStore_Get_Miss_Integration(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	for _, id := range []string{uuid.NewString(), "has spaces in it"} {
		if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}
