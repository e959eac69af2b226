package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/weatherdesk/weather-record-service/internal/models"
)

const keyPrefix = "record:"

// MemcachedStore implements RecordStore on memcached. Records are JSON encoded
// and written with no expiration. Memcached may still evict under memory
// pressure; this backend is for sharing records between replicas, not durability.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	ss := new(memcache.ServerList)
	if err := ss.SetServers(servers...); err != nil {
		return nil, fmt.Errorf("memcached servers: %w", err)
	}
	client := memcache.NewFromSelector(ss)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemcachedStore) key(id string) string {
	return keyPrefix + id
}

// Insert implements RecordStore.Insert using memcached "add", so an existing
// key is never overwritten.
func (s *MemcachedStore) Insert(ctx context.Context, id string, record models.WeatherRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	err = s.client.Add(&memcache.Item{
		Key:        s.key(id),
		Value:      raw,
		Expiration: 0,
	})
	if errors.Is(err, memcache.ErrNotStored) {
		return ErrDuplicateID
	}
	return err
}

// Get implements RecordStore.Get. Ids that cannot form a valid memcached key
// were never stored, so they report ErrNotFound.
func (s *MemcachedStore) Get(ctx context.Context, id string) (models.WeatherRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherRecord{}, err
	}
	item, err := s.client.Get(s.key(id))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) || errors.Is(err, memcache.ErrMalformedKey) {
			return models.WeatherRecord{}, ErrNotFound
		}
		return models.WeatherRecord{}, err
	}
	var record models.WeatherRecord
	if err := json.Unmarshal(item.Value, &record); err != nil {
		return models.WeatherRecord{}, fmt.Errorf("decode record: %w", err)
	}
	record.ID = id
	return record, nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
