//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/weatherdesk/weather-record-service/internal/client"
	"github.com/weatherdesk/weather-record-service/internal/service"
	"github.com/weatherdesk/weather-record-service/internal/store"
	"github.com/weatherdesk/weather-record-service/internal/traffic"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	StoreBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if WEATHERSTACK_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHERSTACK_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHERSTACK_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHERSTACK_API_URL")
	if apiURL == "" {
		apiURL = "http://api.weatherstack.com/current"
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		StoreBackend:  os.Getenv("INTEGRATION_STORE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationClient creates a weatherstack client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.WeatherstackClient {
	t.Helper()
	weatherClient, err := client.NewWeatherstackClient(cfg.APIKey, cfg.APIURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherstackClient() error = %v", err)
	}
	return weatherClient
}

// SetupIntegrationStore returns the configured record store. Memcached falls
// back to in-memory when unreachable. Cleanup is registered with t.
func SetupIntegrationStore(t *testing.T, cfg IntegrationTestConfig) store.RecordStore {
	t.Helper()
	if cfg.StoreBackend == "memcached" {
		mc, err := store.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			t.Cleanup(func() { _ = mc.Close() })
			t.Logf("using memcached store at %s", cfg.MemcachedAddr)
			return store.Instrument(mc, "memcached")
		}
		t.Logf("memcached not available, using in-memory store")
	}
	return store.Instrument(store.NewMemoryStore(), "in_memory")
}

// SetupIntegrationService wires a RecordService against the real provider.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.RecordService, *client.WeatherstackClient, *traffic.Tracker) {
	t.Helper()
	weatherClient := SetupIntegrationClient(t, cfg)
	tracker := traffic.NewTracker(time.Minute)
	return service.NewRecordService(weatherClient, SetupIntegrationStore(t, cfg), tracker), weatherClient, tracker
}
