package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/weatherdesk/weather-record-service/internal/observability"
)

func TestNewWeatherstackClient_URLValidation(t *testing.T) {
	tests := []struct {
		name    string
		apiURL  string
		wantErr bool
	}{
		{name: "http url", apiURL: "http://api.weatherstack.com/current"},
		{name: "https url", apiURL: "https://api.weatherstack.com/current"},
		{name: "missing scheme", apiURL: "api.weatherstack.com/current", wantErr: true},
		{name: "unparseable", apiURL: "http://[::1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewWeatherstackClient("key", tt.apiURL, 2*time.Second)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewWeatherstackClient() expected error, got nil")
				}
				if client != nil {
					t.Error("NewWeatherstackClient() expected nil client on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewWeatherstackClient() unexpected error: %v", err)
			}
		})
	}
}

// TestWeatherstackClient_MissingKeyNeverCallsProvider verifies that an empty key
// yields ErrMissingAPIKey without any outbound request.
func TestWeatherstackClient_MissingKeyNeverCallsProvider(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client, err := NewWeatherstackClient("", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherstackClient() error = %v", err)
	}
	if client.Configured() {
		t.Error("Configured() = true, want false for empty key")
	}

	_, err = client.GetCurrentWeather(context.Background(), "Paris")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("GetCurrentWeather() error = %v, want ErrMissingAPIKey", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestWeatherstackClient_GetCurrentWeather_Success(t *testing.T) {
	const payload = `{"request":{"query":"Paris, France"},"current":{"temperature":10,"weather_descriptions":["Sunny"]}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if got := q.Get("access_key"); got != "test-key" {
			t.Errorf("access_key = %q, want test-key", got)
		}
		if got := q.Get("query"); got != "Paris" {
			t.Errorf("query = %q, want Paris", got)
		}
		if got := r.Header.Get("X-Correlation-ID"); got != "corr-1" {
			t.Errorf("X-Correlation-ID = %q, want corr-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	client, err := NewWeatherstackClient("test-key", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherstackClient() error = %v", err)
	}

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	got, err := client.GetCurrentWeather(ctx, "Paris")
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if string(got) != payload {
		t.Errorf("payload = %s, want verbatim provider body %s", got, payload)
	}
}

// TestWeatherstackClient_LocationIsSentVerbatim verifies that the query term is
// not trimmed, lowercased or otherwise rewritten.
func TestWeatherstackClient_LocationIsSentVerbatim(t *testing.T) {
	const location = "  São Paulo, BR & more "
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != location {
			t.Errorf("query = %q, want %q", got, location)
		}
		_, _ = w.Write([]byte(`{"current":{}}`))
	}))
	defer server.Close()

	client, _ := NewWeatherstackClient("test-key", server.URL, 2*time.Second)
	if _, err := client.GetCurrentWeather(context.Background(), location); err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
}

func TestWeatherstackClient_GetCurrentWeather_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
		wantCode   int
	}{
		{
			name:       "error indicator with 200",
			statusCode: http.StatusOK,
			body:       `{"success":false,"error":{"code":615,"type":"request_failed","info":"Your API request failed."}}`,
			wantErr:    ErrProviderRejected,
			wantCode:   615,
		},
		{
			name:       "error indicator with 401",
			statusCode: http.StatusUnauthorized,
			body:       `{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"bad key"}}`,
			wantErr:    ErrProviderRejected,
			wantCode:   101,
		},
		{
			name:       "error indicator with unexpected shape",
			statusCode: http.StatusOK,
			body:       `{"error":"nope"}`,
			wantErr:    ErrProviderRejected,
		},
		{
			name:       "non-2xx without error indicator",
			statusCode: http.StatusBadGateway,
			body:       `{"message":"bad gateway"}`,
			wantErr:    ErrUpstreamFailure,
		},
		{
			name:       "non-2xx html body",
			statusCode: http.StatusServiceUnavailable,
			body:       `<html>down</html>`,
			wantErr:    ErrUpstreamFailure,
		},
		{
			name:       "malformed body",
			statusCode: http.StatusOK,
			body:       `{"current":`,
			wantErr:    ErrUpstreamFailure,
		},
		{
			name:       "json array body",
			statusCode: http.StatusOK,
			body:       `[1,2,3]`,
			wantErr:    ErrUpstreamFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewWeatherstackClient("test-key", server.URL, 2*time.Second)
			_, err := client.GetCurrentWeather(context.Background(), "Nowhereland")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetCurrentWeather() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantCode != 0 {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error %v is not *APIError", err)
				}
				if apiErr.Code != tt.wantCode {
					t.Errorf("APIError.Code = %d, want %d", apiErr.Code, tt.wantCode)
				}
			}
		})
	}
}

// TestWeatherstackClient_Timeout verifies that a slow provider is cut off by the client timeout.
func TestWeatherstackClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, _ := NewWeatherstackClient("test-key", server.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := client.GetCurrentWeather(context.Background(), "Paris")
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("GetCurrentWeather() error = %v, want ErrUpstreamFailure", err)
	}
	if CategorizeError(err) != ErrorCategoryTimeout {
		t.Errorf("CategorizeError() = %q, want timeout", CategorizeError(err))
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call took %v, want it bounded by the client timeout", elapsed)
	}
}

// TestWeatherstackClient_ConnectionRefused verifies transport failures map to ErrUpstreamFailure.
func TestWeatherstackClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := NewWeatherstackClient("test-key", url, time.Second)
	_, err := client.GetCurrentWeather(context.Background(), "Paris")
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("GetCurrentWeather() error = %v, want ErrUpstreamFailure", err)
	}
}

// TestWeatherstackClient_PreservesBaseQuery verifies that query parameters on the
// configured URL survive request construction.
func TestWeatherstackClient_PreservesBaseQuery(t *testing.T) {
	client, err := NewWeatherstackClient("k", "http://api.example.com/current?units=m", time.Second)
	if err != nil {
		t.Fatalf("NewWeatherstackClient() error = %v", err)
	}
	req, err := client.buildRequest(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("buildRequest() error = %v", err)
	}
	q := req.URL.Query()
	if q.Get("units") != "m" || q.Get("access_key") != "k" || q.Get("query") != "Paris" {
		t.Errorf("query = %s, want units, access_key and query", req.URL.RawQuery)
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: 615, Type: "request_failed", Info: "Your API request failed."}
	if !strings.Contains(err.Error(), "615") || !strings.Contains(err.Error(), "request_failed") {
		t.Errorf("Error() = %q, want code and type", err.Error())
	}
	if (&APIError{}).Error() != "weatherstack error" {
		t.Errorf("empty APIError.Error() = %q", (&APIError{}).Error())
	}
	var target *APIError
	if !errors.As(error(err), &target) || !errors.Is(err, ErrProviderRejected) {
		t.Error("APIError should match *APIError and ErrProviderRejected")
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{
		200: "success",
		204: "success",
		429: "rate_limited",
		404: "client_error",
		503: "server_error",
		302: "error",
	}
	for code, want := range tests {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}

// Ensures payload bytes decode to the provider structure unchanged.
func TestParseResponse_PayloadRoundTrips(t *testing.T) {
	body := []byte(`{"current":{"temperature":10}}`)
	got, err := parseResponse(http.StatusOK, body, nil)
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	var decoded map[string]map[string]int
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["current"]["temperature"] != 10 {
		t.Errorf("temperature = %d, want 10", decoded["current"]["temperature"])
	}
}
