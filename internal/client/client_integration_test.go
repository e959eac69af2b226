//go:build integration
// +build integration

package client

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"
)

const weatherstackURL = "http://api.weatherstack.com/current"

func integrationKey(t *testing.T) string {
	apiKey := os.Getenv("WEATHERSTACK_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHERSTACK_API_KEY not set, skipping integration test")
	}
	return apiKey
}

func TestWeatherstackClient_GetCurrentWeather_Integration(t *testing.T) {
	client, err := NewWeatherstackClient(integrationKey(t), weatherstackURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherstackClient() error = %v", err)
	}

	payload, err := client.GetCurrentWeather(context.Background(), "London")
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}

	var body struct {
		Current map[string]interface{} `json:"current"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(body.Current) == 0 {
		t.Error("payload has no current conditions")
	}
}

func TestWeatherstackClient_UnknownLocation_Integration(t *testing.T) {
	client, err := NewWeatherstackClient(integrationKey(t), weatherstackURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherstackClient() error = %v", err)
	}

	_, err = client.GetCurrentWeather(context.Background(), "zzzz-no-such-place-zzzz")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetCurrentWeather() error = %v, want *APIError", err)
	}
}
