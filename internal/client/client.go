package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/weatherdesk/weather-record-service/internal/observability"
)

// WeatherClient fetches the current-conditions payload for a free-text location.
// The payload is returned verbatim; its schema belongs to the provider.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, location string) (json.RawMessage, error)
	// Configured reports whether the provider credential is present.
	Configured() bool
}

var (
	// ErrMissingAPIKey is returned before any network call when no access key is configured.
	ErrMissingAPIKey = errors.New("weatherstack API key missing")
	// ErrUpstreamFailure covers transport failures, non-2xx statuses and unreadable bodies.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrProviderRejected is matched by *APIError: the payload carried an "error" member.
	ErrProviderRejected = errors.New("provider rejected request")
)

// maxResponseBytes bounds the provider body we are willing to buffer and store.
const maxResponseBytes = 1 << 20

// APIError is the error object weatherstack embeds in a response body, e.g.
// {"success": false, "error": {"code": 615, "type": "request_failed", "info": "..."}}.
type APIError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	if e.Code == 0 && e.Info == "" {
		return "weatherstack error"
	}
	return fmt.Sprintf("weatherstack error %d (%s): %s", e.Code, e.Type, e.Info)
}

func (e *APIError) Unwrap() error {
	return ErrProviderRejected
}

// WeatherstackClient calls the weatherstack "current" endpoint. One attempt per
// call; failures are reported to the caller unchanged.
type WeatherstackClient struct {
	apiKey  string
	apiURL  *url.URL
	timeout time.Duration
	client  *http.Client
}

// NewWeatherstackClient returns a client for apiURL. An empty apiKey is accepted:
// every call then fails with ErrMissingAPIKey without contacting the provider.
func NewWeatherstackClient(apiKey, apiURL string, timeout time.Duration) (*WeatherstackClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", apiURL)
	}
	return &WeatherstackClient{
		apiKey:  apiKey,
		apiURL:  u,
		timeout: timeout,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Configured reports whether an access key is present.
func (c *WeatherstackClient) Configured() bool {
	return c.apiKey != ""
}

// GetCurrentWeather returns the provider payload for location. Errors wrap
// ErrMissingAPIKey, ErrUpstreamFailure or ErrProviderRejected (*APIError).
func (c *WeatherstackClient) GetCurrentWeather(ctx context.Context, location string) (json.RawMessage, error) {
	if !c.Configured() {
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(ErrorCategoryMissingAPIKey)).Inc()
		return nil, ErrMissingAPIKey
	}

	ctx, span := observability.Tracer().Start(ctx, "weatherstack.current")
	defer span.End()
	span.SetAttributes(attribute.String("weather.location", location))

	payload, err := c.callAPI(ctx, location)
	if err != nil {
		category := CategorizeError(err)
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(category)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
		return nil, err
	}
	return payload, nil
}

func (c *WeatherstackClient) callAPI(ctx context.Context, location string) (json.RawMessage, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: request timeout: %w", ErrUpstreamFailure, err)
		}
		return nil, fmt.Errorf("%w: http request failed: %w", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	payload, err := parseResponse(resp.StatusCode, body, readErr)

	status := statusLabel(resp.StatusCode)
	if errors.Is(err, ErrProviderRejected) {
		status = "rejected"
	}
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return payload, err
}

func (c *WeatherstackClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	u := *c.apiURL
	params := u.Query()
	params.Set("access_key", c.apiKey)
	params.Set("query", location)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

// parseResponse turns a provider response into the stored payload. Any JSON
// object carrying an "error" member is a rejection, whatever the HTTP status.
func parseResponse(statusCode int, body []byte, readErr error) (json.RawMessage, error) {
	if readErr != nil {
		return nil, fmt.Errorf("%w: read response body: %w", ErrUpstreamFailure, readErr)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		if statusCode < 200 || statusCode >= 300 {
			return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
		}
		return nil, fmt.Errorf("%w: parse response: %w", ErrUpstreamFailure, err)
	}
	if raw, ok := fields["error"]; ok {
		apiErr := &APIError{}
		_ = json.Unmarshal(raw, apiErr) // shape is best-effort; presence alone is the signal
		return nil, apiErr
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}
	return json.RawMessage(body), nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
