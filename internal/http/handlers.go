package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/weatherdesk/weather-record-service/internal/client"
	"github.com/weatherdesk/weather-record-service/internal/lifecycle"
	"github.com/weatherdesk/weather-record-service/internal/observability"
	"github.com/weatherdesk/weather-record-service/internal/service"
	"github.com/weatherdesk/weather-record-service/internal/traffic"
	"github.com/weatherdesk/weather-record-service/internal/validation"
)

// maxBodyBytes caps the POST /weather body.
const maxBodyBytes = 64 << 10

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	Version          string
	// StorePing, when set, checks record store reachability. Used when backend is memcached.
	StorePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	records          *service.RecordService
	client           client.WeatherClient
	state            *lifecycle.State
	tracker          *traffic.Tracker
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. state, tracker and healthConfig may be nil.
func NewHandler(
	records *service.RecordService,
	weatherClient client.WeatherClient,
	state *lifecycle.State,
	tracker *traffic.Tracker,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		records:      records,
		client:       weatherClient,
		state:        state,
		tracker:      tracker,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// CreateWeather handles POST /weather.
func (h *Handler) CreateWeather(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateRecordRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			writeError(w, r, http.StatusUnprocessableEntity, "INVALID_REQUEST", typeErr.Field+" must be a string")
			return
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		return
	}
	if err := validation.ValidateCreateRecord(req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "INVALID_REQUEST", err.Error())
		return
	}

	id, err := h.records.CreateRecord(r.Context(), *req.Date, *req.Location, req.NotesOrEmpty())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// GetWeather handles GET /weather/{id}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := h.records.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if logger := observability.LoggerFromContext(r.Context()); logger != nil {
		logger.Debug("weather record served", zap.String("id", id))
	}
	writeJSON(w, http.StatusOK, record)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	var storeErr error
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		storeErr = h.healthConfig.StorePing()
	}
	result := h.computeHealthStatus(storeErr)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	switch {
	case !h.client.Configured():
		checks["weatherApi"] = "unconfigured"
	case result.reason == "error_rate_breach":
		checks["weatherApi"] = "unhealthy"
	default:
		checks["weatherApi"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		if storeErr == nil {
			checks["store"] = "healthy"
		} else {
			checks["store"] = "unhealthy"
		}
	}

	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > store unreachable > provider error rate > healthy.
// A missing API key is reported in checks but does not fail the probe.
func (h *Handler) computeHealthStatus(storeErr error) healthResult {
	if h.state != nil && h.state.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if storeErr != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
	}
	if h.tracker != nil && h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		if h.tracker.Degraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// errorBody is the "error" member of every non-2xx JSON response.
type errorBody struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	RequestID string           `json:"requestId"`
	Detail    *client.APIError `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeErrorBody(w, status, errorBody{
		Code:      code,
		Message:   message,
		RequestID: observability.CorrelationIDFromContext(r.Context()),
	})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, map[string]errorBody{"error": body})
}

// writeServiceError maps service errors to one status each. Provider rejection
// details are passed through in "detail" when the provider supplied them.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())
	body := errorBody{RequestID: observability.CorrelationIDFromContext(r.Context())}
	var status int

	switch {
	case errors.Is(err, service.ErrConfiguration):
		status, body.Code, body.Message = http.StatusInternalServerError, "CONFIGURATION_ERROR", "WeatherStack API key missing"
	case errors.Is(err, service.ErrProvider):
		status, body.Code, body.Message = http.StatusBadRequest, "PROVIDER_ERROR", "Weather API error"
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && (apiErr.Code != 0 || apiErr.Info != "") {
			body.Detail = apiErr
		}
	case errors.Is(err, service.ErrNotFound):
		status, body.Code, body.Message = http.StatusNotFound, "NOT_FOUND", "Weather data not found"
	default:
		status, body.Code, body.Message = http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
		if logger != nil {
			logger.Error("request failed", zap.Error(err))
		}
	}
	if logger != nil && status != http.StatusInternalServerError {
		logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeErrorBody(w, status, body)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}
