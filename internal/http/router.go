package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/weatherdesk/weather-record-service/internal/observability"
)

// RouterConfig holds the settings NewRouter needs beyond the handler.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter wires routes and middleware. CORS wraps the router so preflight
// requests are answered before method matching; tracing wraps everything.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	r.Use(CorrelationIDMiddleware(logger))
	r.Use(MetricsMiddleware)

	timeout := TimeoutMiddleware(cfg.RequestTimeout)
	r.Handle("/weather", timeout(http.HandlerFunc(h.CreateWeather))).Methods(http.MethodPost)
	r.Handle("/weather/{id}", timeout(http.HandlerFunc(h.GetWeather))).Methods(http.MethodGet)
	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	return otelhttp.NewHandler(CORSMiddleware(cfg.AllowedOrigins)(r), observability.ServiceName)
}
