package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/weatherdesk/weather-record-service/internal/models"
	"github.com/weatherdesk/weather-record-service/internal/observability"
)

var (
	// ErrNotFound is returned by Get when no record exists under the id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned by Insert when the id is already taken.
	// Existing records are never overwritten.
	ErrDuplicateID = errors.New("record id already exists")
)

// RecordStore maps generated identifiers to weather records. There is no
// update, delete, enumeration or expiry. Implementations must be safe for
// concurrent use, and an inserted record must become visible atomically.
type RecordStore interface {
	Insert(ctx context.Context, id string, record models.WeatherRecord) error
	Get(ctx context.Context, id string) (models.WeatherRecord, error)
}

// instrumented wraps a RecordStore with latency metrics and trace spans.
type instrumented struct {
	next    RecordStore
	backend string
}

// Instrument returns s wrapped with storeOperationDurationSeconds metrics and a
// span per operation. backend names the implementation in span attributes.
func Instrument(s RecordStore, backend string) RecordStore {
	return &instrumented{next: s, backend: backend}
}

func (s *instrumented) Insert(ctx context.Context, id string, record models.WeatherRecord) error {
	ctx, span := observability.Tracer().Start(ctx, "store.insert")
	defer span.End()
	span.SetAttributes(attribute.String("store.backend", s.backend), attribute.String("record.id", id))

	start := time.Now()
	err := s.next.Insert(ctx, id, record)
	observability.StoreOperationDuration.WithLabelValues("insert", resultLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

func (s *instrumented) Get(ctx context.Context, id string) (models.WeatherRecord, error) {
	ctx, span := observability.Tracer().Start(ctx, "store.get")
	defer span.End()
	span.SetAttributes(attribute.String("store.backend", s.backend), attribute.String("record.id", id))

	start := time.Now()
	rec, err := s.next.Get(ctx, id)
	observability.StoreOperationDuration.WithLabelValues("get", resultLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
	}
	return rec, err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate"
	default:
		return "error"
	}
}
