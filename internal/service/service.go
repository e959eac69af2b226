package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weatherdesk/weather-record-service/internal/client"
	"github.com/weatherdesk/weather-record-service/internal/models"
	"github.com/weatherdesk/weather-record-service/internal/observability"
	"github.com/weatherdesk/weather-record-service/internal/store"
)

var (
	// ErrConfiguration means the provider credential is missing. The provider
	// is not contacted.
	ErrConfiguration = errors.New("configuration error")
	// ErrProvider wraps any provider failure: rejection, bad status, timeout,
	// transport error or unparseable body.
	ErrProvider = errors.New("provider error")
	// ErrNotFound means no record is stored under the requested id.
	ErrNotFound = errors.New("weather record not found")
)

// maxIDAttempts bounds id regeneration when a generated id collides.
const maxIDAttempts = 3

// OutcomeRecorder receives provider call outcomes for health reporting.
// *traffic.Tracker satisfies it.
type OutcomeRecorder interface {
	RecordSuccess()
	RecordFailure()
}

// RecordService creates weather records from provider observations and reads
// them back by id.
type RecordService struct {
	client   client.WeatherClient
	store    store.RecordStore
	outcomes OutcomeRecorder
	newID    func() string
}

// NewRecordService returns a RecordService. outcomes may be nil.
func NewRecordService(weatherClient client.WeatherClient, recordStore store.RecordStore, outcomes OutcomeRecorder) *RecordService {
	return &RecordService{
		client:   weatherClient,
		store:    recordStore,
		outcomes: outcomes,
		newID:    uuid.NewString,
	}
}

// CreateRecord fetches current conditions for location, stores a record with
// the caller's date and notes, and returns the new id. Nothing is stored when
// the provider call fails.
func (s *RecordService) CreateRecord(ctx context.Context, date, location, notes string) (string, error) {
	start := time.Now()
	logger := loggerFromContext(ctx)

	if !s.client.Configured() {
		observability.RecordCreateFailuresTotal.WithLabelValues("configuration").Inc()
		logger.Error("weather provider credential missing")
		return "", fmt.Errorf("%w: %w", ErrConfiguration, client.ErrMissingAPIKey)
	}

	payload, err := s.client.GetCurrentWeather(ctx, location)
	if err != nil {
		if errors.Is(err, client.ErrMissingAPIKey) {
			observability.RecordCreateFailuresTotal.WithLabelValues("configuration").Inc()
			return "", fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		s.recordOutcome(false)
		observability.RecordCreateFailuresTotal.WithLabelValues("provider").Inc()
		logger.Warn("weather provider call failed",
			zap.String("location", location),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %w", ErrProvider, err)
	}
	s.recordOutcome(true)

	record := models.WeatherRecord{
		Date:     date,
		Location: location,
		Notes:    notes,
		Weather:  payload,
	}

	var id string
	for attempt := 1; ; attempt++ {
		id = s.newID()
		err = s.store.Insert(ctx, id, record)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrDuplicateID) && attempt < maxIDAttempts {
			logger.Warn("generated record id collided, retrying", zap.String("id", id), zap.Int("attempt", attempt))
			continue
		}
		observability.RecordCreateFailuresTotal.WithLabelValues("store").Inc()
		logger.Error("store record failed", zap.String("id", id), zap.Error(err))
		return "", fmt.Errorf("store record: %w", err)
	}

	observability.RecordsCreatedTotal.Inc()
	logger.Info("weather record created",
		zap.String("id", id),
		zap.String("location", location),
		zap.Duration("duration", time.Since(start)),
	)
	return id, nil
}

// GetRecord returns the record stored under id. Lookup is exact; no
// normalization is applied to id.
func (s *RecordService) GetRecord(ctx context.Context, id string) (models.WeatherRecord, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			observability.RecordLookupsTotal.WithLabelValues("not_found").Inc()
			return models.WeatherRecord{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		observability.RecordLookupsTotal.WithLabelValues("error").Inc()
		loggerFromContext(ctx).Error("record lookup failed", zap.String("id", id), zap.Error(err))
		return models.WeatherRecord{}, fmt.Errorf("get record: %w", err)
	}
	observability.RecordLookupsTotal.WithLabelValues("found").Inc()
	return record, nil
}

func (s *RecordService) recordOutcome(success bool) {
	if s.outcomes == nil {
		return
	}
	if success {
		s.outcomes.RecordSuccess()
	} else {
		s.outcomes.RecordFailure()
	}
}

func loggerFromContext(ctx context.Context) *zap.Logger {
	if l := observability.LoggerFromContext(ctx); l != nil {
		return l
	}
	return zap.NewNop()
}
