package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/messaging"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	Channel      string
}

// Handler performs the side effect of one event type. Returning an error
// leaves the event for a later attempt.
type Handler func(ctx context.Context, event *model.OutboxEvent) error

type OutboxProcessor struct {
	repo     repository.OutboxRepository
	broker   messaging.Broker
	config   OutboxProcessorConfig
	handlers map[string]Handler
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, errors.New("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, errors.New("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		return nil, errors.New("MaxAttempts must be greater than 0")
	}
	if config.Channel == "" {
		config.Channel = messaging.DefaultChannel
	}

	return &OutboxProcessor{
		repo:     repo,
		broker:   broker,
		config:   config,
		handlers: make(map[string]Handler),
		logger:   logger.With("outbox"),
		metrics:  metrics,
	}, nil
}

// Register sets the handler for eventType. Events without a handler are
// only published.
func (p *OutboxProcessor) Register(eventType string, h Handler) {
	p.handlers[eventType] = h
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "batch_size", p.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch claims and handles one batch, returning how many events
// were marked processed.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	processed := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"attempt", event.RetryCount+1)
			continue
		}
		processed++
	}
	return processed, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := p.dispatch(ctx, event)
	if err != nil {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		if event.RetryCount+1 >= p.config.MaxAttempts {
			p.metrics.OutboxEventsFailed.Inc()
		}
		if updateErr := p.repo.MarkFailed(ctx, event.ID, err.Error(), p.config.MaxAttempts); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	p.metrics.OutboxEventsProcessed.Inc()
	return nil
}

// dispatch publishes the event and then runs its handler, so a handler
// failure republishes on retry rather than repeating a delivered side effect.
func (p *OutboxProcessor) dispatch(ctx context.Context, event *model.OutboxEvent) error {
	if p.broker != nil {
		msg := messaging.Message{
			ID:      event.ID.String(),
			Type:    event.EventType,
			Payload: event.Payload,
		}
		if err := p.broker.Publish(ctx, p.config.Channel, msg); err != nil {
			return fmt.Errorf("publish %s: %w", event.EventType, err)
		}
	}
	if h, ok := p.handlers[event.EventType]; ok {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("handle %s: %w", event.EventType, err)
		}
	}
	return nil
}
