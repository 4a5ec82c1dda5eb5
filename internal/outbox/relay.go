package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace/internal/messaging"
	"marketplace/internal/repository"
	"marketplace/internal/telemetry"

	"go.uber.org/zap"
)

// Producer is the envelope producer name stamped on every published event
const Producer = "marketplace-api"

// Relay moves committed outbox events to the broker, oldest first.
// Delivery is at-least-once: an event is marked only after the broker
// accepted it, and a failure leaves it for the next run.
type Relay struct {
	repo      repository.OutboxRepository
	publisher messaging.Publisher
	batchSize int
	metrics   *telemetry.OrderMetrics
	logger    *zap.Logger
}

// NewRelay creates a relay; batchSize < 1 falls back to 100
func NewRelay(repo repository.OutboxRepository, publisher messaging.Publisher, batchSize int, metrics *telemetry.OrderMetrics, logger *zap.Logger) *Relay {
	if batchSize < 1 {
		batchSize = 100
	}
	return &Relay{
		repo:      repo,
		publisher: publisher,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger,
	}
}

// RunOnce publishes one batch and returns how many events went out.
// It stops at the first publish failure to keep per-key ordering.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.repo.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		value, err := json.Marshal(event.Envelope(Producer))
		if err != nil {
			return published, fmt.Errorf("failed to encode event %s: %w", event.ID, err)
		}

		if err := r.publisher.Publish(ctx, event.Key, value); err != nil {
			r.metrics.Published(ctx, published)
			return published, fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}

		if err := r.repo.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
			r.metrics.Published(ctx, published+1)
			return published + 1, err
		}
		published++
	}

	r.metrics.Published(ctx, published)
	return published, nil
}

// Run is the scheduled entry point; it logs instead of returning errors.
func (r *Relay) Run(ctx context.Context) {
	n, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Warn("Outbox relay stopped early",
			zap.Int("published", n),
			zap.Error(err),
		)
		return
	}
	if n > 0 {
		r.logger.Debug("Outbox relay published events", zap.Int("published", n))
	}
}
