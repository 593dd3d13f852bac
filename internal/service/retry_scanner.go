package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/webhook-relay/internal/queue"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultRetryScanInterval = 60 * time.Second
	defaultRetryScanLimit    = 100
	defaultPendingGrace      = 2 * time.Minute
)

// RetryScanner periodically re-enqueues deliveries that are due for another
// attempt: RETRYING rows past their backoff and PENDING rows stranded by a
// crash before the first publish. The scanner only selects and publishes;
// the repository claim is what prevents duplicate work, so overlapping or
// skipped ticks are harmless.
type RetryScanner struct {
	deliveries   repository.DeliveryRepository
	publisher    queue.Publisher
	logger       *zap.Logger
	interval     time.Duration
	limit        int
	pendingGrace time.Duration
}

func NewRetryScanner(
	deliveries repository.DeliveryRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RetryScanner, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultRetryScanInterval
	}
	if limit <= 0 {
		limit = defaultRetryScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		deliveries:   deliveries,
		publisher:    publisher,
		logger:       logger,
		interval:     interval,
		limit:        limit,
		pendingGrace: defaultPendingGrace,
	}, nil
}

func (s *RetryScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due retries do not wait for the first
	// ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *RetryScanner) scanDue(ctx context.Context) error {
	dueDeliveries, err := s.deliveries.GetDueForRetry(ctx, s.limit, s.pendingGrace)
	if err != nil {
		return fmt.Errorf("failed to fetch due deliveries: %w", err)
	}

	for i := range dueDeliveries {
		delivery := dueDeliveries[i]
		msg := queue.DeliveryMessage{
			DeliveryID: delivery.ID,
			SubjectID:  delivery.SubjectID,
			EventType:  delivery.EventType,
		}

		if err := s.publisher.Publish(ctx, queue.WorkQueue, msg); err != nil {
			s.logger.Error("failed to enqueue due delivery",
				zap.String("deliveryId", delivery.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}
