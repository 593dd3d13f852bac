package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/webhook-relay/internal/domain"
	"github.com/kursadbilgin/webhook-relay/internal/observability"
	"github.com/kursadbilgin/webhook-relay/internal/queue"
	"github.com/kursadbilgin/webhook-relay/internal/ratelimit"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
	"github.com/kursadbilgin/webhook-relay/internal/sender"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	releaseClaimTimeout  = 5 * time.Second
)

// DeliveryWorker consumes delivery messages and drives single HTTP attempts:
// claim the row, re-resolve the secret, send, persist the outcome, apply the
// retry policy. The HTTP call happens with no store lock held; the claim is
// written before and the outcome after.
type DeliveryWorker struct {
	deliveries  repository.DeliveryRepository
	attempts    repository.AttemptRepository
	secrets     SecretResolver
	consumer    queue.Consumer
	sender      sender.Sender
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewDeliveryWorker(
	deliveries repository.DeliveryRepository,
	attempts repository.AttemptRepository,
	secrets SecretResolver,
	consumer queue.Consumer,
	snd sender.Sender,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*DeliveryWorker, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("secret resolver is required")
	}
	if snd == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryWorker{
		deliveries:  deliveries,
		attempts:    attempts,
		secrets:     secrets,
		consumer:    consumer,
		sender:      snd,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (w *DeliveryWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes the work queue until context cancellation.
func (w *DeliveryWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if w.consumer == nil {
		return fmt.Errorf("consumer is required")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("delivery worker started", zap.Int("workerId", workerID))

			err := w.consumer.Consume(groupCtx, queue.WorkQueue, w.processMessage)
			if err != nil {
				w.logger.Error("delivery worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("delivery worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (w *DeliveryWorker) processMessage(ctx context.Context, msg queue.DeliveryMessage) error {
	delivery, err := w.deliveries.ClaimForSending(ctx, msg.DeliveryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.logger.Warn("delivery not found during claim, skipping",
				zap.String("deliveryId", msg.DeliveryID),
			)
			return nil
		}
		return fmt.Errorf("failed to claim delivery: %w", err)
	}

	// Nil means another worker holds the claim or the delivery is terminal;
	// ack and skip.
	if delivery == nil {
		return nil
	}

	eventLabel := delivery.EventType.String()
	if w.metrics != nil {
		w.metrics.IncWorkerInFlight()
		defer w.metrics.DecWorkerInFlight()
	}

	if w.rateLimiter != nil {
		if err := w.rateLimiter.Wait(ctx, destinationHost(delivery.DestinationURL)); err != nil {
			w.releaseClaim(delivery.ID)
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	secret, err := w.secrets.GetSecret(ctx, delivery.SecretRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The destination registration is gone; no attempt can ever be
			// signed again, so the delivery fails terminally.
			return w.failWithoutAttempt(ctx, delivery, "destination secret no longer resolvable")
		}
		w.releaseClaim(delivery.ID)
		return fmt.Errorf("failed to resolve signing secret: %w", err)
	}

	attemptNumber := delivery.Attempts + 1
	result, sendErr := w.sender.Send(ctx, sender.Request{
		URL:     delivery.DestinationURL,
		Payload: delivery.Payload,
		Secret:  secret,
	})

	// A send aborted by shutdown is not an outcome: the response was never
	// observed, so neither success nor failure can be recorded. Put the claim
	// back and let the scanner re-enqueue after restart.
	if sendErr != nil && ctx.Err() != nil {
		w.releaseClaim(delivery.ID)
		return fmt.Errorf("delivery attempt aborted by shutdown: %w", sendErr)
	}

	if w.metrics != nil && result != nil {
		w.metrics.ObserveAttemptDuration(eventLabel, result.Duration)
	}

	update := w.recordAttempt(ctx, delivery, attemptNumber, result, sendErr)

	if sendErr == nil {
		if err := w.deliveries.MarkDelivered(ctx, delivery.ID, update); err != nil {
			return fmt.Errorf("failed to mark delivery as delivered: %w", err)
		}
		if w.metrics != nil {
			w.metrics.IncDelivered(eventLabel)
		}
		return nil
	}

	isTransient := sender.IsTransient(sendErr)
	maxAttempts := delivery.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	if isTransient && attemptNumber < maxAttempts {
		nextRetryAt := w.now().Add(RetryDelay(attemptNumber))
		if err := w.deliveries.MarkRetrying(ctx, delivery.ID, nextRetryAt, update); err != nil {
			return fmt.Errorf("failed to schedule delivery retry: %w", err)
		}
		if w.metrics != nil {
			w.metrics.IncRetryScheduled(eventLabel)
		}
		return nil
	}

	if err := w.deliveries.MarkFailed(ctx, delivery.ID, update); err != nil {
		return fmt.Errorf("failed to mark delivery as failed: %w", err)
	}
	if w.metrics != nil {
		reason := "permanent_error"
		if isTransient {
			reason = "retry_exhausted"
		}
		w.metrics.IncFailed(eventLabel, reason)
	}

	return nil
}

// recordAttempt persists the attempt log row and builds the delivery-row
// update applied regardless of outcome. Attempt log failures are logged, not
// fatal: the delivery row still carries the last response diagnostics.
func (w *DeliveryWorker) recordAttempt(
	ctx context.Context,
	delivery *domain.Delivery,
	attemptNumber int,
	result *sender.Result,
	sendErr error,
) repository.AttemptUpdate {
	var statusCode *int
	var responseBody *string
	var attemptErr *string
	var durationMS int64

	if result != nil {
		if result.StatusCode > 0 {
			value := result.StatusCode
			statusCode = &value
		}
		if body := domain.TruncateResponseSnippet(result.Body); body != "" {
			responseBody = &body
		}
		durationMS = result.Duration.Milliseconds()
	}

	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value

		var dErr *sender.Error
		if errors.As(sendErr, &dErr) {
			if dErr.StatusCode > 0 && statusCode == nil {
				value := dErr.StatusCode
				statusCode = &value
			}
			if body := domain.TruncateResponseSnippet(dErr.Body); body != "" && responseBody == nil {
				responseBody = &body
			}
		}
	}

	attempt := &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		DeliveryID:    delivery.ID,
		AttemptNumber: attemptNumber,
		StatusCode:    statusCode,
		ResponseBody:  responseBody,
		Error:         attemptErr,
		DurationMS:    durationMS,
		CreatedAt:     w.now().UTC(),
	}
	if err := w.attempts.Create(ctx, attempt); err != nil {
		w.logger.Error("failed to record delivery attempt",
			zap.String("deliveryId", delivery.ID),
			zap.Int("attemptNumber", attemptNumber),
			zap.Error(err),
		)
	}

	return repository.AttemptUpdate{
		At:           w.now().UTC(),
		ResponseCode: statusCode,
		Snippet:      responseBody,
	}
}

func (w *DeliveryWorker) failWithoutAttempt(ctx context.Context, delivery *domain.Delivery, reason string) error {
	snippet := reason
	update := repository.AttemptUpdate{
		At:      w.now().UTC(),
		Snippet: &snippet,
	}
	if err := w.deliveries.MarkAbandoned(ctx, delivery.ID, update); err != nil {
		return fmt.Errorf("failed to mark delivery as failed: %w", err)
	}
	if w.metrics != nil {
		w.metrics.IncFailed(delivery.EventType.String(), "unresolvable_secret")
	}
	return nil
}

// releaseClaim runs on a detached context: the release must go through even
// when the caller's context was canceled by shutdown, otherwise the row stays
// SENDING forever and no scan will ever pick it up.
func (w *DeliveryWorker) releaseClaim(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseClaimTimeout)
	defer cancel()

	if err := w.deliveries.ReleaseClaim(ctx, id); err != nil {
		w.logger.Error("failed to release delivery claim",
			zap.String("deliveryId", id),
			zap.Error(err),
		)
	}
}

func destinationHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.Host)
}
