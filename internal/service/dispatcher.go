package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/webhook-relay/internal/domain"
	"github.com/kursadbilgin/webhook-relay/internal/observability"
	"github.com/kursadbilgin/webhook-relay/internal/queue"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
	"go.uber.org/zap"
)

// DestinationResolver looks up the webhook endpoint configured for a
// subject. Implemented by repository.GormDestinationRepo; business modules
// with their own registry can plug in a different implementation.
type DestinationResolver interface {
	ResolveForSubject(ctx context.Context, subjectID string) (*domain.Destination, error)
}

// SecretResolver re-fetches the current signing secret by reference at
// delivery time. Every attempt, first or retried, goes through this lookup
// so secret rotation applies to in-flight deliveries.
type SecretResolver interface {
	GetSecret(ctx context.Context, secretRef string) (string, error)
}

// eventPayload is the wire shape of the callback body. It is marshaled once
// at dispatch time and stored on the delivery row; retries resend the stored
// bytes untouched.
type eventPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// DispatchService is the entry point business modules call when a domain
// event occurs. It never surfaces delivery failures to the caller; only a
// failure to durably record the intent to deliver is returned.
type DispatchService struct {
	deliveries   repository.DeliveryRepository
	destinations DestinationResolver
	publisher    queue.Publisher
	logger       *zap.Logger
	metrics      *observability.Metrics
	maxAttempts  int
	now          func() time.Time
}

func NewDispatchService(
	deliveries repository.DeliveryRepository,
	destinations DestinationResolver,
	publisher queue.Publisher,
	maxAttempts int,
	logger *zap.Logger,
) (*DispatchService, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if destinations == nil {
		return nil, fmt.Errorf("destination resolver is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		deliveries:   deliveries,
		destinations: destinations,
		publisher:    publisher,
		logger:       logger,
		maxAttempts:  maxAttempts,
		now:          time.Now,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Dispatch records a webhook delivery for the given business event and
// triggers the first attempt. The returned error is non-nil only when the
// delivery record could not be persisted; an unreachable destination or a
// failed publish is absorbed here and recovered by the retry scanner.
func (s *DispatchService) Dispatch(ctx context.Context, subjectID string, eventType domain.EventType, data map[string]any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return fmt.Errorf("%w: subject id is required", domain.ErrValidation)
	}
	if !eventType.IsValid() {
		return fmt.Errorf("%w: invalid event type %q", domain.ErrValidation, eventType)
	}

	destination, err := s.destinations.ResolveForSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Not every event has a listener; a missing destination is a
			// documented no-op, not an error.
			s.logger.Debug("no webhook destination configured, skipping dispatch",
				zap.String("subjectId", subjectID),
				zap.String("eventType", eventType.String()),
			)
			return nil
		}
		return fmt.Errorf("failed to resolve webhook destination: %w", err)
	}

	payload, err := s.buildPayload(subjectID, eventType, data)
	if err != nil {
		return fmt.Errorf("failed to build webhook payload: %w", err)
	}

	delivery := &domain.Delivery{
		ID:             uuid.NewString(),
		SubjectID:      subjectID,
		EventType:      eventType,
		DestinationURL: destination.URL,
		SecretRef:      destination.ID,
		Payload:        payload,
		Status:         domain.StatusPending,
		Attempts:       0,
		MaxAttempts:    s.maxAttempts,
	}
	if err := delivery.Validate(); err != nil {
		return err
	}

	// The record must be durable before any send: a crash from here on
	// leaves a PENDING row the retry scanner picks up after its grace
	// period, which is what makes delivery at-least-once.
	if err := s.deliveries.Create(ctx, delivery); err != nil {
		return fmt.Errorf("failed to persist delivery record: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncDispatched(eventType.String())
	}

	msg := queue.DeliveryMessage{
		DeliveryID: delivery.ID,
		SubjectID:  delivery.SubjectID,
		EventType:  delivery.EventType,
	}
	if err := s.publisher.Publish(ctx, queue.WorkQueue, msg); err != nil {
		s.logger.Warn("failed to publish delivery for first attempt, scanner will pick it up",
			zap.String("deliveryId", delivery.ID),
			zap.String("subjectId", subjectID),
			zap.Error(err),
		)
		return nil
	}

	return nil
}

func (s *DispatchService) buildPayload(subjectID string, eventType domain.EventType, data map[string]any) ([]byte, error) {
	merged := make(map[string]any, len(data)+1)
	for k, v := range data {
		merged[k] = v
	}
	merged["subjectId"] = subjectID

	return json.Marshal(eventPayload{
		Event:     eventType.String(),
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Data:      merged,
	})
}
