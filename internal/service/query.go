package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/webhook-relay/internal/domain"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
)

// DeliveryQueryService exposes the observability read path: delivery history
// per subject and per-call attempt logs. Raw secrets never pass through here;
// delivery rows only carry the secret reference.
type DeliveryQueryService struct {
	deliveries repository.DeliveryRepository
	attempts   repository.AttemptRepository
}

func NewDeliveryQueryService(
	deliveries repository.DeliveryRepository,
	attempts repository.AttemptRepository,
) (*DeliveryQueryService, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}

	return &DeliveryQueryService{
		deliveries: deliveries,
		attempts:   attempts,
	}, nil
}

// ListBySubject returns deliveries for a subject, most recent first.
func (s *DeliveryQueryService) ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Delivery, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", domain.ErrValidation)
	}
	return s.deliveries.ListBySubject(ctx, subjectID, limit)
}

func (s *DeliveryQueryService) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: delivery id is required", domain.ErrValidation)
	}
	return s.deliveries.GetByID(ctx, id)
}

// GetAttempts returns the attempt log for a delivery in attempt order. The
// delivery is loaded first so a missing id surfaces as not-found instead of
// an empty list.
func (s *DeliveryQueryService) GetAttempts(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return nil, fmt.Errorf("%w: delivery id is required", domain.ErrValidation)
	}

	if _, err := s.deliveries.GetByID(ctx, deliveryID); err != nil {
		return nil, err
	}

	return s.attempts.GetByDeliveryID(ctx, deliveryID)
}
