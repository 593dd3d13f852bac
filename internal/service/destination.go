package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/webhook-relay/internal/domain"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
)

// DestinationService registers webhook endpoints for subjects. Registration
// is how a subject starts receiving callbacks; dispatch for subjects without
// an active destination is a silent no-op.
type DestinationService struct {
	destinations repository.DestinationRepository
}

func NewDestinationService(destinations repository.DestinationRepository) (*DestinationService, error) {
	if destinations == nil {
		return nil, fmt.Errorf("destination repository is required")
	}
	return &DestinationService{destinations: destinations}, nil
}

// Register stores a new active destination. An empty secret is allowed and
// means deliveries to this endpoint go out unsigned.
func (s *DestinationService) Register(ctx context.Context, subjectID, rawURL, secret string) (*domain.Destination, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", domain.ErrValidation)
	}

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrValidation)
	}
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", domain.ErrValidation, rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: url scheme must be http or https", domain.ErrValidation)
	}

	destination := &domain.Destination{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		URL:       rawURL,
		Secret:    strings.TrimSpace(secret),
		Active:    true,
	}

	if err := s.destinations.Create(ctx, destination); err != nil {
		return nil, fmt.Errorf("failed to register destination: %w", err)
	}
	return destination, nil
}
