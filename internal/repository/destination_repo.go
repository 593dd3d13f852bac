package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/webhook-relay/internal/domain"
	"gorm.io/gorm"
)

// DestinationRepository is the bundled implementation of the destination
// lookup the dispatcher depends on. Business modules with their own
// registries can supply a different implementation of the service ports.
type DestinationRepository interface {
	Create(ctx context.Context, d *domain.Destination) error
	ResolveForSubject(ctx context.Context, subjectID string) (*domain.Destination, error)
	GetSecret(ctx context.Context, secretRef string) (string, error)
}

type GormDestinationRepo struct {
	db *gorm.DB
}

func NewGormDestinationRepo(db *gorm.DB) *GormDestinationRepo {
	return &GormDestinationRepo{db: db}
}

func (r *GormDestinationRepo) Create(ctx context.Context, d *domain.Destination) error {
	model := destinationModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if d != nil {
		*d = *destinationModelToDomain(model)
	}
	return nil
}

func (r *GormDestinationRepo) ResolveForSubject(ctx context.Context, subjectID string) (*domain.Destination, error) {
	var model DestinationModel
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND active = ?", subjectID, true).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return destinationModelToDomain(&model), nil
}

// GetSecret re-fetches the current signing secret by reference. Deliveries
// never carry the raw secret, so a rotation between attempts is reflected on
// the next retry through this lookup.
func (r *GormDestinationRepo) GetSecret(ctx context.Context, secretRef string) (string, error) {
	var model DestinationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", secretRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return model.Secret, nil
}
