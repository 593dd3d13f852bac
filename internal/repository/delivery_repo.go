package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/webhook-relay/internal/domain"
	"gorm.io/gorm"
)

// AttemptUpdate carries the per-attempt side effects applied to a delivery
// row regardless of outcome: the attempt counter, the attempt timestamp, and
// the diagnostic response fields.
type AttemptUpdate struct {
	At           time.Time
	ResponseCode *int
	Snippet      *string
}

// DeliveryRepository is the durable store for delivery records. It is the
// only shared mutable resource between the dispatcher's first attempt and
// the retry scanner; ClaimForSending is the coordination primitive.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Delivery, error)
	ClaimForSending(ctx context.Context, id string) (*domain.Delivery, error)
	ReleaseClaim(ctx context.Context, id string) error
	MarkDelivered(ctx context.Context, id string, update AttemptUpdate) error
	MarkRetrying(ctx context.Context, id string, nextRetryAt time.Time, update AttemptUpdate) error
	MarkFailed(ctx context.Context, id string, update AttemptUpdate) error
	MarkAbandoned(ctx context.Context, id string, update AttemptUpdate) error
	GetDueForRetry(ctx context.Context, limit int, pendingGrace time.Duration) ([]domain.Delivery, error)
}

type GormDeliveryRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db, now: time.Now}
}

func (r *GormDeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	model := deliveryModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if d != nil {
		*d = *deliveryModelToDomain(model)
	}
	return nil
}

func (r *GormDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Delivery, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	var models []DeliveryModel
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	deliveries := make([]domain.Delivery, 0, len(models))
	for i := range models {
		deliveries = append(deliveries, *deliveryModelToDomain(&models[i]))
	}

	return deliveries, nil
}

// ClaimForSending atomically moves a delivery into the in-flight SENDING
// state. The conditional update is the single-attempt-in-flight guarantee:
// only one concurrent caller observes a row transition out of
// PENDING/RETRYING, everyone else gets nil and skips this round.
func (r *GormDeliveryRepo) ClaimForSending(ctx context.Context, id string) (*domain.Delivery, error) {
	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("id = ? AND status IN ?", id, []domain.Status{domain.StatusPending, domain.StatusRetrying}).
		Update("status", domain.StatusSending)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Either the row does not exist, or another worker already claimed
		// it, or it reached a terminal state. Callers skip in all cases.
		var model DeliveryModel
		err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	var model DeliveryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

// ReleaseClaim returns a claimed delivery to PENDING without consuming an
// attempt. Used when the worker hits an infrastructure error (secret lookup,
// rate limiter) before any HTTP call was made.
func (r *GormDeliveryRepo) ReleaseClaim(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Update("status", domain.StatusPending)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormDeliveryRepo) MarkDelivered(ctx context.Context, id string, update AttemptUpdate) error {
	return r.applyOutcome(ctx, id, map[string]any{
		"status":                domain.StatusDelivered,
		"next_retry_at":         nil,
		"attempts":              gorm.Expr("attempts + 1"),
		"last_attempt_at":       update.At,
		"last_response_code":    update.ResponseCode,
		"last_response_snippet": update.Snippet,
	})
}

func (r *GormDeliveryRepo) MarkRetrying(ctx context.Context, id string, nextRetryAt time.Time, update AttemptUpdate) error {
	return r.applyOutcome(ctx, id, map[string]any{
		"status":                domain.StatusRetrying,
		"next_retry_at":         nextRetryAt,
		"attempts":              gorm.Expr("attempts + 1"),
		"last_attempt_at":       update.At,
		"last_response_code":    update.ResponseCode,
		"last_response_snippet": update.Snippet,
	})
}

func (r *GormDeliveryRepo) MarkFailed(ctx context.Context, id string, update AttemptUpdate) error {
	return r.applyOutcome(ctx, id, map[string]any{
		"status":                domain.StatusFailed,
		"next_retry_at":         nil,
		"attempts":              gorm.Expr("attempts + 1"),
		"last_attempt_at":       update.At,
		"last_response_code":    update.ResponseCode,
		"last_response_snippet": update.Snippet,
	})
}

// MarkAbandoned fails a delivery without consuming an attempt: no HTTP call
// was made, the attempt counter only tracks actual calls.
func (r *GormDeliveryRepo) MarkAbandoned(ctx context.Context, id string, update AttemptUpdate) error {
	return r.applyOutcome(ctx, id, map[string]any{
		"status":                domain.StatusFailed,
		"next_retry_at":         nil,
		"last_attempt_at":       update.At,
		"last_response_code":    update.ResponseCode,
		"last_response_snippet": update.Snippet,
	})
}

func (r *GormDeliveryRepo) applyOutcome(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// GetDueForRetry selects deliveries ready for another attempt: RETRYING rows
// whose backoff has elapsed, plus PENDING rows older than the grace period.
// The latter covers a crash between record creation and the first publish,
// which is what makes dispatch at-least-once rather than best-effort.
func (r *GormDeliveryRepo) GetDueForRetry(ctx context.Context, limit int, pendingGrace time.Duration) ([]domain.Delivery, error) {
	now := r.now()

	var models []DeliveryModel
	err := r.db.WithContext(ctx).
		Where(
			"(status = ? AND next_retry_at <= ?) OR (status = ? AND created_at <= ?)",
			domain.StatusRetrying, now,
			domain.StatusPending, now.Add(-pendingGrace),
		).
		Order("COALESCE(next_retry_at, created_at) ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	deliveries := make([]domain.Delivery, 0, len(models))
	for i := range models {
		deliveries = append(deliveries, *deliveryModelToDomain(&models[i]))
	}

	return deliveries, nil
}
