package repository

import (
	"time"

	"github.com/kursadbilgin/webhook-relay/internal/domain"
)

// DeliveryModel is the persistence model for the webhook_deliveries table.
type DeliveryModel struct {
	ID                  string           `gorm:"type:uuid;primaryKey"`
	SubjectID           string           `gorm:"type:varchar(64);not null"`
	EventType           domain.EventType `gorm:"type:varchar(32);not null"`
	DestinationURL      string           `gorm:"type:text;not null"`
	SecretRef           string           `gorm:"type:uuid;not null"`
	Payload             string           `gorm:"type:text;not null"`
	Status              domain.Status    `gorm:"type:varchar(16);not null"`
	Attempts            int              `gorm:"not null;default:0"`
	MaxAttempts         int              `gorm:"not null;default:5"`
	LastAttemptAt       *time.Time
	NextRetryAt         *time.Time
	LastResponseCode    *int    `gorm:"type:int"`
	LastResponseSnippet *string `gorm:"type:varchar(512)"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (DeliveryModel) TableName() string {
	return "webhook_deliveries"
}

// DeliveryAttemptModel is the persistence model for webhook_delivery_attempts.
type DeliveryAttemptModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	DeliveryID    string  `gorm:"type:uuid;not null"`
	AttemptNumber int     `gorm:"not null"`
	StatusCode    *int    `gorm:"type:int"`
	ResponseBody  *string `gorm:"type:text"`
	Error         *string `gorm:"type:text"`
	DurationMS    int64   `gorm:"not null;default:0"`
	CreatedAt     time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "webhook_delivery_attempts"
}

// DestinationModel is the persistence model for webhook_destinations.
type DestinationModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	SubjectID string `gorm:"type:varchar(64);not null"`
	URL       string `gorm:"type:text;not null"`
	Secret    string `gorm:"type:text;not null;default:''"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DestinationModel) TableName() string {
	return "webhook_destinations"
}

func deliveryModelFromDomain(d *domain.Delivery) *DeliveryModel {
	if d == nil {
		return nil
	}

	return &DeliveryModel{
		ID:                  d.ID,
		SubjectID:           d.SubjectID,
		EventType:           d.EventType,
		DestinationURL:      d.DestinationURL,
		SecretRef:           d.SecretRef,
		Payload:             string(d.Payload),
		Status:              d.Status,
		Attempts:            d.Attempts,
		MaxAttempts:         d.MaxAttempts,
		LastAttemptAt:       d.LastAttemptAt,
		NextRetryAt:         d.NextRetryAt,
		LastResponseCode:    d.LastResponseCode,
		LastResponseSnippet: d.LastResponseSnippet,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryModel) *domain.Delivery {
	if m == nil {
		return nil
	}

	return &domain.Delivery{
		ID:                  m.ID,
		SubjectID:           m.SubjectID,
		EventType:           m.EventType,
		DestinationURL:      m.DestinationURL,
		SecretRef:           m.SecretRef,
		Payload:             []byte(m.Payload),
		Status:              m.Status,
		Attempts:            m.Attempts,
		MaxAttempts:         m.MaxAttempts,
		LastAttemptAt:       m.LastAttemptAt,
		NextRetryAt:         m.NextRetryAt,
		LastResponseCode:    m.LastResponseCode,
		LastResponseSnippet: m.LastResponseSnippet,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:            a.ID,
		DeliveryID:    a.DeliveryID,
		AttemptNumber: a.AttemptNumber,
		StatusCode:    a.StatusCode,
		ResponseBody:  a.ResponseBody,
		Error:         a.Error,
		DurationMS:    a.DurationMS,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:            m.ID,
		DeliveryID:    m.DeliveryID,
		AttemptNumber: m.AttemptNumber,
		StatusCode:    m.StatusCode,
		ResponseBody:  m.ResponseBody,
		Error:         m.Error,
		DurationMS:    m.DurationMS,
		CreatedAt:     m.CreatedAt,
	}
}

func destinationModelFromDomain(d *domain.Destination) *DestinationModel {
	if d == nil {
		return nil
	}

	return &DestinationModel{
		ID:        d.ID,
		SubjectID: d.SubjectID,
		URL:       d.URL,
		Secret:    d.Secret,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func destinationModelToDomain(m *DestinationModel) *domain.Destination {
	if m == nil {
		return nil
	}

	return &domain.Destination{
		ID:        m.ID,
		SubjectID: m.SubjectID,
		URL:       m.URL,
		Secret:    m.Secret,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
