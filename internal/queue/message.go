package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/webhook-relay/internal/domain"
)

// DeliveryMessage is the broker payload handed to delivery workers. It only
// references the durable delivery row; the worker re-reads the row through
// the claim, so a stale or duplicated message is harmless.
type DeliveryMessage struct {
	DeliveryID string           `json:"deliveryId"`
	SubjectID  string           `json:"subjectId,omitempty"`
	EventType  domain.EventType `json:"eventType"`
}

func (m DeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("deliveryId is required")
	}
	if !m.EventType.IsValid() {
		return fmt.Errorf("invalid event type %q", m.EventType)
	}
	return nil
}
