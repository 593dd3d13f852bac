package domain

import "time"

// DeliveryAttempt records a single HTTP call made for a delivery.
type DeliveryAttempt struct {
	ID            string
	DeliveryID    string
	AttemptNumber int
	StatusCode    *int
	ResponseBody  *string
	Error         *string
	DurationMS    int64
	CreatedAt     time.Time
}
