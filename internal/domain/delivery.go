package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Status represents the lifecycle state of a webhook delivery.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSending   Status = "SENDING"
	StatusRetrying  Status = "RETRYING"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSending, StatusRetrying, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further attempts will be made.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// EventType represents the business event a delivery notifies about.
type EventType string

const (
	EventPaymentInitiated EventType = "PAYMENT_INITIATED"
	EventPaymentDetected  EventType = "PAYMENT_DETECTED"
	EventPaymentConfirmed EventType = "PAYMENT_CONFIRMED"
	EventPaymentFailed    EventType = "PAYMENT_FAILED"
	EventPaymentExpired   EventType = "PAYMENT_EXPIRED"
	EventOrderShipped     EventType = "ORDER_SHIPPED"
	EventOrderDelivered   EventType = "ORDER_DELIVERED"
)

func (e EventType) String() string { return string(e) }

func (e EventType) IsValid() bool {
	switch e {
	case EventPaymentInitiated, EventPaymentDetected, EventPaymentConfirmed,
		EventPaymentFailed, EventPaymentExpired, EventOrderShipped, EventOrderDelivered:
		return true
	}
	return false
}

func ParseEventTypeFromString(s string) (EventType, error) {
	et := EventType(strings.ToUpper(strings.TrimSpace(s)))
	if !et.IsValid() {
		return "", fmt.Errorf("%w: invalid event type %q", ErrValidation, s)
	}
	return et, nil
}

const (
	// DefaultMaxAttempts is the attempt ceiling applied when none is configured.
	DefaultMaxAttempts = 5

	// MaxResponseSnippet bounds the stored response body excerpt in bytes.
	MaxResponseSnippet = 512
)

// Delivery is the durable record tracking one webhook notification across
// its full attempt history. DestinationURL, SecretRef, and Payload are fixed
// at creation: retries always hit the URL captured at dispatch time and send
// byte-identical content. The raw signing secret is never stored here;
// SecretRef is resolved back to the current secret on every attempt.
type Delivery struct {
	ID                  string
	SubjectID           string
	EventType           EventType
	DestinationURL      string
	SecretRef           string
	Payload             []byte
	Status              Status
	Attempts            int
	MaxAttempts         int
	LastAttemptAt       *time.Time
	NextRetryAt         *time.Time
	LastResponseCode    *int
	LastResponseSnippet *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (d *Delivery) Validate() error {
	if strings.TrimSpace(d.SubjectID) == "" {
		return fmt.Errorf("%w: subject id is required", ErrValidation)
	}
	if !d.EventType.IsValid() {
		return fmt.Errorf("%w: invalid event type %q", ErrValidation, d.EventType)
	}
	if strings.TrimSpace(d.DestinationURL) == "" {
		return fmt.Errorf("%w: destination url is required", ErrValidation)
	}
	if _, err := url.ParseRequestURI(d.DestinationURL); err != nil {
		return fmt.Errorf("%w: invalid destination url %q", ErrValidation, d.DestinationURL)
	}
	if len(d.Payload) == 0 {
		return fmt.Errorf("%w: payload is required", ErrValidation)
	}
	if d.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive", ErrValidation)
	}
	return nil
}

// TruncateResponseSnippet bounds diagnostic response excerpts so a
// misbehaving endpoint cannot bloat the delivery row. The cut backs off to a
// rune boundary so a multi-byte character is never split.
func TruncateResponseSnippet(body string) string {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) <= MaxResponseSnippet {
		return trimmed
	}

	cut := MaxResponseSnippet
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}
