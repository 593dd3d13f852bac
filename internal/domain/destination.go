package domain

import "time"

// Destination is an integrator-registered webhook endpoint. The row ID
// doubles as the delivery's secret reference: resolving the ref at attempt
// time always yields the currently configured secret, so a rotation between
// attempts is picked up by the next retry.
type Destination struct {
	ID        string
	SubjectID string
	URL       string
	Secret    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSecret reports whether deliveries to this destination are signed.
func (d *Destination) HasSecret() bool {
	return d != nil && d.Secret != ""
}
