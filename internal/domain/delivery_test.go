package domain

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{input: "PENDING", want: StatusPending},
		{input: "retrying", want: StatusRetrying},
		{input: " delivered ", want: StatusDelivered},
		{input: "Failed", want: StatusFailed},
		{input: "sending", want: StatusSending},
		{input: "QUEUED", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := ParseStatusFromString(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseStatusFromString(%q) expected error", tc.input)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("ParseStatusFromString(%q) error = %v, want ErrValidation", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseStatusFromString(%q) error = %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseStatusFromString(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[Status]bool{
		StatusPending:   false,
		StatusSending:   false,
		StatusRetrying:  false,
		StatusDelivered: true,
		StatusFailed:    true,
	}

	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestParseEventTypeFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseEventTypeFromString("payment_confirmed")
	if err != nil {
		t.Fatalf("ParseEventTypeFromString() error = %v", err)
	}
	if got != EventPaymentConfirmed {
		t.Fatalf("ParseEventTypeFromString() = %s, want %s", got, EventPaymentConfirmed)
	}

	if _, err := ParseEventTypeFromString("USER_REGISTERED"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDeliveryValidate(t *testing.T) {
	t.Parallel()

	valid := Delivery{
		SubjectID:      "order-1",
		EventType:      EventPaymentDetected,
		DestinationURL: "https://integrator.example.com/hooks",
		Payload:        []byte(`{"event":"PAYMENT_DETECTED"}`),
		MaxAttempts:    DefaultMaxAttempts,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	testCases := []struct {
		name   string
		mutate func(d *Delivery)
	}{
		{name: "missing subject", mutate: func(d *Delivery) { d.SubjectID = " " }},
		{name: "invalid event type", mutate: func(d *Delivery) { d.EventType = "NOPE" }},
		{name: "missing url", mutate: func(d *Delivery) { d.DestinationURL = "" }},
		{name: "malformed url", mutate: func(d *Delivery) { d.DestinationURL = "not a url" }},
		{name: "empty payload", mutate: func(d *Delivery) { d.Payload = nil }},
		{name: "zero max attempts", mutate: func(d *Delivery) { d.MaxAttempts = 0 }},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := valid
			tc.mutate(&d)
			if err := d.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestTruncateResponseSnippet(t *testing.T) {
	t.Parallel()

	if got := TruncateResponseSnippet("  ok  "); got != "ok" {
		t.Fatalf("TruncateResponseSnippet() = %q, want %q", got, "ok")
	}

	long := strings.Repeat("x", MaxResponseSnippet+100)
	got := TruncateResponseSnippet(long)
	if len(got) != MaxResponseSnippet {
		t.Fatalf("snippet length = %d, want %d", len(got), MaxResponseSnippet)
	}
}

func TestTruncateResponseSnippetKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	// Three-byte runes so the byte limit lands mid-sequence.
	long := strings.Repeat("€", MaxResponseSnippet)
	got := TruncateResponseSnippet(long)

	if len(got) > MaxResponseSnippet {
		t.Fatalf("snippet length = %d, want <= %d", len(got), MaxResponseSnippet)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte rune")
	}
	if !strings.HasPrefix(long, got) {
		t.Fatal("snippet must be a prefix of the original body")
	}

	// A boundary-aligned cut keeps the full limit.
	aligned := strings.Repeat("ab", MaxResponseSnippet)
	if got := TruncateResponseSnippet(aligned); len(got) != MaxResponseSnippet {
		t.Fatalf("aligned snippet length = %d, want %d", len(got), MaxResponseSnippet)
	}
}
