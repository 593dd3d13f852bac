package sender

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/webhook-relay/internal/signature"
)

const DefaultTimeout = 30 * time.Second

// Request describes a single outbound delivery attempt. Payload is the
// delivery's immutable body; Secret is the currently resolved signing secret
// (empty for unsigned destinations).
type Request struct {
	URL     string
	Payload []byte
	Secret  string
}

// Result stores attempt metadata for audit and persistence.
type Result struct {
	StatusCode      int
	Body            string
	TimestampMillis int64
	Duration        time.Duration
}

// Sender is the outbound webhook delivery port. One call = one HTTP attempt;
// retry loops live above this interface.
type Sender interface {
	Send(ctx context.Context, req Request) (*Result, error)
}

// WebhookSender posts signed JSON callbacks to integrator endpoints.
type WebhookSender struct {
	client *resty.Client
	now    func() time.Time
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &WebhookSender{client: client, now: time.Now}
}

func NewWebhookSenderWithClient(client *resty.Client) (*WebhookSender, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(DefaultTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookSender{client: client, now: time.Now}, nil
}

func (s *WebhookSender) Send(ctx context.Context, req Request) (*Result, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("sender is not initialized")
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(req.URL)); err != nil {
		return nil, fmt.Errorf("invalid destination url: %w", err)
	}
	if len(req.Payload) == 0 {
		return nil, fmt.Errorf("payload is required")
	}

	timestampMillis := s.now().UnixMilli()

	r := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Webhook-Timestamp", strconv.FormatInt(timestampMillis, 10)).
		SetBody(req.Payload)

	// Unsigned destinations get no signature header at all; receivers treat
	// its absence as "no secret configured", not as a verification failure.
	if req.Secret != "" {
		sig, err := signature.Sign(req.Secret, timestampMillis, req.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to sign payload: %w", err)
		}
		r.SetHeader("X-Webhook-Signature", sig)
	}

	start := s.now()
	response, err := r.Post(req.URL)
	elapsed := s.now().Sub(start)

	if err != nil {
		return nil, &Error{
			Message:   "delivery request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &Error{
			Message:   "destination returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Result{
			StatusCode:      statusCode,
			Body:            body,
			TimestampMillis: timestampMillis,
			Duration:        elapsed,
		}, nil
	}

	return nil, &Error{
		StatusCode: statusCode,
		Body:       body,
		Message:    fmt.Sprintf("destination returned status %d", statusCode),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

// isTransientHTTPStatus reports whether a non-2xx response warrants a retry:
// 429 and 5xx are endpoint-side incidents, any other 4xx means the request
// shape itself is rejected and retrying cannot help.
func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
