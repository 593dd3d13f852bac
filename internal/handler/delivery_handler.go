package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/webhook-relay/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type Dispatcher interface {
	Dispatch(ctx context.Context, subjectID string, eventType domain.EventType, data map[string]any) error
}

type DeliveryReader interface {
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Delivery, error)
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	GetAttempts(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error)
}

type DestinationRegistrar interface {
	Register(ctx context.Context, subjectID, url, secret string) (*domain.Destination, error)
}

type DeliveryHandler struct {
	dispatcher   Dispatcher
	reader       DeliveryReader
	destinations DestinationRegistrar
}

func NewDeliveryHandler(dispatcher Dispatcher, reader DeliveryReader, destinations DestinationRegistrar) (*DeliveryHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("delivery reader is required")
	}
	if destinations == nil {
		return nil, fmt.Errorf("destination registrar is required")
	}
	return &DeliveryHandler{
		dispatcher:   dispatcher,
		reader:       reader,
		destinations: destinations,
	}, nil
}

func RegisterDeliveryRoutes(router fiber.Router, dispatcher Dispatcher, reader DeliveryReader, destinations DestinationRegistrar) error {
	h, err := NewDeliveryHandler(dispatcher, reader, destinations)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/events", h.DispatchEvent)
	v1.Post("/destinations", h.RegisterDestination)
	v1.Get("/deliveries", h.ListDeliveries)
	v1.Get("/deliveries/:id", h.GetDelivery)
	v1.Get("/deliveries/:id/attempts", h.GetDeliveryAttempts)

	return nil
}

type dispatchEventRequest struct {
	SubjectID string         `json:"subjectId"`
	EventType string         `json:"eventType"`
	Data      map[string]any `json:"data"`
}

type registerDestinationRequest struct {
	SubjectID string `json:"subjectId"`
	URL       string `json:"url"`
	Secret    string `json:"secret"`
}

// destinationResponse intentionally omits the secret; it is write-only
// through the API.
type destinationResponse struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	URL       string    `json:"url"`
	Active    bool      `json:"active"`
	Signed    bool      `json:"signed"`
	CreatedAt time.Time `json:"createdAt"`
}

type deliveryResponse struct {
	ID                  string     `json:"id"`
	SubjectID           string     `json:"subjectId"`
	EventType           string     `json:"eventType"`
	DestinationURL      string     `json:"destinationUrl"`
	Status              string     `json:"status"`
	Attempts            int        `json:"attempts"`
	MaxAttempts         int        `json:"maxAttempts"`
	LastAttemptAt       *time.Time `json:"lastAttemptAt,omitempty"`
	NextRetryAt         *time.Time `json:"nextRetryAt,omitempty"`
	LastResponseCode    *int       `json:"lastResponseCode,omitempty"`
	LastResponseSnippet *string    `json:"lastResponseSnippet,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type attemptResponse struct {
	ID            string    `json:"id"`
	DeliveryID    string    `json:"deliveryId"`
	AttemptNumber int       `json:"attemptNumber"`
	StatusCode    *int      `json:"statusCode,omitempty"`
	ResponseBody  *string   `json:"responseBody,omitempty"`
	Error         *string   `json:"error,omitempty"`
	DurationMS    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

type listDeliveriesResponse struct {
	Data []deliveryResponse `json:"data"`
}

type listAttemptsResponse struct {
	Data []attemptResponse `json:"data"`
}

func (h *DeliveryHandler) DispatchEvent(c *fiber.Ctx) error {
	var req dispatchEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	eventType, err := domain.ParseEventTypeFromString(req.EventType)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.dispatcher.Dispatch(c.Context(), req.SubjectID, eventType, req.Data); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"subjectId": strings.TrimSpace(req.SubjectID),
		"eventType": eventType.String(),
		"accepted":  true,
	})
}

func (h *DeliveryHandler) RegisterDestination(c *fiber.Ctx) error {
	var req registerDestinationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	destination, err := h.destinations.Register(c.Context(), req.SubjectID, req.URL, req.Secret)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(destinationResponse{
		ID:        destination.ID,
		SubjectID: destination.SubjectID,
		URL:       destination.URL,
		Active:    destination.Active,
		Signed:    destination.HasSecret(),
		CreatedAt: destination.CreatedAt,
	})
}

func (h *DeliveryHandler) ListDeliveries(c *fiber.Ctx) error {
	subjectID := strings.TrimSpace(c.Query("subjectId"))
	if subjectID == "" {
		return toHTTPError(fmt.Errorf("%w: subjectId query parameter is required", domain.ErrValidation))
	}

	limit := c.QueryInt("limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxListLimit))
	}

	deliveries, err := h.reader.ListBySubject(c.Context(), subjectID, limit)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{
		Data: toDeliveryResponses(deliveries),
	})
}

func (h *DeliveryHandler) GetDelivery(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	delivery, err := h.reader.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toDeliveryResponse(delivery))
}

func (h *DeliveryHandler) GetDeliveryAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	attempts, err := h.reader.GetAttempts(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, attemptResponse{
			ID:            attempt.ID,
			DeliveryID:    attempt.DeliveryID,
			AttemptNumber: attempt.AttemptNumber,
			StatusCode:    attempt.StatusCode,
			ResponseBody:  attempt.ResponseBody,
			Error:         attempt.Error,
			DurationMS:    attempt.DurationMS,
			CreatedAt:     attempt.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{Data: responses})
}

func toDeliveryResponses(deliveries []domain.Delivery) []deliveryResponse {
	responses := make([]deliveryResponse, 0, len(deliveries))
	for _, delivery := range deliveries {
		d := delivery
		responses = append(responses, toDeliveryResponse(&d))
	}
	return responses
}

func toDeliveryResponse(d *domain.Delivery) deliveryResponse {
	if d == nil {
		return deliveryResponse{}
	}

	return deliveryResponse{
		ID:                  d.ID,
		SubjectID:           d.SubjectID,
		EventType:           d.EventType.String(),
		DestinationURL:      d.DestinationURL,
		Status:              d.Status.String(),
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

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
