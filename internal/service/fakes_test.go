package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kursadbilgin/webhook-relay/internal/domain"
	"github.com/kursadbilgin/webhook-relay/internal/queue"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
	"github.com/kursadbilgin/webhook-relay/internal/sender"
)

type fakeDeliveryRepo struct {
	mu sync.Mutex

	createFn  func(ctx context.Context, d *domain.Delivery) error
	getByIDFn func(ctx context.Context, id string) (*domain.Delivery, error)
	listFn    func(ctx context.Context, subjectID string, limit int) ([]domain.Delivery, error)
	claimFn   func(ctx context.Context, id string) (*domain.Delivery, error)
	releaseFn func(ctx context.Context, id string) error
	dueFn     func(ctx context.Context, limit int, pendingGrace time.Duration) ([]domain.Delivery, error)

	delivered []repository.AttemptUpdate
	retrying  []time.Time
	failed    []repository.AttemptUpdate
	abandoned []repository.AttemptUpdate
	released  []string
	created   []domain.Delivery
	markErr   error
}

func (f *fakeDeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	if f.createFn != nil {
		return f.createFn(ctx, d)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *d)
	return nil
}

func (f *fakeDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDeliveryRepo) ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Delivery, error) {
	if f.listFn != nil {
		return f.listFn(ctx, subjectID, limit)
	}
	return nil, nil
}

func (f *fakeDeliveryRepo) ClaimForSending(ctx context.Context, id string) (*domain.Delivery, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDeliveryRepo) ReleaseClaim(ctx context.Context, id string) error {
	f.mu.Lock()
	f.released = append(f.released, id)
	f.mu.Unlock()
	if f.releaseFn != nil {
		return f.releaseFn(ctx, id)
	}
	return nil
}

func (f *fakeDeliveryRepo) MarkDelivered(ctx context.Context, id string, update repository.AttemptUpdate) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, update)
	return nil
}

func (f *fakeDeliveryRepo) MarkRetrying(ctx context.Context, id string, nextRetryAt time.Time, update repository.AttemptUpdate) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrying = append(f.retrying, nextRetryAt)
	return nil
}

func (f *fakeDeliveryRepo) MarkFailed(ctx context.Context, id string, update repository.AttemptUpdate) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, update)
	return nil
}

func (f *fakeDeliveryRepo) MarkAbandoned(ctx context.Context, id string, update repository.AttemptUpdate) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, update)
	return nil
}

func (f *fakeDeliveryRepo) GetDueForRetry(ctx context.Context, limit int, pendingGrace time.Duration) ([]domain.Delivery, error) {
	if f.dueFn != nil {
		return f.dueFn(ctx, limit, pendingGrace)
	}
	return nil, nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.DeliveryAttempt
	createFn func(ctx context.Context, a *domain.DeliveryAttempt) error
	listFn   func(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error)
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttemptRepo) GetByDeliveryID(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error) {
	if f.listFn != nil {
		return f.listFn(ctx, deliveryID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DeliveryAttempt, len(f.attempts))
	copy(out, f.attempts)
	return out, nil
}

type fakeDestinationResolver struct {
	resolveFn func(ctx context.Context, subjectID string) (*domain.Destination, error)
}

func (f *fakeDestinationResolver) ResolveForSubject(ctx context.Context, subjectID string) (*domain.Destination, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, subjectID)
	}
	return nil, domain.ErrNotFound
}

type fakeSecretResolver struct {
	secretFn func(ctx context.Context, secretRef string) (string, error)
}

func (f *fakeSecretResolver) GetSecret(ctx context.Context, secretRef string) (string, error) {
	if f.secretFn != nil {
		return f.secretFn(ctx, secretRef)
	}
	return "", domain.ErrNotFound
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.DeliveryMessage
	publishFn func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) messages() []queue.DeliveryMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queue.DeliveryMessage, len(f.published))
	copy(out, f.published)
	return out
}

// fakeConsumer feeds a fixed set of messages to the handler once and then
// blocks until context cancellation, mirroring a live consumer.
type fakeConsumer struct {
	msgs []queue.DeliveryMessage

	once sync.Once
	done chan struct{}
}

func newFakeConsumer(msgs ...queue.DeliveryMessage) *fakeConsumer {
	return &fakeConsumer{msgs: msgs, done: make(chan struct{})}
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	f.once.Do(func() {
		for _, msg := range f.msgs {
			_ = handler(ctx, msg)
		}
		close(f.done)
	})

	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeSender struct {
	mu     sync.Mutex
	calls  []sender.Request
	sendFn func(ctx context.Context, req sender.Request) (*sender.Result, error)
}

func (f *fakeSender) Send(ctx context.Context, req sender.Request) (*sender.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type fakeRateLimiter struct {
	mu      sync.Mutex
	waited  []string
	waitErr error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, host string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, host string) error {
	f.mu.Lock()
	f.waited = append(f.waited, host)
	f.mu.Unlock()
	return f.waitErr
}
