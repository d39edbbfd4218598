package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/metrics"
	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

type MockCustomerAPI struct {
	mock.Mock
}

func (m *MockCustomerAPI) SearchCustomerByUserID(ctx context.Context, userID string) (string, bool, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCustomerAPI) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *MockCustomerAPI) GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	args := m.Called(ctx, customerID)
	if c, ok := args.Get(0).(*stripe.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerAPI) UpdateCustomerUserID(ctx context.Context, customerID, userID string) error {
	return m.Called(ctx, customerID, userID).Error(0)
}

type MockProductAPI struct {
	mock.Mock
}

func (m *MockProductAPI) GetProduct(ctx context.Context, productID string) (*stripe.Product, error) {
	args := m.Called(ctx, productID)
	if p, ok := args.Get(0).(*stripe.Product); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeIdentityRepository email -> user id для двух источников
type fakeIdentityRepository struct {
	profiles map[string]string
	auth     map[string]string
	errs     map[string]error
}

func (f *fakeIdentityRepository) FindProfileUserID(_ context.Context, email string) (string, error) {
	return f.find("profiles", f.profiles, email)
}

func (f *fakeIdentityRepository) FindAuthUserID(_ context.Context, email string) (string, error) {
	return f.find("auth", f.auth, email)
}

func (f *fakeIdentityRepository) find(source string, m map[string]string, email string) (string, error) {
	if err := f.errs[source]; err != nil {
		return "", err
	}
	if id, ok := m[email]; ok {
		return id, nil
	}
	return "", repository.ErrNotFound
}

// fakeSubscriptionRepository повторяет семантику ON CONFLICT DO UPDATE
type fakeSubscriptionRepository struct {
	mu        sync.Mutex
	rows      map[string]domain.Subscription
	failWrite error
}

func newFakeSubscriptionRepository() *fakeSubscriptionRepository {
	return &fakeSubscriptionRepository{rows: map[string]domain.Subscription{}}
}

func (f *fakeSubscriptionRepository) GetByStripeSubscriptionID(_ context.Context, id string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (f *fakeSubscriptionRepository) Upsert(_ context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	if existing, ok := f.rows[sub.StripeSubscriptionID]; ok {
		existing.PlanID = sub.PlanID
		existing.Status = sub.Status
		existing.CurrentPeriodStart = sub.CurrentPeriodStart
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
		existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		f.rows[sub.StripeSubscriptionID] = existing
		return nil
	}
	f.rows[sub.StripeSubscriptionID] = *sub
	return nil
}

func (f *fakeSubscriptionRepository) Update(_ context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	existing, ok := f.rows[sub.StripeSubscriptionID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.PlanID = sub.PlanID
	existing.Status = sub.Status
	existing.CurrentPeriodStart = sub.CurrentPeriodStart
	existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
	existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	f.rows[sub.StripeSubscriptionID] = existing
	return nil
}

func (f *fakeSubscriptionRepository) MarkCanceled(_ context.Context, id string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	row.Status = domain.SubscriptionStatusCanceled
	f.rows[id] = row
	return &row, nil
}

func (f *fakeSubscriptionRepository) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakePaymentRepository struct {
	payments []domain.Payment
	err      error
}

func (f *fakePaymentRepository) Insert(_ context.Context, payment *domain.Payment) error {
	if f.err != nil {
		return f.err
	}
	f.payments = append(f.payments, *payment)
	return nil
}

type recordingPublisher struct {
	changes     []domain.SubscriptionChange
	deadLetters []domain.DeadLetter
	payments    []domain.Payment
}

func (p *recordingPublisher) PublishSubscriptionChange(_ context.Context, change domain.SubscriptionChange) error {
	p.changes = append(p.changes, change)
	return nil
}

func (p *recordingPublisher) PublishDeadLetter(_ context.Context, letter domain.DeadLetter) error {
	p.deadLetters = append(p.deadLetters, letter)
	return nil
}

func (p *recordingPublisher) PublishPaymentRecorded(_ context.Context, payment domain.Payment) error {
	p.payments = append(p.payments, payment)
	return nil
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

// newEvent собирает stripe.Event так же, как его декодирует webhook.ConstructEvent
func newEvent(t *testing.T, id, eventType string, object any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data":   map[string]any{"object": object},
	})
	require.NoError(t, err)

	var event stripe.Event
	require.NoError(t, json.Unmarshal(raw, &event))
	return event
}
