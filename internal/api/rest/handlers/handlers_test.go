package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/subscription-sync/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/internal/metrics"
	"github.com/Dhoini/subscription-sync/internal/repository"
	stripesvc "github.com/Dhoini/subscription-sync/internal/stripe"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testWebhookSecret = "whsec_test_secret"

var testPayload = []byte(`{"id":"evt_1","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingDispatcher struct {
	events []stripe.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event stripe.Event) string {
	d.events = append(d.events, event)
	return metrics.OutcomeProcessed
}

func signPayload(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func newWebhookRouter(secret string) (*gin.Engine, *recordingDispatcher, *prometheus.Registry) {
	log := logger.NewNop()
	registry := prometheus.NewRegistry()
	dispatcher := &recordingDispatcher{}
	h := NewWebhookHandler(stripesvc.NewVerifier(secret, 0, log), dispatcher, metrics.NewMetrics(registry), log)

	r := gin.New()
	r.POST("/webhooks/stripe", h.HandleStripeWebhook)
	return r, dispatcher, registry
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	r, dispatcher, _ := newWebhookRouter(testWebhookSecret)

	w := postWebhook(r, testPayload, signPayload(testPayload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	require.Len(t, dispatcher.events, 1)
	assert.Equal(t, "evt_1", dispatcher.events[0].ID)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	r, dispatcher, registry := newWebhookRouter(testWebhookSecret)

	w := postWebhook(r, testPayload, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid Stripe signature")
	assert.Empty(t, dispatcher.events)
	count, err := testutil.GatherAndCount(registry, "stripe_webhook_verification_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	r, dispatcher, _ := newWebhookRouter(testWebhookSecret)

	sig := signPayload(testPayload, testWebhookSecret)
	tampered := bytes.Replace(testPayload, []byte("in_1"), []byte("in_2"), 1)
	w := postWebhook(r, tampered, sig)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, dispatcher.events)
}

func TestWebhookMissingSecretIsServerError(t *testing.T) {
	r, dispatcher, _ := newWebhookRouter("")

	w := postWebhook(r, testPayload, signPayload(testPayload, testWebhookSecret))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, dispatcher.events)
}

func TestWebhookMissingHeaderBeforeMissingSecret(t *testing.T) {
	r, _, _ := newWebhookRouter("")

	w := postWebhook(r, testPayload, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	r, dispatcher, _ := newWebhookRouter(testWebhookSecret)

	body := []byte(strings.Repeat("a", MaxWebhookBodyBytes+1))
	w := postWebhook(r, body, signPayload(body, testWebhookSecret))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, dispatcher.events)
}

type MockSubscriptionReader struct {
	mock.Mock
}

func (m *MockSubscriptionReader) GetByStripeSubscriptionID(ctx context.Context, id string) (*domain.Subscription, error) {
	args := m.Called(ctx, id)
	if sub, ok := args.Get(0).(*domain.Subscription); ok {
		return sub, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCanceler struct {
	mock.Mock
}

func (m *MockCanceler) CancelSubscription(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// withUser имитирует RequireAuth
func withUser(userID, email string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(middleware.ContextUserIDKey), userID)
		c.Set(string(middleware.ContextUserEmailKey), email)
		c.Next()
	}
}

func newSubscriptionRouter(reader *MockSubscriptionReader, canceler *MockCanceler) *gin.Engine {
	h := NewSubscriptionHandler(reader, canceler, logger.NewNop())
	r := gin.New()
	r.Use(withUser("u1", "a@x.com"))
	r.GET("/subscriptions/:subscription_id", h.GetSubscription)
	r.DELETE("/subscriptions/:subscription_id", h.CancelSubscription)
	return r
}

func TestGetSubscription(t *testing.T) {
	reader, canceler := new(MockSubscriptionReader), new(MockCanceler)
	reader.On("GetByStripeSubscriptionID", mock.Anything, "sub_1").
		Return(&domain.Subscription{StripeSubscriptionID: "sub_1", UserID: "u1", PlanID: domain.PlanPremium}, nil)
	reader.On("GetByStripeSubscriptionID", mock.Anything, "sub_other").
		Return(&domain.Subscription{StripeSubscriptionID: "sub_other", UserID: "u2"}, nil)
	reader.On("GetByStripeSubscriptionID", mock.Anything, "sub_missing").Return(nil, repository.ErrNotFound)
	reader.On("GetByStripeSubscriptionID", mock.Anything, "sub_broken").Return(nil, errors.New("db down"))
	r := newSubscriptionRouter(reader, canceler)

	tests := []struct {
		id   string
		want int
	}{
		{id: "sub_1", want: http.StatusOK},
		{id: "sub_other", want: http.StatusNotFound},
		{id: "sub_missing", want: http.StatusNotFound},
		{id: "sub_broken", want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions/"+tt.id, nil))
		assert.Equal(t, tt.want, w.Code, tt.id)
	}
}

func TestCancelSubscription(t *testing.T) {
	reader, canceler := new(MockSubscriptionReader), new(MockCanceler)
	reader.On("GetByStripeSubscriptionID", mock.Anything, "sub_1").
		Return(&domain.Subscription{StripeSubscriptionID: "sub_1", UserID: "u1"}, nil)
	canceler.On("CancelSubscription", mock.Anything, "sub_1").Return(nil).Once()
	r := newSubscriptionRouter(reader, canceler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/subscriptions/sub_1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	canceler.AssertExpectations(t)
}

func TestCancelSubscriptionOfAnotherUser(t *testing.T) {
	reader, canceler := new(MockSubscriptionReader), new(MockCanceler)
	reader.On("GetByStripeSubscriptionID", mock.Anything, "sub_2").
		Return(&domain.Subscription{StripeSubscriptionID: "sub_2", UserID: "u2"}, nil)
	r := newSubscriptionRouter(reader, canceler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/subscriptions/sub_2", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	canceler.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything)
}

func TestCancelSubscriptionStripeFailure(t *testing.T) {
	reader, canceler := new(MockSubscriptionReader), new(MockCanceler)
	reader.On("GetByStripeSubscriptionID", mock.Anything, "sub_1").
		Return(&domain.Subscription{StripeSubscriptionID: "sub_1", UserID: "u1"}, nil)
	canceler.On("CancelSubscription", mock.Anything, "sub_1").Return(errors.New("stripe unavailable"))
	r := newSubscriptionRouter(reader, canceler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/subscriptions/sub_1", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

type MockCustomerResolver struct {
	mock.Mock
}

func (m *MockCustomerResolver) ResolveOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func newCustomerRouter(resolver *MockCustomerResolver) *gin.Engine {
	h := NewCustomerHandler(resolver, logger.NewNop())
	r := gin.New()
	r.Use(withUser("u1", "token@x.com"))
	r.POST("/customers/resolve", h.ResolveCustomer)
	return r
}

func TestResolveCustomerUsesTokenEmail(t *testing.T) {
	resolver := new(MockCustomerResolver)
	resolver.On("ResolveOrCreateCustomer", mock.Anything, "u1", "token@x.com").Return("cus_1", nil).Once()
	r := newCustomerRouter(resolver)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/customers/resolve", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"customer_id":"cus_1"}`, w.Body.String())
	resolver.AssertExpectations(t)
}

func TestResolveCustomerEmptyBody(t *testing.T) {
	resolver := new(MockCustomerResolver)
	resolver.On("ResolveOrCreateCustomer", mock.Anything, "u1", "token@x.com").Return("cus_1", nil).Once()
	r := newCustomerRouter(resolver)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/customers/resolve", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"customer_id":"cus_1"}`, w.Body.String())
	resolver.AssertExpectations(t)
}

func TestResolveCustomerBodyEmailWins(t *testing.T) {
	resolver := new(MockCustomerResolver)
	resolver.On("ResolveOrCreateCustomer", mock.Anything, "u1", "body@x.com").Return("cus_2", nil).Once()
	r := newCustomerRouter(resolver)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/customers/resolve", strings.NewReader(`{"email":"body@x.com"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	resolver.AssertExpectations(t)
}

func TestResolveCustomerInvalidBody(t *testing.T) {
	resolver := new(MockCustomerResolver)
	r := newCustomerRouter(resolver)

	for _, body := range []string{`not json`, `{"email":"not-an-email"}`} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/customers/resolve", strings.NewReader(body)))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, body)
	}
	resolver.AssertNotCalled(t, "ResolveOrCreateCustomer", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveCustomerStripeFailure(t *testing.T) {
	resolver := new(MockCustomerResolver)
	resolver.On("ResolveOrCreateCustomer", mock.Anything, "u1", "token@x.com").Return("", errors.New("stripe down"))
	r := newCustomerRouter(resolver)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/customers/resolve", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHealth(t *testing.T) {
	ok := NewHealthHandler(map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	failing := NewHealthHandler(map[string]HealthCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	r := gin.New()
	r.GET("/ok", ok.Health)
	r.GET("/failing", failing.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"OK"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/failing", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "DEGRADED")
}
