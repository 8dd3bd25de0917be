package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"
	"github.com/oakmart/checkout-engine/pkg/health"

	"github.com/oakmart/checkout-engine/internal/coupon"
	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/event"
	"github.com/oakmart/checkout-engine/internal/pricing"
	"github.com/oakmart/checkout-engine/internal/service"
	"github.com/oakmart/checkout-engine/internal/shipping"
)

// --- Mock repositories ---

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.CheckoutSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockSessionRepo) Update(ctx context.Context, s *domain.CheckoutSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSessionRepo) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.CheckoutSession, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CheckoutSession), args.Error(1)
}

type mockCouponRepo struct {
	mock.Mock
}

func (m *mockCouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepo) IncrementUses(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *mockCouponRepo) DecrementUses(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

// --- Test helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testEnv struct {
	router   http.Handler
	sessions *mockSessionRepo
	coupons  *mockCouponRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()
	sessions := &mockSessionRepo{}
	coupons := &mockCouponRepo{}
	ledger := coupon.NewLedger(coupons, logger)
	engine, err := shipping.NewEngine()
	require.NoError(t, err)
	calc := pricing.NewCalculator(nil, engine, ledger, logger)
	svc := service.NewCheckoutService(sessions, calc, ledger, event.NewPublisher(nil, "checkout-engine", logger), logger)
	router := NewRouter(svc, ledger, engine, health.NewHandler(), logger)
	return &testEnv{router: router, sessions: sessions, coupons: coupons}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type response struct {
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, env *testEnv, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func checkoutBody() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"product_id": "p-1", "name": "Widget", "unit_price": 25.00, "quantity": 2},
		},
	}
}

func pendingSession() *domain.CheckoutSession {
	now := time.Now().UTC()
	return &domain.CheckoutSession{
		ID:        "s-1",
		UserID:    "u-1",
		Status:    domain.StatusPending,
		Items:     []domain.CartItemSnapshot{{ProductID: "p-1", Name: "Widget", UnitPrice: 25.00, Quantity: 2}},
		Totals:    domain.PriceTotals{Subtotal: 50, Tax: 5, ShippingCost: 10, Total: 65},
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Preview ---

func TestPreviewOrder(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/preview", "u-1", checkoutBody())
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	var preview pricing.OrderPreview
	require.NoError(t, json.Unmarshal(resp.Data, &preview))
	assert.Equal(t, 50.00, preview.Totals.Subtotal)
	assert.Equal(t, 5.00, preview.Totals.Tax)
	assert.Equal(t, 10.00, preview.Totals.ShippingCost)
	assert.Equal(t, 65.00, preview.Totals.Total)
}

func TestPreviewOrder_MissingUserID(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/preview", "", checkoutBody())
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestPreviewOrder_EmptyCart(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/preview", "u-1", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewOrder_InvalidCouponStillReturnsTotals(t *testing.T) {
	env := newTestEnv(t)
	env.coupons.On("GetByCode", mock.Anything, "NOPE").Return(nil, apperrors.NotFound("coupon", "NOPE"))

	body := checkoutBody()
	body["coupon_code"] = "NOPE"
	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/preview", "u-1", body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	var preview pricing.OrderPreview
	require.NoError(t, json.Unmarshal(resp.Data, &preview))
	assert.Equal(t, 0.00, preview.Totals.Discount)
	assert.Equal(t, "Coupon not found", preview.CouponMessage)
}

// --- Create ---

func TestCreateCheckout(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.On("Create", mock.Anything, mock.AnythingOfType("*domain.CheckoutSession")).Return(nil)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/", "u-1", checkoutBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	var session domain.CheckoutSession
	require.NoError(t, json.Unmarshal(resp.Data, &session))
	assert.Equal(t, domain.StatusPending, session.Status)
	assert.Equal(t, 65.00, session.Totals.Total)
	env.sessions.AssertExpectations(t)
}

func TestCreateCheckout_InvalidCoupon(t *testing.T) {
	env := newTestEnv(t)
	env.coupons.On("GetByCode", mock.Anything, "NOPE").Return(nil, apperrors.NotFound("coupon", "NOPE"))

	body := checkoutBody()
	body["coupon_code"] = "NOPE"
	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/", "u-1", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "COUPON_INVALID", resp.Error.Code)
	assert.Equal(t, "Coupon not found", resp.Error.Message)
}

func TestCreateCheckout_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u-1")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCheckout_ValidationFailure(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"items": []map[string]any{
			{"product_id": "p-1", "name": "Widget", "unit_price": 25.00, "quantity": 0},
		},
	}
	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/", "u-1", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Get ---

func TestGetCheckout(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.On("GetByID", mock.Anything, "s-1").Return(pendingSession(), nil)

	rec := doJSON(t, env, http.MethodGet, "/api/v1/checkout/s-1", "u-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	var session domain.CheckoutSession
	require.NoError(t, json.Unmarshal(resp.Data, &session))
	assert.Equal(t, "s-1", session.ID)
}

func TestGetCheckout_WrongOwner(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.On("GetByID", mock.Anything, "s-1").Return(pendingSession(), nil)

	rec := doJSON(t, env, http.MethodGet, "/api/v1/checkout/s-1", "someone-else", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetCheckout_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("checkout session", "missing"))

	rec := doJSON(t, env, http.MethodGet, "/api/v1/checkout/missing", "u-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Complete ---

func TestCompleteCheckout(t *testing.T) {
	env := newTestEnv(t)
	session := pendingSession()
	env.sessions.On("GetByID", mock.Anything, "s-1").Return(session, nil)
	env.sessions.On("Update", mock.Anything, session).Return(nil)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/s-1/complete", "u-1",
		map[string]any{"payment_intent_id": "pi-123"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	var got domain.CheckoutSession
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "pi-123", got.PaymentIntentID)
}

func TestCompleteCheckout_AlreadyCompleted(t *testing.T) {
	env := newTestEnv(t)
	session := pendingSession()
	session.Status = domain.StatusCompleted
	env.sessions.On("GetByID", mock.Anything, "s-1").Return(session, nil)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/s-1/complete", "u-1",
		map[string]any{"payment_intent_id": "pi-123"})
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_TRANSITION", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "completed")
}

func TestCompleteCheckout_TimeExpired(t *testing.T) {
	env := newTestEnv(t)
	session := pendingSession()
	session.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	env.sessions.On("GetByID", mock.Anything, "s-1").Return(session, nil)
	env.sessions.On("Update", mock.Anything, session).Return(nil)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/s-1/complete", "u-1",
		map[string]any{"payment_intent_id": "pi-123"})
	require.Equal(t, http.StatusGone, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SESSION_EXPIRED", resp.Error.Code)
}

func TestCompleteCheckout_MissingPaymentIntent(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/s-1/complete", "u-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Expire / Fail ---

func TestExpireCheckout(t *testing.T) {
	env := newTestEnv(t)
	session := pendingSession()
	env.sessions.On("GetByID", mock.Anything, "s-1").Return(session, nil)
	env.sessions.On("Update", mock.Anything, session).Return(nil)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/s-1/expire", "u-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domain.StatusExpired, session.Status)
}

func TestFailCheckout(t *testing.T) {
	env := newTestEnv(t)
	session := pendingSession()
	env.sessions.On("GetByID", mock.Anything, "s-1").Return(session, nil)
	env.sessions.On("Update", mock.Anything, session).Return(nil)

	rec := doJSON(t, env, http.MethodPost, "/api/v1/checkout/s-1/fail", "u-1",
		map[string]any{"reason": "card declined"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domain.StatusFailed, session.Status)
	assert.Equal(t, "card declined", session.FailureReason)
}

// --- Sweeper ---

func TestExpireDue(t *testing.T) {
	env := newTestEnv(t)
	session := pendingSession()
	env.sessions.On("ListExpired", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.CheckoutSession{session}, nil)
	env.sessions.On("Update", mock.Anything, session).Return(nil)

	rec := doJSON(t, env, http.MethodPost, "/internal/v1/checkout/expire-due", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	var result map[string]int
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 1, result["expired"])
}
