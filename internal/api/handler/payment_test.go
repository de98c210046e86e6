package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nikhilllyadav/SpringBus/internal/domain/booking"
	"github.com/nikhilllyadav/SpringBus/internal/domain/payment"
)

// MockPaymentService はPaymentServiceInterfaceのモック
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePaymentIntent(ctx context.Context, bookingID, userID string) (*payment.Intent, error) {
	args := m.Called(ctx, bookingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockPaymentService) HandleEvent(ctx context.Context, ev payment.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func TestPaymentHandler_CreateIntent(t *testing.T) {
	e := NewTestEcho()

	t.Run("決済意図を作成できる", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreatePaymentIntent", mock.Anything, "booking-123", "user-123").
			Return(&payment.Intent{Ref: "pi_123", ClientSecret: "secret", Amount: 85000, Currency: "inr"}, nil)

		h := NewPaymentHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/booking-123/payment-intent", nil)
		req.Header.Set("X-User-ID", "user-123")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("booking-123")

		err := h.CreateIntent(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp PaymentIntentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "pi_123", resp.PaymentRef)
		assert.Equal(t, int64(85000), resp.Amount)
	})

	t.Run("ユーザーIDがないと401", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/booking-123/payment-intent", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.CreateIntent(c)

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("保留中でない予約のエラーはそのまま返す", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CreatePaymentIntent", mock.Anything, "booking-123", "user-123").
			Return(nil, booking.ErrBookingNotPending)

		h := NewPaymentHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/booking-123/payment-intent", nil)
		req.Header.Set("X-User-ID", "user-123")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("booking-123")

		err := h.CreateIntent(c)

		assert.ErrorIs(t, err, booking.ErrBookingNotPending)
	})
}

func TestPaymentHandler_Webhook(t *testing.T) {
	e := NewTestEcho()

	t.Run("成功イベントを処理する", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandleEvent", mock.Anything, payment.Event{
			Type:       payment.EventTypeSucceeded,
			PaymentRef: "pi_123",
			BookingID:  "booking-123",
			Amount:     85000,
			Currency:   "inr",
		}).Return(nil)

		h := NewPaymentHandler(mockService)

		reqBody := `{
			"type": "payment_intent.succeeded",
			"payment_ref": "pi_123",
			"booking_id": "booking-123",
			"amount": 85000,
			"currency": "inr"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Webhook(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"received":true`)
		mockService.AssertExpectations(t)
	})

	t.Run("未知のイベント種別でも200を返す", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandleEvent", mock.Anything, mock.AnythingOfType("payment.Event")).
			Return(payment.ErrUnknownEventType)

		h := NewPaymentHandler(mockService)

		reqBody := `{"type": "charge.refunded", "booking_id": "booking-123"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Webhook(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"outcome":"ignored"`)
	})

	t.Run("必須項目が欠けていると400", func(t *testing.T) {
		mockService := new(MockPaymentService)
		h := NewPaymentHandler(mockService)

		reqBody := `{"payment_ref": "pi_123"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Webhook(c)

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		mockService.AssertNotCalled(t, "HandleEvent")
	})

	t.Run("処理エラーはそのまま返す", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandleEvent", mock.Anything, mock.AnythingOfType("payment.Event")).
			Return(booking.ErrBookingNotFound)

		h := NewPaymentHandler(mockService)

		reqBody := `{"type": "payment_intent.succeeded", "booking_id": "missing"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Webhook(c)

		assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	})
}
