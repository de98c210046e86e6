package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nikhilllyadav/SpringBus/internal/domain/payment"
)

type PaymentHandler struct {
	service PaymentServiceInterface
}

func NewPaymentHandler(s PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type PaymentIntentResponse struct {
	PaymentRef   string `json:"payment_ref"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// WebhookRequest は検証済みの決済イベント
// 署名検証はプロバイダーSDK側のエンドポイントで済んでいる前提
type WebhookRequest struct {
	Type       string `json:"type" validate:"required"`
	PaymentRef string `json:"payment_ref"`
	BookingID  string `json:"booking_id" validate:"required"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// CreateIntent godoc
// @Summary 決済意図を作成
// @Description 保留中の予約に対する決済意図を作成します
// @Tags payments
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 201 {object} PaymentIntentResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "予約が保留中でない"
// @Router /bookings/{id}/payment-intent [post]
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	intent, err := h.service.CreatePaymentIntent(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, PaymentIntentResponse{
		PaymentRef:   intent.Ref,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	})
}

// Webhook godoc
// @Summary 決済イベントを受信
// @Description 決済プロバイダーからのイベントを予約へ突き合わせます
// @Description 重複・手遅れ・未知のイベントも200で応答します（再送を止めるため）
// @Tags payments
// @Accept json
// @Produce json
// @Param request body WebhookRequest true "決済イベント"
// @Success 200 {object} WebhookResponse
// @Failure 400 {object} map[string]string
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c echo.Context) error {
	var req WebhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.service.HandleEvent(c.Request().Context(), payment.Event{
		Type:       req.Type,
		PaymentRef: req.PaymentRef,
		BookingID:  req.BookingID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	})
	if err != nil {
		// 未知のイベント種別は受領だけして無視する
		if errors.Is(err, payment.ErrUnknownEventType) {
			return c.JSON(http.StatusOK, WebhookResponse{Received: true, Outcome: "ignored"})
		}
		return err
	}
	return c.JSON(http.StatusOK, WebhookResponse{Received: true})
}
