package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nikhilllyadav/SpringBus/internal/domain/booking"
	"github.com/nikhilllyadav/SpringBus/internal/domain/trip"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error     string         `json:"error"`
	Code      int            `json:"code,omitempty"`
	Conflicts []SeatConflict `json:"conflicts,omitempty"`
}

// SeatConflict は確保できなかった座席とその時点のステータス
type SeatConflict struct {
	SeatNumber string `json:"seat_number"`
	Status     string `json:"status"`
}

// ドメイン層の入力検証エラー。リクエスト不正として400を返す
var validationErrors = []error{
	booking.ErrTripIDRequired,
	booking.ErrUserIDRequired,
	booking.ErrPassengersRequired,
	booking.ErrPassengerNameRequired,
	booking.ErrSeatNumberRequired,
	booking.ErrDuplicateSeatNumber,
	booking.ErrPassengerSeatMismatch,
	trip.ErrSeatNumbersRequired,
	trip.ErrBusNumberRequired,
	trip.ErrOriginRequired,
	trip.ErrDestinationRequired,
	trip.ErrInvalidTripTime,
	trip.ErrInvalidFare,
	trip.ErrNoSeats,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CustomHTTPErrorHandler はドメインエラーをHTTPステータスへ対応付ける
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code      = http.StatusInternalServerError
		message   = "内部サーバーエラー"
		conflicts []SeatConflict
	)

	var seatErr *trip.SeatUnavailableError
	var he *echo.HTTPError

	switch {
	case errors.As(err, &seatErr):
		// 競合した全座席と観測ステータスを返す
		code = http.StatusConflict
		message = seatErr.Error()
		conflicts = make([]SeatConflict, len(seatErr.Conflicts))
		for i, sc := range seatErr.Conflicts {
			conflicts[i] = SeatConflict{SeatNumber: sc.SeatNumber, Status: sc.Status}
		}
	case errors.Is(err, trip.ErrTripNotFound), errors.Is(err, booking.ErrBookingNotFound):
		code = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, booking.ErrBookingAccessDenied):
		code = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, booking.ErrBookingNotPending), errors.Is(err, booking.ErrBookingAlreadyConfirmed):
		code = http.StatusConflict
		message = err.Error()
	case isValidationError(err):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{
		Error:     message,
		Code:      code,
		Conflicts: conflicts,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
