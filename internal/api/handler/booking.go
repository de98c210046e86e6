package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nikhilllyadav/SpringBus/internal/application"
	"github.com/nikhilllyadav/SpringBus/internal/domain/booking"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type PassengerRequest struct {
	Name   string `json:"name" validate:"required" example:"Ravi Kumar"`
	Age    int    `json:"age" validate:"min=0" example:"34"`
	Gender string `json:"gender" example:"male"`
}

type CreateBookingRequest struct {
	TripID      string             `json:"trip_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Passengers  []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
	SeatNumbers []string           `json:"seat_numbers" validate:"required,min=1" example:"1A,1B"`
}

type PassengerResponse struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	SeatNumber string `json:"seat_number"`
}

type BookingResponse struct {
	ID          string              `json:"id"`
	TripID      string              `json:"trip_id"`
	UserID      string              `json:"user_id"`
	Passengers  []PassengerResponse `json:"passengers"`
	TotalFare   int                 `json:"total_fare"`
	Status      string              `json:"status"`
	PaymentRef  *string             `json:"payment_ref,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	Origin      string              `json:"origin,omitempty"`
	Destination string              `json:"destination,omitempty"`
	DepartureAt *time.Time          `json:"departure_at,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	passengers := make([]PassengerResponse, len(b.Passengers))
	for i, p := range b.Passengers {
		passengers[i] = PassengerResponse{
			Name: p.Name, Age: p.Age, Gender: p.Gender, SeatNumber: p.SeatNumber,
		}
	}
	return BookingResponse{
		ID: b.ID, TripID: b.TripID, UserID: b.UserID,
		Passengers: passengers, TotalFare: b.TotalFare,
		Status: string(b.Status), PaymentRef: b.PaymentRef,
		CreatedAt: b.CreatedAt,
	}
}

func toBookingDetailResponse(d *application.BookingDetail) BookingResponse {
	resp := toBookingResponse(d.Booking)
	if d.Trip != nil {
		resp.Origin = d.Trip.Origin
		resp.Destination = d.Trip.Destination
		departureAt := d.Trip.DepartureAt
		resp.DepartureAt = &departureAt
	}
	return resp
}

// Create godoc
// @Summary 予約を作成
// @Description 保留中の予約を作成します。座席は決済確定まで確保状態のままです
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string "座席が予約できない"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	passengers := make([]booking.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = booking.Passenger{Name: p.Name, Age: p.Age, Gender: p.Gender}
	}

	detail, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		TripID:      req.TripID,
		UserID:      userID,
		Passengers:  passengers,
		SeatNumbers: req.SeatNumbers,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBookingDetailResponse(detail))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	detail, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if detail.Booking.UserID != userID {
		return booking.ErrBookingAccessDenied
	}
	return c.JSON(http.StatusOK, toBookingDetailResponse(detail))
}

// GetUserBookings godoc
// @Summary ユーザーの予約一覧を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Failure 401 {object} map[string]string
// @Router /bookings [get]
func (h *BookingHandler) GetUserBookings(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.GetUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return err
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListAll godoc
// @Summary 全予約の一覧を取得
// @Description 運用向けの一覧エンドポイント
// @Tags bookings
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Router /bookings/all [get]
func (h *BookingHandler) ListAll(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.ListBookings(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}
