package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nikhilllyadav/SpringBus/internal/application"
	"github.com/nikhilllyadav/SpringBus/internal/domain/trip"
)

type TripHandler struct {
	service TripServiceInterface
}

func NewTripHandler(s TripServiceInterface) *TripHandler {
	return &TripHandler{service: s}
}

type ScheduleTripRequest struct {
	BusNumber   string `json:"bus_number" validate:"required" example:"KA-01-AB-1234"`
	Origin      string `json:"origin" validate:"required" example:"Bangalore"`
	Destination string `json:"destination" validate:"required" example:"Chennai"`
	DepartureAt string `json:"departure_at" validate:"required" example:"2026-09-01T21:30:00Z"`
	ArrivalAt   string `json:"arrival_at" validate:"required" example:"2026-09-02T05:00:00Z"`
	Fare        int    `json:"fare" validate:"required,min=1" example:"850"`
	SeatLayout  string `json:"seat_layout,omitempty" example:"1A,1B,2A,2B"`
	Capacity    int    `json:"capacity,omitempty" example:"40"`
}

type LockSeatsRequest struct {
	SeatNumbers []string `json:"seat_numbers" validate:"required,min=1" example:"1A,1B"`
}

type TripResponse struct {
	ID             string    `json:"id"`
	BusNumber      string    `json:"bus_number"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartureAt    time.Time `json:"departure_at"`
	ArrivalAt      time.Time `json:"arrival_at"`
	Fare           int       `json:"fare"`
	AvailableSeats int       `json:"available_seats"`
	CreatedAt      time.Time `json:"created_at"`
}

type SeatMapResponse struct {
	TripID         string            `json:"trip_id"`
	Seats          map[string]string `json:"seats"`
	AvailableSeats int               `json:"available_seats"`
}

func toTripResponse(t *trip.Trip) TripResponse {
	return TripResponse{
		ID: t.ID, BusNumber: t.BusNumber,
		Origin: t.Origin, Destination: t.Destination,
		DepartureAt: t.DepartureAt, ArrivalAt: t.ArrivalAt,
		Fare: t.Fare, AvailableSeats: t.AvailableSeats,
		CreatedAt: t.CreatedAt,
	}
}

func toSeatMapResponse(t *trip.Trip) SeatMapResponse {
	seats := make(map[string]string, len(t.SeatStatuses))
	for seatNumber, status := range t.SeatStatuses {
		seats[seatNumber] = string(status)
	}
	return SeatMapResponse{
		TripID:         t.ID,
		Seats:          seats,
		AvailableSeats: t.AvailableSeats,
	}
}

// Create godoc
// @Summary 運行便を作成
// @Description 座席マップを初期化した運行便を作成します
// @Tags trips
// @Accept json
// @Produce json
// @Param request body ScheduleTripRequest true "運行便情報"
// @Success 201 {object} TripResponse
// @Failure 400 {object} map[string]string
// @Router /trips [post]
func (h *TripHandler) Create(c echo.Context) error {
	var req ScheduleTripRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	departureAt, err := time.Parse(time.RFC3339, req.DepartureAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "出発時刻の形式が不正です")
	}
	arrivalAt, err := time.Parse(time.RFC3339, req.ArrivalAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "到着時刻の形式が不正です")
	}
	t, err := h.service.ScheduleTrip(c.Request().Context(), application.ScheduleTripInput{
		BusNumber:   req.BusNumber,
		Origin:      req.Origin,
		Destination: req.Destination,
		DepartureAt: departureAt,
		ArrivalAt:   arrivalAt,
		Fare:        req.Fare,
		SeatLayout:  req.SeatLayout,
		Capacity:    req.Capacity,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTripResponse(t))
}

// GetByID godoc
// @Summary 運行便を取得
// @Tags trips
// @Produce json
// @Param id path string true "運行便ID"
// @Success 200 {object} TripResponse
// @Failure 404 {object} map[string]string
// @Router /trips/{id} [get]
func (h *TripHandler) GetByID(c echo.Context) error {
	t, err := h.service.GetTrip(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTripResponse(t))
}

// List godoc
// @Summary 運行便の一覧または検索
// @Description origin/destination/date が指定された場合は空席のある便を検索します
// @Tags trips
// @Produce json
// @Param origin query string false "出発地"
// @Param destination query string false "到着地"
// @Param date query string false "出発日（YYYY-MM-DD）"
// @Success 200 {array} TripResponse
// @Router /trips [get]
func (h *TripHandler) List(c echo.Context) error {
	origin := c.QueryParam("origin")
	destination := c.QueryParam("destination")
	dateStr := c.QueryParam("date")

	var (
		trips []*trip.Trip
		err   error
	)
	if origin != "" && destination != "" && dateStr != "" {
		date, perr := time.Parse("2006-01-02", dateStr)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "出発日の形式が不正です")
		}
		trips, err = h.service.SearchTrips(c.Request().Context(), origin, destination, date)
	} else {
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		offset, _ := strconv.Atoi(c.QueryParam("offset"))
		trips, err = h.service.ListTrips(c.Request().Context(), limit, offset)
	}
	if err != nil {
		return err
	}

	resp := make([]TripResponse, len(trips))
	for i, t := range trips {
		resp[i] = toTripResponse(t)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetSeatMap godoc
// @Summary 座席マップを取得
// @Tags trips
// @Produce json
// @Param id path string true "運行便ID"
// @Success 200 {object} SeatMapResponse
// @Failure 404 {object} map[string]string
// @Router /trips/{id}/seats [get]
func (h *TripHandler) GetSeatMap(c echo.Context) error {
	t, err := h.service.GetTrip(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatMapResponse(t))
}

// LockSeats godoc
// @Summary 座席を一括確保
// @Description 指定座席をすべて確保します。1席でも競合すれば何も変更せず409を返します
// @Tags trips
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "運行便ID"
// @Param request body LockSeatsRequest true "座席番号"
// @Success 200 {object} SeatMapResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "座席が確保できない"
// @Router /trips/{id}/seats/lock [post]
func (h *TripHandler) LockSeats(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req LockSeatsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	t, err := h.service.LockSeats(c.Request().Context(), c.Param("id"), req.SeatNumbers, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatMapResponse(t))
}
