package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nikhilllyadav/SpringBus/internal/domain/booking"
	"github.com/nikhilllyadav/SpringBus/internal/domain/trip"
)

func TestHealthHandler_Check(t *testing.T) {
	// Setup
	e := NewTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler()

	// Act
	err := h.Check(c)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"timestamp"`)
}

func TestNewHealthHandler(t *testing.T) {
	h := NewHealthHandler()
	assert.NotNil(t, h)
}

func TestToTripResponse(t *testing.T) {
	now := time.Now()
	tr := &trip.Trip{
		ID:          "trip-123",
		BusNumber:   "KA-01-AB-1234",
		Origin:      "Bangalore",
		Destination: "Chennai",
		DepartureAt: now.Add(24 * time.Hour),
		ArrivalAt:   now.Add(32 * time.Hour),
		Fare:        850,
		SeatStatuses: map[string]trip.SeatStatus{
			"1A": trip.SeatAvailable,
			"1B": trip.SeatLocked,
		},
		AvailableSeats: 1,
		CreatedAt:      now,
	}

	resp := toTripResponse(tr)

	assert.Equal(t, tr.ID, resp.ID)
	assert.Equal(t, tr.BusNumber, resp.BusNumber)
	assert.Equal(t, tr.Origin, resp.Origin)
	assert.Equal(t, tr.Destination, resp.Destination)
	assert.Equal(t, tr.Fare, resp.Fare)
	assert.Equal(t, tr.AvailableSeats, resp.AvailableSeats)
}

func TestToSeatMapResponse(t *testing.T) {
	tr := &trip.Trip{
		ID: "trip-123",
		SeatStatuses: map[string]trip.SeatStatus{
			"1A": trip.SeatAvailable,
			"1B": trip.SeatBooked,
		},
		AvailableSeats: 1,
	}

	resp := toSeatMapResponse(tr)

	assert.Equal(t, "trip-123", resp.TripID)
	assert.Equal(t, "AVAILABLE", resp.Seats["1A"])
	assert.Equal(t, "BOOKED", resp.Seats["1B"])
	assert.Equal(t, 1, resp.AvailableSeats)
}

func TestToBookingResponse(t *testing.T) {
	now := time.Now()
	ref := "pi_123"
	b := &booking.Booking{
		ID:     "booking-123",
		TripID: "trip-456",
		UserID: "user-789",
		Passengers: []booking.Passenger{
			{Name: "Ravi Kumar", Age: 34, Gender: "male", SeatNumber: "1A"},
			{Name: "Anita Kumar", Age: 31, Gender: "female", SeatNumber: "1B"},
		},
		TotalFare:  1700,
		Status:     booking.StatusConfirmed,
		PaymentRef: &ref,
		CreatedAt:  now,
	}

	resp := toBookingResponse(b)

	assert.Equal(t, b.ID, resp.ID)
	assert.Equal(t, b.TripID, resp.TripID)
	assert.Equal(t, b.UserID, resp.UserID)
	assert.Len(t, resp.Passengers, 2)
	assert.Equal(t, "1A", resp.Passengers[0].SeatNumber)
	assert.Equal(t, b.TotalFare, resp.TotalFare)
	assert.Equal(t, "CONFIRMED", resp.Status)
	assert.Equal(t, &ref, resp.PaymentRef)
}
