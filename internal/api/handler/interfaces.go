package handler

import (
	"context"
	"time"

	"github.com/nikhilllyadav/SpringBus/internal/application"
	"github.com/nikhilllyadav/SpringBus/internal/domain/booking"
	"github.com/nikhilllyadav/SpringBus/internal/domain/payment"
	"github.com/nikhilllyadav/SpringBus/internal/domain/trip"
)

// TripServiceInterface は運行便サービスのインターフェース
type TripServiceInterface interface {
	ScheduleTrip(ctx context.Context, input application.ScheduleTripInput) (*trip.Trip, error)
	GetTrip(ctx context.Context, id string) (*trip.Trip, error)
	ListTrips(ctx context.Context, limit, offset int) ([]*trip.Trip, error)
	SearchTrips(ctx context.Context, origin, destination string, date time.Time) ([]*trip.Trip, error)
	LockSeats(ctx context.Context, tripID string, seatNumbers []string, userID string) (*trip.Trip, error)
	CountAvailableSeats(ctx context.Context, tripID string) (int, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*application.BookingDetail, error)
	GetBooking(ctx context.Context, id string) (*application.BookingDetail, error)
	GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
	ListBookings(ctx context.Context, limit, offset int) ([]*booking.Booking, error)
}

// PaymentServiceInterface は決済サービスのインターフェース
type PaymentServiceInterface interface {
	CreatePaymentIntent(ctx context.Context, bookingID, userID string) (*payment.Intent, error)
	HandleEvent(ctx context.Context, ev payment.Event) error
}
