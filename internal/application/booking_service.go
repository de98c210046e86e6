package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nikhilllyadav/SpringBus/internal/domain/booking"
	"github.com/nikhilllyadav/SpringBus/internal/domain/transaction"
	"github.com/nikhilllyadav/SpringBus/internal/domain/trip"
	rediscache "github.com/nikhilllyadav/SpringBus/internal/infrastructure/redis"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/logger"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/metrics"
)

// BookingService は予約ライフサイクルのユースケースを提供する
type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	tripRepo    trip.Repository
	lockManager *rediscache.LockManager
	cache       *rediscache.AvailabilityCache
}

// NewBookingService は新しいBookingServiceインスタンスを作成する
func NewBookingService(tm transaction.Manager, br booking.Repository, tr trip.Repository, lm *rediscache.LockManager, cache *rediscache.AvailabilityCache) *BookingService {
	return &BookingService{txManager: tm, bookingRepo: br, tripRepo: tr, lockManager: lm, cache: cache}
}

// CreateBookingInput は予約作成の入力
type CreateBookingInput struct {
	TripID      string
	UserID      string
	Passengers  []booking.Passenger
	SeatNumbers []string
}

// BookingDetail は予約と紐づく運行便をまとめたビュー
type BookingDetail struct {
	Booking *booking.Booking
	Trip    *trip.Trip
}

// CreateBooking は保留中の予約を作成する
// 座席は LOCKED のまま維持され、決済確定時に BOOKED へ遷移する
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*BookingDetail, error) {
	if len(input.Passengers) == 0 {
		s.countBooking("validation_error")
		return nil, booking.ErrPassengersRequired
	}
	if len(input.Passengers) != len(input.SeatNumbers) {
		s.countBooking("validation_error")
		return nil, booking.ErrPassengerSeatMismatch
	}

	unlock, err := acquireTripLock(ctx, s.lockManager, input.TripID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	t, err := s.tripRepo.GetByIDForUpdate(ctx, tx, input.TripID)
	if err != nil {
		return nil, err
	}

	// 自分で事前ロックした座席も、未ロックの空席もここで受け入れる
	if err := t.CheckBookable(input.SeatNumbers); err != nil {
		s.countBooking("seat_conflict")
		return nil, err
	}

	passengers := make([]booking.Passenger, len(input.Passengers))
	for i, p := range input.Passengers {
		p.SeatNumber = input.SeatNumbers[i]
		passengers[i] = p
	}

	b := booking.NewBooking(input.TripID, input.UserID, passengers, t.Fare)
	if err := b.Validate(); err != nil {
		s.countBooking("validation_error")
		return nil, err
	}

	if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
		s.countBooking("error")
		return nil, fmt.Errorf("予約の作成に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.countBooking("error")
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countBooking("success")
	logger.Info("予約を作成しました",
		zap.String("booking_id", b.ID),
		zap.String("trip_id", b.TripID),
		zap.String("user_id", b.UserID),
		zap.Int("total_fare", b.TotalFare),
	)
	return &BookingDetail{Booking: b, Trip: t}, nil
}

// GetBooking はIDから予約を運行便込みで取得する
func (s *BookingService) GetBooking(ctx context.Context, id string) (*BookingDetail, error) {
	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.tripRepo.GetByID(ctx, b.TripID)
	if err != nil {
		return nil, err
	}
	return &BookingDetail{Booking: b, Trip: t}, nil
}

// GetUserBookings はユーザーの予約一覧を新しい順で取得する
func (s *BookingService) GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.bookingRepo.GetByUserID(ctx, userID, limit, offset)
}

// ListBookings は全予約の一覧を新しい順で取得する
func (s *BookingService) ListBookings(ctx context.Context, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.bookingRepo.List(ctx, limit, offset)
}

// ReleaseExpiredBookings は olderThan より古い保留中の予約を失効させ、座席を解放する
// 1件の失敗は他の予約の処理を止めない
func (s *BookingService) ReleaseExpiredBookings(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	expired, err := s.bookingRepo.GetPendingCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("期限切れ予約の取得に失敗: %w", err)
	}

	count := 0
	for _, b := range expired {
		released, err := s.releaseExpiredBooking(ctx, b)
		if err != nil {
			logger.Error("期限切れ予約の解放に失敗",
				zap.String("booking_id", b.ID),
				zap.Error(err),
			)
			// 座席解放に失敗しても保留中のままの予約は失効扱いにする
			if updErr := s.bookingRepo.UpdateStatus(ctx, b.ID, booking.StatusFailed); updErr != nil {
				logger.Error("予約状態の更新に失敗",
					zap.String("booking_id", b.ID),
					zap.Error(updErr),
				)
			}
			continue
		}
		if released {
			count++
		}
	}
	return count, nil
}

func (s *BookingService) releaseExpiredBooking(ctx context.Context, b *booking.Booking) (bool, error) {
	unlock, err := acquireTripLock(ctx, s.lockManager, b.TripID)
	if err != nil {
		return false, err
	}
	defer unlock()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	t, err := s.tripRepo.GetByIDForUpdate(ctx, tx, b.TripID)
	if err != nil {
		return false, err
	}

	// スキャン後に決済Webhookが先着している可能性があるため排他区間内で読み直す
	b, err = s.bookingRepo.GetByIDForUpdate(ctx, tx, b.ID)
	if err != nil {
		return false, err
	}
	if !b.IsPending() {
		logger.Info("既に遷移済みの予約をスキップします",
			zap.String("booking_id", b.ID),
			zap.String("status", string(b.Status)),
		)
		return false, nil
	}

	released, anomalies := t.ReleaseSeats(b.SeatNumbers())
	if len(anomalies) > 0 {
		// LOCKED以外の座席はそのまま残す
		logger.Warn("解放対象外の座席をスキップしました",
			zap.String("booking_id", b.ID),
			zap.String("trip_id", b.TripID),
			zap.Any("anomalies", anomalies),
		)
	}

	if err := b.Fail(); err != nil {
		return false, err
	}

	if err := s.tripRepo.Update(ctx, tx, t); err != nil {
		return false, fmt.Errorf("座席状態の保存に失敗: %w", err)
	}
	if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
		return false, fmt.Errorf("予約状態の保存に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("コミットに失敗: %w", err)
	}

	if s.cache != nil {
		if cerr := s.cache.Invalidate(ctx, b.TripID); cerr != nil {
			logger.Warn("空席数キャッシュの無効化に失敗", zap.String("trip_id", b.TripID), zap.Error(cerr))
		}
	}

	logger.Info("期限切れ予約を失効させました",
		zap.String("booking_id", b.ID),
		zap.String("trip_id", b.TripID),
		zap.Strings("released_seats", released),
	)
	return true, nil
}

func (s *BookingService) countBooking(status string) {
	if m := metrics.Get(); m != nil {
		m.BookingsTotal.WithLabelValues(status).Inc()
	}
}
