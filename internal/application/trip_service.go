package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nikhilllyadav/SpringBus/internal/domain/transaction"
	"github.com/nikhilllyadav/SpringBus/internal/domain/trip"
	rediscache "github.com/nikhilllyadav/SpringBus/internal/infrastructure/redis"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/logger"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/metrics"
)

// 空席数キャッシュのTTL
const availableCountCacheTTL = 30 * time.Second

// TripService は運行便と座席ロックのユースケースを提供する
type TripService struct {
	txManager   transaction.Manager
	tripRepo    trip.Repository
	lockManager *rediscache.LockManager
	cache       *rediscache.AvailabilityCache
}

// NewTripService は新しいTripServiceインスタンスを作成する
// lockManager と cache は nil 可（Redis未接続でも行ロックのみで動作する）
func NewTripService(tm transaction.Manager, tr trip.Repository, lm *rediscache.LockManager, cache *rediscache.AvailabilityCache) *TripService {
	return &TripService{txManager: tm, tripRepo: tr, lockManager: lm, cache: cache}
}

// ScheduleTripInput は運行便作成の入力
type ScheduleTripInput struct {
	BusNumber   string
	Origin      string
	Destination string
	DepartureAt time.Time
	ArrivalAt   time.Time
	Fare        int
	// SeatLayout はカンマ区切りの座席番号（例 "1A,1B,2A,2B"）
	// 空の場合は Capacity 分の連番座席を生成する
	SeatLayout string
	Capacity   int
}

// ScheduleTrip は座席マップを初期化した運行便を作成する
func (s *TripService) ScheduleTrip(ctx context.Context, input ScheduleTripInput) (*trip.Trip, error) {
	t := trip.NewTrip(input.BusNumber, input.Origin, input.Destination, input.DepartureAt, input.ArrivalAt, input.Fare)

	var layout []string
	if input.SeatLayout != "" {
		layout = strings.Split(input.SeatLayout, ",")
	}
	t.InitializeSeats(layout, input.Capacity)

	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.tripRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("運行便の作成に失敗: %w", err)
	}

	logger.Info("運行便を作成しました",
		zap.String("trip_id", t.ID),
		zap.String("bus_number", t.BusNumber),
		zap.Int("seats", len(t.SeatStatuses)),
	)
	return t, nil
}

// GetTrip はIDから運行便を取得する
func (s *TripService) GetTrip(ctx context.Context, id string) (*trip.Trip, error) {
	return s.tripRepo.GetByID(ctx, id)
}

// ListTrips は運行便の一覧を取得する
func (s *TripService) ListTrips(ctx context.Context, limit, offset int) ([]*trip.Trip, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.tripRepo.List(ctx, limit, offset)
}

// SearchTrips は出発地・到着地・出発日で空席のある運行便を検索する
func (s *TripService) SearchTrips(ctx context.Context, origin, destination string, date time.Time) ([]*trip.Trip, error) {
	return s.tripRepo.Search(ctx, origin, destination, date)
}

// LockSeats は指定座席を一括で確保する
// 全席確保できた場合のみ状態を変更し、1席でも競合すれば何も変更しない
func (s *TripService) LockSeats(ctx context.Context, tripID string, seatNumbers []string, userID string) (*trip.Trip, error) {
	if len(seatNumbers) == 0 {
		return nil, trip.ErrSeatNumbersRequired
	}

	// 分散ロックでトリップ単位の排他区間に入る
	unlock, err := acquireTripLock(ctx, s.lockManager, tripID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	t, err := s.tripRepo.GetByIDForUpdate(ctx, tx, tripID)
	if err != nil {
		return nil, err
	}

	if err := t.LockSeats(seatNumbers); err != nil {
		var seatErr *trip.SeatUnavailableError
		if errors.As(err, &seatErr) {
			s.countSeatLock("seat_conflict")
		}
		return nil, err
	}

	if err := s.tripRepo.Update(ctx, tx, t); err != nil {
		s.countSeatLock("error")
		return nil, fmt.Errorf("座席状態の保存に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.countSeatLock("error")
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.invalidateCache(ctx, tripID)
	s.countSeatLock("success")

	logger.Info("座席を確保しました",
		zap.String("trip_id", tripID),
		zap.String("user_id", userID),
		zap.Strings("seats", seatNumbers),
		zap.Int("available_seats", t.AvailableSeats),
	)
	return t, nil
}

// CountAvailableSeats は運行便の空席数を返す（キャッシュ優先）
func (s *TripService) CountAvailableSeats(ctx context.Context, tripID string) (int, error) {
	if s.cache != nil {
		count, err := s.cache.GetAvailableCount(ctx, tripID)
		if err == nil {
			return count, nil
		}
		if !errors.Is(err, rediscache.ErrCacheMiss) {
			logger.Warn("空席数キャッシュの取得に失敗", zap.Error(err))
		}
	}

	t, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetAvailableCount(ctx, tripID, t.AvailableSeats, availableCountCacheTTL); err != nil {
			logger.Warn("空席数キャッシュの保存に失敗", zap.Error(err))
		}
	}
	return t.AvailableSeats, nil
}

func (s *TripService) invalidateCache(ctx context.Context, tripID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tripID); err != nil {
		logger.Warn("空席数キャッシュの無効化に失敗", zap.String("trip_id", tripID), zap.Error(err))
	}
}

func (s *TripService) countSeatLock(status string) {
	if m := metrics.Get(); m != nil {
		m.SeatLocksTotal.WithLabelValues(status).Inc()
	}
}
