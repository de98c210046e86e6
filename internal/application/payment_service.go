package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nikhilllyadav/SpringBus/internal/domain/booking"
	"github.com/nikhilllyadav/SpringBus/internal/domain/payment"
	"github.com/nikhilllyadav/SpringBus/internal/domain/transaction"
	"github.com/nikhilllyadav/SpringBus/internal/domain/trip"
	"github.com/nikhilllyadav/SpringBus/internal/infrastructure/queue"
	rediscache "github.com/nikhilllyadav/SpringBus/internal/infrastructure/redis"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/logger"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/metrics"
)

// ConfirmationNotifier は予約確定イベントの通知先
type ConfirmationNotifier interface {
	Publish(ctx context.Context, event queue.BookingConfirmedEvent) error
}

// PaymentService は決済意図の作成とWebhookイベントの突き合わせを行う
type PaymentService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	tripRepo    trip.Repository
	gateway     payment.Gateway
	lockManager *rediscache.LockManager
	cache       *rediscache.AvailabilityCache
	notifier    ConfirmationNotifier
}

// NewPaymentService は新しいPaymentServiceインスタンスを作成する
// notifier は nil 可（通知なしで動作する）
func NewPaymentService(tm transaction.Manager, br booking.Repository, tr trip.Repository, gw payment.Gateway, lm *rediscache.LockManager, cache *rediscache.AvailabilityCache, notifier ConfirmationNotifier) *PaymentService {
	return &PaymentService{
		txManager:   tm,
		bookingRepo: br,
		tripRepo:    tr,
		gateway:     gw,
		lockManager: lm,
		cache:       cache,
		notifier:    notifier,
	}
}

// CreatePaymentIntent は保留中の予約に対する決済意図を作成する
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, bookingID, userID string) (*payment.Intent, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, booking.ErrBookingAccessDenied
	}
	if !b.IsPending() {
		return nil, booking.ErrBookingNotPending
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.CreateIntentInput{
		BookingID: b.ID,
		UserID:    b.UserID,
		Amount:    expectedAmount(b),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("決済意図を作成しました",
		zap.String("booking_id", b.ID),
		zap.String("payment_ref", intent.Ref),
		zap.Int64("amount", intent.Amount),
	)
	return intent, nil
}

// HandlePaymentSucceeded は決済成功イベントを予約に適用する
// 重複・手遅れのイベントはエラーにせず無視する（Webhookの再送に対して冪等）
func (s *PaymentService) HandlePaymentSucceeded(ctx context.Context, ev payment.Event) error {
	b, err := s.bookingRepo.GetByID(ctx, ev.BookingID)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}

	if b.Status == booking.StatusConfirmed {
		logger.Info("確定済み予約への重複イベントを無視します",
			zap.String("booking_id", b.ID),
			zap.String("payment_ref", ev.PaymentRef),
		)
		s.countWebhook(ev.Type, "duplicate")
		return nil
	}
	if !b.IsPending() {
		// リーパーに先を越された等。返金はオペレーション対応とする
		logger.Warn("保留中でない予約への成功イベントを無視します",
			zap.String("booking_id", b.ID),
			zap.String("status", string(b.Status)),
			zap.String("payment_ref", ev.PaymentRef),
		)
		s.countWebhook(ev.Type, "stale")
		return nil
	}

	// 金額不一致は記録するが確定処理は続行する
	if expected := expectedAmount(b); ev.Amount != 0 && ev.Amount != expected {
		logger.Warn("決済金額が予約金額と一致しません",
			zap.String("booking_id", b.ID),
			zap.Int64("expected", expected),
			zap.Int64("actual", ev.Amount),
		)
	}

	unlock, err := acquireTripLock(ctx, s.lockManager, b.TripID)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}
	defer unlock()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	t, err := s.tripRepo.GetByIDForUpdate(ctx, tx, b.TripID)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}

	// 排他区間の外で読んだスナップショットは古い可能性があるため読み直す
	// リーパーが先に FAILED へ遷移させていた場合、終端状態は上書きしない
	b, err = s.bookingRepo.GetByIDForUpdate(ctx, tx, ev.BookingID)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}
	if b.Status == booking.StatusConfirmed {
		s.countWebhook(ev.Type, "duplicate")
		return nil
	}
	if !b.IsPending() {
		logger.Warn("排他区間内で保留中でなくなった予約への成功イベントを無視します",
			zap.String("booking_id", b.ID),
			zap.String("status", string(b.Status)),
			zap.String("payment_ref", ev.PaymentRef),
		)
		s.countWebhook(ev.Type, "stale")
		return nil
	}

	if err := b.Confirm(); err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}
	ref := ev.PaymentRef
	b.PaymentRef = &ref

	confirmed, anomalies := t.ConfirmSeats(b.SeatNumbers())
	if len(anomalies) > 0 {
		// LOCKED以外の座席は触らない
		logger.Warn("確定対象外の座席をスキップしました",
			zap.String("booking_id", b.ID),
			zap.String("trip_id", b.TripID),
			zap.Any("anomalies", anomalies),
		)
	}

	if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
		s.countWebhook(ev.Type, "error")
		return fmt.Errorf("予約状態の保存に失敗: %w", err)
	}
	if err := s.tripRepo.Update(ctx, tx, t); err != nil {
		s.countWebhook(ev.Type, "error")
		return fmt.Errorf("座席状態の保存に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.countWebhook(ev.Type, "error")
		return fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countWebhook(ev.Type, "applied")
	logger.Info("予約を確定しました",
		zap.String("booking_id", b.ID),
		zap.String("trip_id", b.TripID),
		zap.Strings("confirmed_seats", confirmed),
		zap.String("payment_ref", ev.PaymentRef),
	)

	s.notifyConfirmed(ctx, b)
	return nil
}

// HandlePaymentFailed は決済失敗イベントを予約に適用し、座席を解放する
func (s *PaymentService) HandlePaymentFailed(ctx context.Context, ev payment.Event) error {
	b, err := s.bookingRepo.GetByID(ctx, ev.BookingID)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}

	if !b.IsPending() {
		logger.Info("保留中でない予約への失敗イベントを無視します",
			zap.String("booking_id", b.ID),
			zap.String("status", string(b.Status)),
		)
		s.countWebhook(ev.Type, "stale")
		return nil
	}

	unlock, err := acquireTripLock(ctx, s.lockManager, b.TripID)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}
	defer unlock()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	t, err := s.tripRepo.GetByIDForUpdate(ctx, tx, b.TripID)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}

	// 排他区間の外で読んだスナップショットは古い可能性があるため読み直す
	// 確定済み・失効済みの予約は上書きしない
	b, err = s.bookingRepo.GetByIDForUpdate(ctx, tx, ev.BookingID)
	if err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}
	if !b.IsPending() {
		logger.Info("排他区間内で保留中でなくなった予約への失敗イベントを無視します",
			zap.String("booking_id", b.ID),
			zap.String("status", string(b.Status)),
		)
		s.countWebhook(ev.Type, "stale")
		return nil
	}

	if err := b.Fail(); err != nil {
		s.countWebhook(ev.Type, "error")
		return err
	}
	ref := ev.PaymentRef
	b.PaymentRef = &ref

	released, anomalies := t.ReleaseSeats(b.SeatNumbers())
	if len(anomalies) > 0 {
		logger.Warn("解放対象外の座席をスキップしました",
			zap.String("booking_id", b.ID),
			zap.String("trip_id", b.TripID),
			zap.Any("anomalies", anomalies),
		)
	}

	if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
		s.countWebhook(ev.Type, "error")
		return fmt.Errorf("予約状態の保存に失敗: %w", err)
	}
	if err := s.tripRepo.Update(ctx, tx, t); err != nil {
		s.countWebhook(ev.Type, "error")
		return fmt.Errorf("座席状態の保存に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.countWebhook(ev.Type, "error")
		return fmt.Errorf("コミットに失敗: %w", err)
	}

	if s.cache != nil {
		if cerr := s.cache.Invalidate(ctx, b.TripID); cerr != nil {
			logger.Warn("空席数キャッシュの無効化に失敗", zap.String("trip_id", b.TripID), zap.Error(cerr))
		}
	}

	s.countWebhook(ev.Type, "applied")
	logger.Info("決済失敗により予約を解放しました",
		zap.String("booking_id", b.ID),
		zap.String("trip_id", b.TripID),
		zap.Strings("released_seats", released),
	)
	return nil
}

// HandleEvent はイベント種別に応じたハンドラへ振り分ける
func (s *PaymentService) HandleEvent(ctx context.Context, ev payment.Event) error {
	switch ev.Type {
	case payment.EventTypeSucceeded:
		return s.HandlePaymentSucceeded(ctx, ev)
	case payment.EventTypeFailed:
		return s.HandlePaymentFailed(ctx, ev)
	default:
		s.countWebhook(ev.Type, "ignored")
		return payment.ErrUnknownEventType
	}
}

// notifyConfirmed は確定通知を発行する（失敗しても確定処理には影響しない）
func (s *PaymentService) notifyConfirmed(ctx context.Context, b *booking.Booking) {
	if s.notifier == nil {
		return
	}
	paymentRef := ""
	if b.PaymentRef != nil {
		paymentRef = *b.PaymentRef
	}
	event := queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		TripID:      b.TripID,
		UserID:      b.UserID,
		SeatNumbers: b.SeatNumbers(),
		TotalFare:   b.TotalFare,
		PaymentRef:  paymentRef,
		ConfirmedAt: time.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		logger.Error("確定通知の発行に失敗",
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}

// expectedAmount は予約に対する決済金額（最小通貨単位）を返す
func expectedAmount(b *booking.Booking) int64 {
	return int64(b.TotalFare) * 100
}

func (s *PaymentService) countWebhook(eventType, outcome string) {
	if m := metrics.Get(); m != nil {
		m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	}
}
