package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nikhilllyadav/SpringBus/internal/pkg/logger"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/metrics"
)

// BookingReleaser は期限切れ予約を失効させるインターフェース
type BookingReleaser interface {
	ReleaseExpiredBookings(ctx context.Context, olderThan time.Duration) (int, error)
}

// ExpiredBookingReaper は期限切れの保留予約を定期的に失効させるワーカー
type ExpiredBookingReaper struct {
	bookingService BookingReleaser
	interval       time.Duration
	lockExpiry     time.Duration
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewExpiredBookingReaper は新しいリーパーを作成
func NewExpiredBookingReaper(
	bs BookingReleaser,
	interval time.Duration,
	lockExpiry time.Duration,
) *ExpiredBookingReaper {
	return &ExpiredBookingReaper{
		bookingService: bs,
		interval:       interval,
		lockExpiry:     lockExpiry,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start はリーパーを開始
func (r *ExpiredBookingReaper) Start(ctx context.Context) {
	logger.Info("期限切れ予約リーパー開始",
		zap.Duration("interval", r.interval),
		zap.Duration("lock_expiry", r.lockExpiry),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れ予約リーパー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("期限切れ予約リーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// Stop はリーパーを停止
func (r *ExpiredBookingReaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// sweep は期限切れ予約を失効させる
func (r *ExpiredBookingReaper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れ予約のスイープ開始")

	count, err := r.bookingService.ReleaseExpiredBookings(ctx, r.lockExpiry)
	if err != nil {
		log.Error("期限切れ予約のスイープ失敗", zap.Error(err))
		return
	}

	if count > 0 {
		if m := metrics.Get(); m != nil {
			m.ExpiredBookingsReaped.Add(float64(count))
		}
		log.Info("期限切れ予約を失効", zap.Int("count", count))
	} else {
		log.Debug("期限切れ予約なし")
	}
}
