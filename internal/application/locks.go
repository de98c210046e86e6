package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	rediscache "github.com/nikhilllyadav/SpringBus/internal/infrastructure/redis"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/logger"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/metrics"
)

// 分散ロックの既定パラメータ
// TTLは座席マップ変更の所要時間に対する上限であり、決済の往復時間とは無関係
const (
	tripLockTTL        = 10 * time.Second
	tripLockMaxRetries = 3
	tripLockRetryDelay = 100 * time.Millisecond
)

// acquireTripLock は運行便単位の分散ロックを取得し、解放関数を返す
// lm が nil の場合はDBの行ロックのみに頼る（解放は no-op）
func acquireTripLock(ctx context.Context, lm *rediscache.LockManager, tripID string) (func(), error) {
	if lm == nil {
		return func() {}, nil
	}

	start := time.Now()
	lock, err := lm.AcquireTripLockWithRetry(ctx, tripID, tripLockTTL, tripLockMaxRetries, tripLockRetryDelay)
	if err != nil {
		observeLock("acquire", "failed", time.Since(start))
		if errors.Is(err, rediscache.ErrLockNotAcquired) {
			return nil, fmt.Errorf("他の処理が運行便を更新中です: %w", err)
		}
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	observeLock("acquire", "success", time.Since(start))

	return func() {
		// 呼び出し元のコンテキストがキャンセル済みでも解放は試みる
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("ロック解放に失敗", zap.String("trip_id", tripID), zap.Error(err))
		}
	}, nil
}

func observeLock(operation, status string, d time.Duration) {
	if m := metrics.Get(); m != nil {
		m.DistributedLockDuration.WithLabelValues(operation, status).Observe(d.Seconds())
	}
}
