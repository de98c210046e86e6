package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// TripLock はトリップ単位の排他区間を表す分散ロック
// 所有者トークンを保持し、自分が取得したロックだけを解放できる
type TripLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// LockManager はトリップ単位の分散ロックを管理する
// ロックは座席マップ変更の間だけ保持し、外部決済の往復をまたいで保持してはならない
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireTripLock は運行便IDに対する排他ロックを取得する
func (m *LockManager) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (*TripLock, error) {
	lockKey := fmt.Sprintf("lock:trip:%s", tripID)
	lockValue := uuid.New().String()

	// SetNX でキーが存在しない場合のみ取得
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &TripLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireTripLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireTripLockWithRetry(ctx context.Context, tripID string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*TripLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireTripLock(ctx, tripID, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する
// Luaスクリプトで所有者確認と削除をアトミックに実行する
func (l *TripLock) Release(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *TripLock) Extend(ctx context.Context, ttl time.Duration) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}
