package booking

import (
	"context"
	"time"

	"github.com/nikhilllyadav/SpringBus/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を乗客情報ごと作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, b *Booking) error

	// GetByID はIDから予約を乗客情報込みで取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByIDForUpdate は予約を行ロック付きで読み込む
	// 排他区間の外で読んだスナップショットの状態判定をやり直すために使う
	GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Booking, error)

	// GetByUserID はユーザーIDから予約一覧を新しい順で取得する
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// List は全予約を新しい順で取得する
	List(ctx context.Context, limit, offset int) ([]*Booking, error)

	// Update は予約の状態と決済参照を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, b *Booking) error

	// UpdateStatus は保留中の予約の状態のみをトランザクション外で更新する
	// 終端状態の予約には作用しない。リーパーのベストエフォートなフォールバック用
	UpdateStatus(ctx context.Context, id string, status Status) error

	// GetPendingCreatedBefore は指定時刻より前に作成された保留中の予約を取得する
	GetPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Booking, error)
}
