package trip

import (
	"context"
	"time"

	"github.com/nikhilllyadav/SpringBus/internal/domain/transaction"
)

// Repository は運行便リポジトリのインターフェース
type Repository interface {
	// Create は新しい運行便を座席マップごと作成する
	Create(ctx context.Context, t *Trip) error

	// GetByID はIDから運行便を座席マップ込みで取得する
	GetByID(ctx context.Context, id string) (*Trip, error)

	// GetByIDForUpdate は運行便の行ロックを取得した上で座席マップ込みで取得する
	// 座席マップを変更する操作は必ずこちらを使う（トランザクション必須）
	GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Trip, error)

	// Update は座席マップと空席数を永続化する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, t *Trip) error

	// List は運行便の一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Trip, error)

	// Search は出発地・到着地・出発日で空席のある運行便を検索する
	Search(ctx context.Context, origin, destination string, date time.Time) ([]*Trip, error)
}
