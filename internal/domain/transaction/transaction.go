package transaction

import "context"

// Tx はトランザクションを表すインターフェース
// 座席マップの変更とそれに依存する予約状態の書き込みを
// 単一の原子的な単位としてコミットするために使う
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Manager はトランザクションを管理するインターフェース
// アプリケーション層がインフラ層（sqlx等）に依存しないための抽象化
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}
