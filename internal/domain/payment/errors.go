package payment

import "errors"

// Payment ドメインのエラー定義
var (
	ErrIntentCreationFailed = errors.New("決済意図の作成に失敗しました")
	ErrUnknownEventType     = errors.New("未知のWebhookイベント種別です")
)
