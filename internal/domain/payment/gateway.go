package payment

import "context"

// Webhookイベントの種別
const (
	EventTypeSucceeded = "payment_intent.succeeded"
	EventTypeFailed    = "payment_intent.payment_failed"
)

// Intent は決済プロバイダー側に作成された決済意図を表す
type Intent struct {
	Ref          string // プロバイダー側の決済参照ID
	ClientSecret string
	Amount       int64 // 最小通貨単位
	Currency     string
}

// CreateIntentInput は決済意図作成の入力
type CreateIntentInput struct {
	BookingID string
	UserID    string
	Amount    int64 // 最小通貨単位
	Currency  string
}

// Gateway は外部決済プロバイダーへのインターフェース
type Gateway interface {
	// CreateIntent は予約に対する決済意図を作成する
	// メタデータに予約IDを含め、Webhookで予約と突き合わせできるようにする
	CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error)
}

// Event は署名検証・パース済みでコアに届くWebhookイベント
// 検証と生ペイロードの解釈はこの層より上流で行われる
type Event struct {
	Type       string
	PaymentRef string
	BookingID  string
	Amount     int64
	Currency   string
}
