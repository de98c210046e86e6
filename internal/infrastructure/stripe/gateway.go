// Package stripe はStripe APIによる決済ゲートウェイ実装を提供する
package stripe

import (
	"context"
	"fmt"

	stripelib "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/nikhilllyadav/SpringBus/internal/config"
	"github.com/nikhilllyadav/SpringBus/internal/domain/payment"
)

// Gateway はStripeのPaymentIntentを使う payment.Gateway の実装
type Gateway struct {
	currency string
}

// NewGateway はAPIキーを設定しゲートウェイを生成する
func NewGateway(cfg *config.StripeConfig) *Gateway {
	stripelib.Key = cfg.SecretKey
	return &Gateway{currency: cfg.Currency}
}

// CreateIntent はPaymentIntentを作成する
// メタデータに予約IDとユーザーIDを付与し、Webhook側で照合できるようにする
func (g *Gateway) CreateIntent(ctx context.Context, input payment.CreateIntentInput) (*payment.Intent, error) {
	currency := input.Currency
	if currency == "" {
		currency = g.currency
	}

	params := &stripelib.PaymentIntentParams{
		Amount:   stripelib.Int64(input.Amount),
		Currency: stripelib.String(currency),
		AutomaticPaymentMethods: &stripelib.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripelib.Bool(true),
		},
	}
	params.AddMetadata("booking_id", input.BookingID)
	params.AddMetadata("user_id", input.UserID)
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrIntentCreationFailed, err)
	}

	return &payment.Intent{
		Ref:          pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

var _ payment.Gateway = (*Gateway)(nil)
