// Package queue はRabbitMQへのイベント発行を提供する
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nikhilllyadav/SpringBus/internal/config"
)

// confirmedQueueName は予約確定イベント用のキュー名
const confirmedQueueName = "booking.confirmed"

// BookingConfirmedEvent は予約確定時に発行されるイベント
type BookingConfirmedEvent struct {
	BookingID   string    `json:"booking_id"`
	TripID      string    `json:"trip_id"`
	UserID      string    `json:"user_id"`
	SeatNumbers []string  `json:"seat_numbers"`
	TotalFare   int       `json:"total_fare"`
	PaymentRef  string    `json:"payment_ref"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// ConfirmationPublisher は予約確定イベントをRabbitMQへ発行する
type ConfirmationPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConfirmationPublisher は接続を確立しキューを宣言する
func NewConfirmationPublisher(cfg *config.AMQPConfig) (*ConfirmationPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQへの接続に失敗しました: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("チャネルのオープンに失敗しました: %w", err)
	}

	// durable: ブローカー再起動後もキューが残る
	if _, err := ch.QueueDeclare(
		confirmedQueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("キューの宣言に失敗しました: %w", err)
	}

	return &ConfirmationPublisher{conn: conn, channel: ch}, nil
}

// Publish は予約確定イベントを永続化モードで発行する
func (p *ConfirmationPublisher) Publish(ctx context.Context, event BookingConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗しました: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",                 // デフォルトエクスチェンジ
		confirmedQueueName, // ルーティングキー
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("イベントの発行に失敗しました: %w", err)
	}

	return nil
}

// Close はチャネルと接続を閉じる
func (p *ConfirmationPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
