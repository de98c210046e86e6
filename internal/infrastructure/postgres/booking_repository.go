package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nikhilllyadav/SpringBus/internal/domain/booking"
	"github.com/nikhilllyadav/SpringBus/internal/domain/transaction"
)

type bookingRow struct {
	ID         string    `db:"id"`
	TripID     string    `db:"trip_id"`
	UserID     string    `db:"user_id"`
	TotalFare  int       `db:"total_fare"`
	Status     string    `db:"status"`
	PaymentRef *string   `db:"payment_ref"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type passengerRow struct {
	Position   int    `db:"position"`
	SeatNumber string `db:"seat_number"`
	Name       string `db:"name"`
	Age        int    `db:"age"`
	Gender     string `db:"gender"`
}

func (r *bookingRow) toEntity(passengers []passengerRow) *booking.Booking {
	ps := make([]booking.Passenger, len(passengers))
	for i, p := range passengers {
		ps[i] = booking.Passenger{
			Name: p.Name, Age: p.Age, Gender: p.Gender, SeatNumber: p.SeatNumber,
		}
	}
	return &booking.Booking{
		ID: r.ID, TripID: r.TripID, UserID: r.UserID,
		Passengers: ps, TotalFare: r.TotalFare,
		Status: booking.Status(r.Status), PaymentRef: r.PaymentRef,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

const bookingColumns = `id, trip_id, user_id, total_fare, status, payment_ref, created_at, updated_at`

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository { return &BookingRepository{db: db} }

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが不正です")
	}

	query := `INSERT INTO bookings (trip_id, user_id, total_fare, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query,
		b.TripID, b.UserID, b.TotalFare, string(b.Status), b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID); err != nil {
		return fmt.Errorf("予約作成に失敗: %w", err)
	}

	// 乗客を割り当て順で保持するマルチバリューINSERT
	insert := `INSERT INTO booking_passengers (booking_id, position, seat_number, name, age, gender) VALUES `
	args := make([]interface{}, 0, len(b.Passengers)*6)
	placeholders := make([]string, 0, len(b.Passengers))
	for i, p := range b.Passengers {
		base := i * 6
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, b.ID, i, p.SeatNumber, p.Name, p.Age, p.Gender)
	}
	insert += strings.Join(placeholders, ", ")

	if _, err := sqlxTx.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("乗客情報作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}

	passengers, err := r.getPassengers(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.toEntity(passengers), nil
}

// GetByIDForUpdate は予約を行ロック付きで読み込む
// 乗客は予約作成後に変化しないためロックは予約行のみ
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, errors.New("トランザクションが不正です")
	}

	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	if err := sqlxTx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}

	var passengers []passengerRow
	passengerQuery := `SELECT position, seat_number, name, age, gender FROM booking_passengers WHERE booking_id = $1 ORDER BY position`
	if err := sqlxTx.SelectContext(ctx, &passengers, passengerQuery, id); err != nil {
		return nil, fmt.Errorf("乗客情報取得に失敗: %w", err)
	}
	return row.toEntity(passengers), nil
}

func (r *BookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return r.attachPassengers(ctx, rows)
}

func (r *BookingRepository) List(ctx context.Context, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return r.attachPassengers(ctx, rows)
}

func (r *BookingRepository) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが不正です")
	}

	query := `UPDATE bookings SET status = $1, payment_ref = $2, updated_at = NOW() WHERE id = $3`
	result, err := sqlxTx.ExecContext(ctx, query, string(b.Status), b.PaymentRef, b.ID)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}

// UpdateStatus は保留中の予約の状態だけをトランザクション外で更新する
// リーパーのベストエフォートなフォールバック用
// 既に終端状態へ遷移済みの予約は上書きせず、何もしない
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status booking.Status) error {
	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	// 0行更新は別経路で遷移済みか予約が存在しないかのいずれかで、どちらも無視してよい
	if _, err := r.db.ExecContext(ctx, query, string(status), id, string(booking.StatusPending)); err != nil {
		return fmt.Errorf("予約状態更新に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = $1 AND created_at < $2 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, string(booking.StatusPending), cutoff); err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	return r.attachPassengers(ctx, rows)
}

func (r *BookingRepository) getPassengers(ctx context.Context, bookingID string) ([]passengerRow, error) {
	var passengers []passengerRow
	query := `SELECT position, seat_number, name, age, gender FROM booking_passengers WHERE booking_id = $1 ORDER BY position`
	if err := r.db.SelectContext(ctx, &passengers, query, bookingID); err != nil {
		return nil, fmt.Errorf("乗客情報取得に失敗: %w", err)
	}
	return passengers, nil
}

func (r *BookingRepository) attachPassengers(ctx context.Context, rows []bookingRow) ([]*booking.Booking, error) {
	bookings := make([]*booking.Booking, 0, len(rows))
	for _, row := range rows {
		passengers, err := r.getPassengers(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, row.toEntity(passengers))
	}
	return bookings, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
