package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nikhilllyadav/SpringBus/internal/domain/transaction"
	"github.com/nikhilllyadav/SpringBus/internal/domain/trip"
)

type tripRow struct {
	ID             string    `db:"id"`
	BusNumber      string    `db:"bus_number"`
	Origin         string    `db:"origin"`
	Destination    string    `db:"destination"`
	DepartureAt    time.Time `db:"departure_at"`
	ArrivalAt      time.Time `db:"arrival_at"`
	Fare           int       `db:"fare"`
	AvailableSeats int       `db:"available_seats"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	Version        int       `db:"version"`
}

type tripSeatRow struct {
	SeatNumber string `db:"seat_number"`
	Status     string `db:"status"`
}

func (r *tripRow) toEntity(seats []tripSeatRow) *trip.Trip {
	statuses := make(map[string]trip.SeatStatus, len(seats))
	for _, s := range seats {
		statuses[s.SeatNumber] = trip.SeatStatus(s.Status)
	}
	return &trip.Trip{
		ID: r.ID, BusNumber: r.BusNumber,
		Origin: r.Origin, Destination: r.Destination,
		DepartureAt: r.DepartureAt, ArrivalAt: r.ArrivalAt,
		Fare: r.Fare, SeatStatuses: statuses, AvailableSeats: r.AvailableSeats,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

const tripColumns = `id, bus_number, origin, destination, departure_at, arrival_at, fare, available_seats, created_at, updated_at, version`

type TripRepository struct{ db *sqlx.DB }

func NewTripRepository(db *sqlx.DB) *TripRepository { return &TripRepository{db: db} }

func (r *TripRepository) Create(ctx context.Context, t *trip.Trip) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO trips (bus_number, origin, destination, departure_at, arrival_at, fare, available_seats, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if err := tx.QueryRowContext(ctx, query,
		t.BusNumber, t.Origin, t.Destination, t.DepartureAt, t.ArrivalAt,
		t.Fare, t.AvailableSeats, t.CreatedAt, t.UpdatedAt, t.Version,
	).Scan(&t.ID); err != nil {
		return fmt.Errorf("運行便作成に失敗: %w", err)
	}

	if err := upsertSeats(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

func (r *TripRepository) GetByID(ctx context.Context, id string) (*trip.Trip, error) {
	var row tripRow
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, trip.ErrTripNotFound
		}
		return nil, fmt.Errorf("運行便取得に失敗: %w", err)
	}

	var seats []tripSeatRow
	seatQuery := `SELECT seat_number, status FROM trip_seats WHERE trip_id = $1 ORDER BY seat_number`
	if err := r.db.SelectContext(ctx, &seats, seatQuery, id); err != nil {
		return nil, fmt.Errorf("座席マップ取得に失敗: %w", err)
	}
	return row.toEntity(seats), nil
}

// GetByIDForUpdate は運行便と座席マップを行ロック付きで読み込む
// 集約全体をクリティカルセクション本体の実行前に完全に読み込む
func (r *TripRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*trip.Trip, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, errors.New("トランザクションが不正です")
	}

	var row tripRow
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`
	if err := sqlxTx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, trip.ErrTripNotFound
		}
		return nil, fmt.Errorf("運行便取得に失敗: %w", err)
	}

	var seats []tripSeatRow
	seatQuery := `SELECT seat_number, status FROM trip_seats WHERE trip_id = $1 ORDER BY seat_number FOR UPDATE`
	if err := sqlxTx.SelectContext(ctx, &seats, seatQuery, id); err != nil {
		return nil, fmt.Errorf("座席マップ取得に失敗: %w", err)
	}
	return row.toEntity(seats), nil
}

// Update は座席マップと空席数をトランザクション内で永続化する
func (r *TripRepository) Update(ctx context.Context, tx transaction.Tx, t *trip.Trip) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが不正です")
	}

	query := `UPDATE trips SET available_seats = $1, updated_at = NOW(), version = version + 1 WHERE id = $2`
	result, err := sqlxTx.ExecContext(ctx, query, t.AvailableSeats, t.ID)
	if err != nil {
		return fmt.Errorf("運行便更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return trip.ErrTripNotFound
	}

	return upsertSeats(ctx, sqlxTx, t)
}

// upsertSeats は座席マップ全体をマルチバリューUPSERTで書き込む
func upsertSeats(ctx context.Context, tx *sqlx.Tx, t *trip.Trip) error {
	if len(t.SeatStatuses) == 0 {
		return nil
	}

	query := `INSERT INTO trip_seats (trip_id, seat_number, status) VALUES `
	args := make([]interface{}, 0, len(t.SeatStatuses)*3)
	placeholders := make([]string, 0, len(t.SeatStatuses))

	i := 0
	for seatNumber, status := range t.SeatStatuses {
		base := i * 3
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, t.ID, seatNumber, string(status))
		i++
	}

	query += strings.Join(placeholders, ", ")
	query += ` ON CONFLICT (trip_id, seat_number) DO UPDATE SET status = EXCLUDED.status`

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("座席マップ書き込みに失敗: %w", err)
	}
	return nil
}

func (r *TripRepository) List(ctx context.Context, limit, offset int) ([]*trip.Trip, error) {
	var rows []tripRow
	query := `SELECT ` + tripColumns + ` FROM trips ORDER BY departure_at LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("運行便一覧取得に失敗: %w", err)
	}
	return r.attachSeats(ctx, rows)
}

// Search は出発地・到着地・出発日が一致し空席のある運行便を返す
func (r *TripRepository) Search(ctx context.Context, origin, destination string, date time.Time) ([]*trip.Trip, error) {
	var rows []tripRow
	query := `SELECT ` + tripColumns + ` FROM trips
		WHERE origin = $1 AND destination = $2 AND departure_at::date = $3::date AND available_seats > 0
		ORDER BY departure_at`
	if err := r.db.SelectContext(ctx, &rows, query, origin, destination, date); err != nil {
		return nil, fmt.Errorf("運行便検索に失敗: %w", err)
	}
	return r.attachSeats(ctx, rows)
}

func (r *TripRepository) attachSeats(ctx context.Context, rows []tripRow) ([]*trip.Trip, error) {
	trips := make([]*trip.Trip, 0, len(rows))
	for _, row := range rows {
		var seats []tripSeatRow
		seatQuery := `SELECT seat_number, status FROM trip_seats WHERE trip_id = $1 ORDER BY seat_number`
		if err := r.db.SelectContext(ctx, &seats, seatQuery, row.ID); err != nil {
			return nil, fmt.Errorf("座席マップ取得に失敗: %w", err)
		}
		trips = append(trips, row.toEntity(seats))
	}
	return trips, nil
}

var _ trip.Repository = (*TripRepository)(nil)
