package trip

import (
	"strconv"
	"strings"
	"time"
)

// SeatStatus は座席の状態を表す
type SeatStatus string

const (
	SeatAvailable   SeatStatus = "AVAILABLE"
	SeatLocked      SeatStatus = "LOCKED"
	SeatBooked      SeatStatus = "BOOKED"
	SeatUnavailable SeatStatus = "UNAVAILABLE"
)

// Trip は運行便エンティティを表す
// SeatStatuses と AvailableSeats の整合性はトリップ単位の排他区間の中でのみ変更される
type Trip struct {
	ID             string
	BusNumber      string
	Origin         string
	Destination    string
	DepartureAt    time.Time
	ArrivalAt      time.Time
	Fare           int // 1席あたりの運賃
	SeatStatuses   map[string]SeatStatus
	AvailableSeats int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int // 楽観的ロック用
}

// NewTrip は新しい運行便を作成する
func NewTrip(busNumber, origin, destination string, departureAt, arrivalAt time.Time, fare int) *Trip {
	now := time.Now()
	return &Trip{
		BusNumber:    busNumber,
		Origin:       origin,
		Destination:  destination,
		DepartureAt:  departureAt,
		ArrivalAt:    arrivalAt,
		Fare:         fare,
		SeatStatuses: make(map[string]SeatStatus),
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      0,
	}
}

// InitializeSeats は座席マップを初期化する
// layout が空の場合は 1..capacity の連番座席を生成する
func (t *Trip) InitializeSeats(layout []string, capacity int) {
	seats := make(map[string]SeatStatus)
	for _, seatNumber := range layout {
		seatNumber = strings.TrimSpace(seatNumber)
		if seatNumber != "" {
			seats[seatNumber] = SeatAvailable
		}
	}
	if len(seats) == 0 {
		for i := 1; i <= capacity; i++ {
			seats[strconv.Itoa(i)] = SeatAvailable
		}
	}
	t.SeatStatuses = seats
	t.AvailableSeats = len(seats)
}

// LockSeats は指定座席をすべて LOCKED に遷移させる
// 1席でも確保できない座席があれば何も変更せず SeatUnavailableError を返す
func (t *Trip) LockSeats(seatNumbers []string) error {
	if t.SeatStatuses == nil {
		return ErrSeatMapNotInitialized
	}

	var conflicts []SeatConflict
	for _, seatNumber := range seatNumbers {
		status, ok := t.SeatStatuses[seatNumber]
		if !ok {
			conflicts = append(conflicts, SeatConflict{SeatNumber: seatNumber, Status: conflictStatusInvalid})
			continue
		}
		if status != SeatAvailable {
			conflicts = append(conflicts, SeatConflict{SeatNumber: seatNumber, Status: string(status)})
		}
	}
	if len(conflicts) > 0 {
		return &SeatUnavailableError{Conflicts: conflicts}
	}

	for _, seatNumber := range seatNumbers {
		t.SeatStatuses[seatNumber] = SeatLocked
	}
	// 全座席がAVAILABLEと確認済みなので空席数が負になることはない
	// 万一データが壊れていた場合も黙って補正せず、負の値のまま観測可能にする
	t.AvailableSeats -= len(seatNumbers)
	t.UpdatedAt = time.Now()
	return nil
}

// CheckBookable は予約作成時の座席チェックを行う
// AVAILABLE と LOCKED の両方を予約可能として受け入れる
func (t *Trip) CheckBookable(seatNumbers []string) error {
	if t.SeatStatuses == nil {
		return ErrSeatMapNotInitialized
	}

	var conflicts []SeatConflict
	for _, seatNumber := range seatNumbers {
		status, ok := t.SeatStatuses[seatNumber]
		if !ok {
			conflicts = append(conflicts, SeatConflict{SeatNumber: seatNumber, Status: conflictStatusInvalid})
			continue
		}
		if status != SeatAvailable && status != SeatLocked {
			conflicts = append(conflicts, SeatConflict{SeatNumber: seatNumber, Status: string(status)})
		}
	}
	if len(conflicts) > 0 {
		return &SeatUnavailableError{Conflicts: conflicts}
	}
	return nil
}

// ConfirmSeats は LOCKED の座席を BOOKED に遷移させる
// LOCKED 以外の座席は変更せず異常として返す（空席数はロック時に減算済みのため不変）
func (t *Trip) ConfirmSeats(seatNumbers []string) (updated []string, anomalies []SeatConflict) {
	for _, seatNumber := range seatNumbers {
		status, ok := t.SeatStatuses[seatNumber]
		if ok && status == SeatLocked {
			t.SeatStatuses[seatNumber] = SeatBooked
			updated = append(updated, seatNumber)
			continue
		}
		conflictStatus := conflictStatusInvalid
		if ok {
			conflictStatus = string(status)
		}
		anomalies = append(anomalies, SeatConflict{SeatNumber: seatNumber, Status: conflictStatus})
	}
	if len(updated) > 0 {
		t.UpdatedAt = time.Now()
	}
	return updated, anomalies
}

// ReleaseSeats は LOCKED の座席を AVAILABLE に戻し、解放数だけ空席数を加算する
// LOCKED 以外の座席は変更せず異常として返す
func (t *Trip) ReleaseSeats(seatNumbers []string) (released []string, anomalies []SeatConflict) {
	for _, seatNumber := range seatNumbers {
		status, ok := t.SeatStatuses[seatNumber]
		if ok && status == SeatLocked {
			t.SeatStatuses[seatNumber] = SeatAvailable
			released = append(released, seatNumber)
			continue
		}
		conflictStatus := conflictStatusInvalid
		if ok {
			conflictStatus = string(status)
		}
		anomalies = append(anomalies, SeatConflict{SeatNumber: seatNumber, Status: conflictStatus})
	}
	if len(released) > 0 {
		t.AvailableSeats += len(released)
		t.UpdatedAt = time.Now()
	}
	return released, anomalies
}

// CountAvailable は座席マップ上の AVAILABLE 座席数を数える
func (t *Trip) CountAvailable() int {
	count := 0
	for _, status := range t.SeatStatuses {
		if status == SeatAvailable {
			count++
		}
	}
	return count
}

// Validate は運行便の検証を行う
func (t *Trip) Validate() error {
	if t.BusNumber == "" {
		return ErrBusNumberRequired
	}
	if t.Origin == "" {
		return ErrOriginRequired
	}
	if t.Destination == "" {
		return ErrDestinationRequired
	}
	if t.ArrivalAt.Before(t.DepartureAt) {
		return ErrInvalidTripTime
	}
	if t.Fare <= 0 {
		return ErrInvalidFare
	}
	if len(t.SeatStatuses) == 0 {
		return ErrNoSeats
	}
	return nil
}
