package booking

import "time"

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal は終端状態（これ以上遷移しない状態）かを返す
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusFailed
}

// Passenger は予約に紐づく乗客と割り当て座席を表す
type Passenger struct {
	Name       string
	Age        int
	Gender     string
	SeatNumber string
}

// Booking は予約エンティティを表す
// 状態遷移は PENDING → CONFIRMED | FAILED のみで、終端状態からは遷移しない
type Booking struct {
	ID         string
	TripID     string
	UserID     string
	Passengers []Passenger // 座席割り当て順を保持する
	TotalFare  int
	Status     Status
	PaymentRef *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewBooking は新しい予約を PENDING 状態で作成する
// 合計運賃は1席あたり運賃 × 座席数で算出する
func NewBooking(tripID, userID string, passengers []Passenger, farePerSeat int) *Booking {
	now := time.Now()
	return &Booking{
		TripID:     tripID,
		UserID:     userID,
		Passengers: passengers,
		TotalFare:  farePerSeat * len(passengers),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SeatNumbers は予約された座席番号を割り当て順で返す
func (b *Booking) SeatNumbers() []string {
	seats := make([]string, len(b.Passengers))
	for i, p := range b.Passengers {
		seats[i] = p.SeatNumber
	}
	return seats
}

// IsPending は予約が保留中かを返す
func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// Confirm は予約を確定する
func (b *Booking) Confirm() error {
	if b.Status == StatusConfirmed {
		return ErrBookingAlreadyConfirmed
	}
	if b.Status != StatusPending {
		return ErrBookingNotPending
	}
	b.Status = StatusConfirmed
	b.UpdatedAt = time.Now()
	return nil
}

// Fail は予約を失敗状態にする
func (b *Booking) Fail() error {
	if b.Status != StatusPending {
		return ErrBookingNotPending
	}
	b.Status = StatusFailed
	b.UpdatedAt = time.Now()
	return nil
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.TripID == "" {
		return ErrTripIDRequired
	}
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if len(b.Passengers) == 0 {
		return ErrPassengersRequired
	}
	seen := make(map[string]struct{}, len(b.Passengers))
	for _, p := range b.Passengers {
		if p.SeatNumber == "" {
			return ErrSeatNumberRequired
		}
		if p.Name == "" {
			return ErrPassengerNameRequired
		}
		if _, ok := seen[p.SeatNumber]; ok {
			return ErrDuplicateSeatNumber
		}
		seen[p.SeatNumber] = struct{}{}
	}
	return nil
}
