package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound         = errors.New("予約が見つかりません")
	ErrBookingNotPending       = errors.New("予約は保留中ではありません")
	ErrBookingAlreadyConfirmed = errors.New("予約は既に確定されています")
	ErrBookingAccessDenied     = errors.New("この予約へのアクセス権がありません")
	ErrTripIDRequired          = errors.New("運行便IDは必須です")
	ErrUserIDRequired          = errors.New("ユーザーIDは必須です")
	ErrPassengersRequired      = errors.New("乗客情報は必須です")
	ErrPassengerNameRequired   = errors.New("乗客名は必須です")
	ErrSeatNumberRequired      = errors.New("座席番号は必須です")
	ErrDuplicateSeatNumber     = errors.New("同じ座席番号が重複しています")
	ErrPassengerSeatMismatch   = errors.New("乗客数と座席数が一致していません")
)
