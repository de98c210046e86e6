package trip

import (
	"errors"
	"fmt"
	"strings"
)

// Trip ドメインのエラー定義
var (
	ErrTripNotFound          = errors.New("運行便が見つかりません")
	ErrSeatMapNotInitialized = errors.New("座席マップが初期化されていません")
	ErrSeatNumbersRequired   = errors.New("座席番号は必須です")
	ErrBusNumberRequired     = errors.New("バス番号は必須です")
	ErrOriginRequired        = errors.New("出発地は必須です")
	ErrDestinationRequired   = errors.New("到着地は必須です")
	ErrInvalidTripTime       = errors.New("到着時刻は出発時刻より後である必要があります")
	ErrInvalidFare           = errors.New("運賃は1以上である必要があります")
	ErrNoSeats               = errors.New("座席が1つも定義されていません")
)

// 座席マップに存在しない座席番号を表す競合ステータス
const conflictStatusInvalid = "INVALID"

// SeatConflict は確保できなかった座席とその観測ステータスを表す
type SeatConflict struct {
	SeatNumber string
	Status     string
}

func (c SeatConflict) String() string {
	return fmt.Sprintf("%s (%s)", c.SeatNumber, c.Status)
}

// SeatUnavailableError は座席の状態競合を表すエラー
// 競合した全座席と観測ステータスを保持する
type SeatUnavailableError struct {
	Conflicts []SeatConflict
}

func (e *SeatUnavailableError) Error() string {
	details := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		details[i] = c.String()
	}
	return "確保できない座席があります: " + strings.Join(details, ", ")
}
