package reminder

import "time"

// Kind はリマインダーの種別です。
type Kind string

const (
	KindCheckIn  Kind = "check_in"
	KindCheckOut Kind = "check_out"
)

// Kinds はスケジューラが走査する全種別です。
var Kinds = []Kind{KindCheckIn, KindCheckOut}

// Record は送信済みリマインダーの台帳レコードです。(ShiftID, Kind) に対する
// レコードの存在だけが再送防止の根拠であり、以後の送信結果に関わらず
// 同じ組への再送は行われません。
type Record struct {
	ID           string
	ShiftID      string
	Kind         Kind
	ScheduledFor time.Time
	SentAt       time.Time
}

// Config は設定プロバイダから取得するスケジューラ設定のスナップショットです。
type Config struct {
	Enabled      bool
	CheckInLead  time.Duration
	CheckOutLead time.Duration
	PollInterval time.Duration
}

// Lead は種別に対応する送信リード時間を返します。
func (c Config) Lead(kind Kind) time.Duration {
	if kind == KindCheckOut {
		return c.CheckOutLead
	}
	return c.CheckInLead
}
