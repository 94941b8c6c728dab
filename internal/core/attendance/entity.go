package attendance

import "time"

// Status は勤怠エントリの状態を表します。
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Entry は従業員一人の出勤から退勤までの勤怠セッションです。
// End が nil の間は打刻中 (open) であり、従業員ごとに同時に一件しか存在できません。
type Entry struct {
	ID        string
	WorkerID  string
	Start     time.Time
	End       *time.Time
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open はエントリが打刻中かどうかを返します。
func (e *Entry) Open() bool {
	return e.End == nil
}

// BreakInterval はエントリ内の休憩区間です。End が nil の間は休憩中で、
// エントリごとに同時に一件しか存在できません。
type BreakInterval struct {
	ID      string
	EntryID string
	Start   time.Time
	End     *time.Time
}

// Open は休憩が継続中かどうかを返します。
func (b *BreakInterval) Open() bool {
	return b.End == nil
}

// GeoEventKind は位置情報イベントの契機を表します。
type GeoEventKind string

const (
	GeoEventClockIn    GeoEventKind = "clock_in"
	GeoEventClockOut   GeoEventKind = "clock_out"
	GeoEventBreakStart GeoEventKind = "break_start"
	GeoEventBreakEnd   GeoEventKind = "break_end"
)

// Valid はイベント種別が既知の値かどうかを返します。
func (k GeoEventKind) Valid() bool {
	switch k {
	case GeoEventClockIn, GeoEventClockOut, GeoEventBreakStart, GeoEventBreakEnd:
		return true
	default:
		return false
	}
}

// GeoPayload は端末から送られる位置情報です。取得はベストエフォートであり、
// 欠落していても打刻は受理されます。
type GeoPayload struct {
	Lat      float64
	Lon      float64
	Accuracy float64
	DeviceID string
}

// GeoEvent は勤怠遷移ごとに一件追記される位置情報イベントです。作成後は不変です。
type GeoEvent struct {
	ID        string
	EntryID   string
	WorkerID  string
	Kind      GeoEventKind
	Timestamp time.Time
	Lat       float64
	Lon       float64
	Accuracy  float64
	DeviceID  string
}
