package audit

import (
	"context"
	"time"
)

// Action は監査対象の操作種別です。
type Action string

const (
	ActionClockIn      Action = "clock_in"
	ActionClockOut     Action = "clock_out"
	ActionBreakStart   Action = "break_start"
	ActionBreakEnd     Action = "break_end"
	ActionRotaPublish  Action = "rota_publish"
	ActionRotaUnpublish Action = "rota_unpublish"
	ActionReminderSent Action = "reminder_sent"
)

// Event は状態遷移ごとに一件発行される不変の監査レコードです。
type Event struct {
	ActorID    string
	Action     Action
	EntityType string
	EntityID   string
	Metadata   map[string]string
	Timestamp  time.Time
}

// Sink は監査レコードの書き込み専用の出力先です。判断には使われません。
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// NopSink は何も記録しない Sink です。
type NopSink struct{}

// Record は何もせず成功します。
func (NopSink) Record(context.Context, Event) error {
	return nil
}
