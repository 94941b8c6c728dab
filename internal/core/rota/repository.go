package rota

import (
	"context"
	"time"
)

// Repository は週次ロタとシフトの永続化の抽象です。
type Repository interface {
	FindWeek(ctx context.Context, weekStart time.Time, scope Scope) (*Week, error)
	SaveWeek(ctx context.Context, week *Week) (*Week, error)

	UpsertShift(ctx context.Context, shift *Shift) (*Shift, error)
	DeleteShift(ctx context.Context, id string) error
	FindShiftByID(ctx context.Context, id string) (*Shift, error)
	ListShiftsByWeek(ctx context.Context, weekStart time.Time, scope Scope) ([]*Shift, error)
	ListShiftsOnDate(ctx context.Context, date time.Time) ([]*Shift, error)
}
