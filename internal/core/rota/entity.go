package rota

import (
	"fmt"
	"time"
)

// Scope はロタと人員配置データのパーティションキーです。
type Scope struct {
	Location   string
	Department string
}

// Empty はスコープが未指定かどうかを返します。
func (s Scope) Empty() bool {
	return s.Location == "" || s.Department == ""
}

// Week はスコープごとの週次ロタの公開状態を保持します。
// 下書き (Draft) の間、従業員はシフト内容を一切観測できません。
type Week struct {
	WeekStart   time.Time
	Scope       Scope
	Published   bool
	PublishedAt *time.Time
	PublishedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Shift は一日分の勤務枠です。StartTime / EndTime は "15:04" 形式の
// 壁時計時刻で、日付と組み合わせて実時刻に解決されます。
type Shift struct {
	ID               string
	WeekStart        time.Time
	Scope            Scope
	Date             time.Time
	StartTime        string
	EndTime          string
	Role             string
	Notes            string
	AssignedWorkerID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StartAt はシフト開始の実時刻を返します。
func (s *Shift) StartAt() (time.Time, error) {
	return TimeOnDate(s.Date, s.StartTime)
}

// EndAt はシフト終了の実時刻を返します。終了が開始より前の場合は夜勤として
// 翌日に繰り越します。
func (s *Shift) EndAt() (time.Time, error) {
	start, err := s.StartAt()
	if err != nil {
		return time.Time{}, err
	}
	end, err := TimeOnDate(s.Date, s.EndTime)
	if err != nil {
		return time.Time{}, err
	}
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return end, nil
}

// WeekStartOf は任意の日時をその週の月曜 0 時 (UTC) に正規化します。
func WeekStartOf(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// DateOf は任意の日時をその日の 0 時 (UTC) に正規化します。
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeOnDate は基準日と "15:04" 形式の時刻文字列を組み合わせます。
func TimeOnDate(date time.Time, value string) (time.Time, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		parsed, err = time.Parse("15:04:05", value)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidShiftTime, value)
	}
	date = date.UTC()
	return time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), parsed.Second(), 0, time.UTC), nil
}
