package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/audit"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/rota"
)

// DispatchWindow はリマインダーが予定時刻を過ぎてから送信されうる上限です。
// ティックがこれより遅れて到達した場合、そのリマインダーは恒久的にスキップ
// され、後追いで送信されることはありません。
const DispatchWindow = 5 * time.Minute

// sendTimeout は一回の送信に許す上限時間です。タイムアウトは送信失敗と
// 同じ扱いで、台帳には何も書かれず、ウィンドウ内の次のティックで再試行されます。
const sendTimeout = 10 * time.Second

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// RotaSource はスケジューラが参照するロタの読み取り面です。
type RotaSource interface {
	ListShiftsOnDate(ctx context.Context, date time.Time) ([]*rota.Shift, error)
	FindWeek(ctx context.Context, weekStart time.Time, scope rota.Scope) (*rota.Week, error)
}

// Scheduler は当日のシフトを走査し、期限の来たリマインダーを一度だけ
// 送信します。(シフト, 種別) の組ごとに、ウィンドウ内にいる間は高々一回ずつ
// 試行され、台帳には生涯で高々一件だけ記録されます。
type Scheduler struct {
	rota      RotaSource
	ledger    Ledger
	notifier  Notifier
	provider  ConfigProvider
	directory Directory
	clock     Clock
	audit     audit.Sink
	logger    *log.Logger
}

// NewScheduler は Scheduler を生成します。
func NewScheduler(rotaSource RotaSource, ledger Ledger, notifier Notifier, provider ConfigProvider, directory Directory, clock Clock, sink audit.Sink, logger *log.Logger) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		rota:      rotaSource,
		ledger:    ledger,
		notifier:  notifier,
		provider:  provider,
		directory: directory,
		clock:     clock,
		audit:     sink,
		logger:    logger,
	}
}

// TickStats は一回のティックの結果です。
type TickStats struct {
	Scanned int
	Sent    int
	Skipped int
	Failed  int
}

// Tick は一回分の走査と送信を行います。送信失敗はリクエスト起因の障害では
// ないためエラーとしては伝播させず、ログと統計に残してウィンドウ内での
// 再試行に委ねます。
func (s *Scheduler) Tick(ctx context.Context) (TickStats, error) {
	var stats TickStats

	cfg, err := s.provider.SchedulerConfig(ctx)
	if err != nil {
		return stats, fmt.Errorf("reminder: load scheduler config: %w", err)
	}
	if !cfg.Enabled {
		return stats, nil
	}

	now := s.clock.Now()
	today := rota.DateOf(now)

	shifts, err := s.rota.ListShiftsOnDate(ctx, today)
	if err != nil {
		return stats, fmt.Errorf("reminder: list shifts for %s: %w", today.Format("2006-01-02"), err)
	}

	// 夜勤の退勤予定時刻は日付をまたぐため、前日分のシフトも走査対象に含める。
	yesterday := today.AddDate(0, 0, -1)
	prior, err := s.rota.ListShiftsOnDate(ctx, yesterday)
	if err != nil {
		return stats, fmt.Errorf("reminder: list shifts for %s: %w", yesterday.Format("2006-01-02"), err)
	}
	shifts = append(shifts, prior...)

	weeks := make(map[string]*rota.Week)

	for _, shift := range shifts {
		if shift.AssignedWorkerID == nil {
			continue
		}
		stats.Scanned++

		week, err := s.lookupWeek(ctx, weeks, shift)
		if err != nil {
			s.logger.Printf("reminder: week lookup failed shift=%s: %v", shift.ID, err)
			stats.Failed++
			continue
		}
		if week == nil || !week.Published {
			// 未公開の週のシフトにはリマインダーを出さない。
			stats.Skipped++
			continue
		}

		for _, kind := range Kinds {
			s.dispatch(ctx, cfg, shift, kind, now, &stats)
		}
	}

	return stats, nil
}

func (s *Scheduler) dispatch(ctx context.Context, cfg Config, shift *rota.Shift, kind Kind, now time.Time, stats *TickStats) {
	anchor, err := anchorFor(shift, kind)
	if err != nil {
		s.logger.Printf("reminder: invalid shift times shift=%s kind=%s: %v", shift.ID, kind, err)
		stats.Failed++
		return
	}

	scheduledFor := anchor.Add(-cfg.Lead(kind))
	late := now.Sub(scheduledFor)
	if late < 0 {
		return
	}

	existing, err := s.ledger.Find(ctx, shift.ID, kind)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		s.logger.Printf("reminder: ledger lookup failed shift=%s kind=%s: %v", shift.ID, kind, err)
		stats.Failed++
		return
	}
	if existing != nil {
		stats.Skipped++
		return
	}

	if late > DispatchWindow {
		// ウィンドウを過ぎた未送信リマインダーは恒久的に破棄される。痕跡は
		// このログだけなので、運用上の判断材料として必ず残す。
		s.logger.Printf("reminder: window elapsed, permanently skipping shift=%s kind=%s scheduled_for=%s late=%s",
			shift.ID, kind, scheduledFor.Format(time.RFC3339), late)
		stats.Skipped++
		return
	}

	to, err := s.directory.EmailForWorker(ctx, *shift.AssignedWorkerID)
	if err != nil {
		s.logger.Printf("reminder: worker lookup failed shift=%s worker=%s: %v", shift.ID, *shift.AssignedWorkerID, err)
		stats.Failed++
		return
	}

	subject, body := composeMessage(shift, kind, anchor)

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err = s.notifier.Send(sendCtx, to, subject, body)
	cancel()
	if err != nil {
		// 台帳には書かない。ウィンドウが残っていれば次のティックで再試行される。
		s.logger.Printf("reminder: send failed shift=%s kind=%s to=%s: %v", shift.ID, kind, to, err)
		stats.Failed++
		return
	}

	record := &Record{
		ID:           uuid.NewString(),
		ShiftID:      shift.ID,
		Kind:         kind,
		ScheduledFor: scheduledFor,
		SentAt:       now,
	}
	if _, err := s.ledger.Create(ctx, record); err != nil {
		if errors.Is(err, ErrAlreadyRecorded) {
			stats.Skipped++
			return
		}
		s.logger.Printf("reminder: ledger write failed shift=%s kind=%s: %v", shift.ID, kind, err)
		stats.Failed++
		return
	}

	stats.Sent++
	_ = s.audit.Record(ctx, audit.Event{
		ActorID:    "scheduler",
		Action:     audit.ActionReminderSent,
		EntityType: "shift",
		EntityID:   shift.ID,
		Metadata: map[string]string{
			"kind":      string(kind),
			"worker_id": *shift.AssignedWorkerID,
		},
		Timestamp: now,
	})
}

func (s *Scheduler) lookupWeek(ctx context.Context, cache map[string]*rota.Week, shift *rota.Shift) (*rota.Week, error) {
	key := shift.WeekStart.Format("2006-01-02") + "/" + shift.Scope.Location + "/" + shift.Scope.Department
	if week, ok := cache[key]; ok {
		return week, nil
	}

	week, err := s.rota.FindWeek(ctx, shift.WeekStart, shift.Scope)
	if err != nil {
		if errors.Is(err, rota.ErrWeekNotFound) {
			cache[key] = nil
			return nil, nil
		}
		return nil, err
	}

	cache[key] = week
	return week, nil
}

func anchorFor(shift *rota.Shift, kind Kind) (time.Time, error) {
	if kind == KindCheckOut {
		return shift.EndAt()
	}
	return shift.StartAt()
}

func composeMessage(shift *rota.Shift, kind Kind, anchor time.Time) (subject, body string) {
	when := anchor.Format("15:04")
	date := shift.Date.Format("Mon 2 Jan")

	switch kind {
	case KindCheckOut:
		subject = fmt.Sprintf("Reminder: clock out at %s", when)
		body = fmt.Sprintf("Your %s shift on %s ends at %s. Please remember to clock out.", shift.Role, date, when)
	default:
		subject = fmt.Sprintf("Reminder: shift starts at %s", when)
		body = fmt.Sprintf("Your %s shift on %s starts at %s. Please remember to clock in.", shift.Role, date, when)
	}
	return subject, body
}
