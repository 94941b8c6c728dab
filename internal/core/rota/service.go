package rota

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/audit"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/identity"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Service は週次ロタの公開とシフト編集に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
	audit audit.Sink
}

// UseCase はロタユースケースの公開インターフェースです。
type UseCase interface {
	GetWeek(ctx context.Context, in GetWeekInput) (*Week, error)
	Publish(ctx context.Context, in PublishInput) (*Week, error)
	Unpublish(ctx context.Context, in PublishInput) (*Week, error)
	UpsertShift(ctx context.Context, in UpsertShiftInput) (*Shift, error)
	DeleteShift(ctx context.Context, in DeleteShiftInput) error
	CopyShift(ctx context.Context, in CopyShiftInput) (*Shift, error)
	ListShifts(ctx context.Context, in ListShiftsInput) ([]*Shift, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, sink audit.Sink) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{repo: repo, clock: clock, tx: tx, audit: sink}
}

// GetWeekInput は週取得の入力です。
type GetWeekInput struct {
	WeekStart time.Time
	Scope     Scope
}

// PublishInput は週の公開・非公開の入力です。
type PublishInput struct {
	WeekStart time.Time
	Scope     Scope
	Actor     identity.Principal
}

// UpsertShiftInput はシフト作成・更新の入力です。ID が空の場合は新規作成です。
type UpsertShiftInput struct {
	ID               string
	Scope            Scope
	Date             time.Time
	StartTime        string
	EndTime          string
	Role             string
	Notes            string
	AssignedWorkerID *string
	Actor            identity.Principal
}

// DeleteShiftInput はシフト削除の入力です。
type DeleteShiftInput struct {
	ShiftID string
	Actor   identity.Principal
}

// CopyShiftInput はシフト複製の入力です。Scope が nil の場合は元のスコープを
// 引き継ぎます。担当者の割り当てとリマインダー履歴は複製されません。
type CopyShiftInput struct {
	ShiftID string
	NewDate time.Time
	Scope   *Scope
	Actor   identity.Principal
}

// ListShiftsInput はシフト一覧取得の入力です。
type ListShiftsInput struct {
	WeekStart time.Time
	Scope     Scope
	Viewer    identity.Principal
}

// GetWeek は週の公開状態を返します。未作成の週は下書きとして扱います。
func (s *Service) GetWeek(ctx context.Context, in GetWeekInput) (*Week, error) {
	if in.Scope.Empty() {
		return nil, ErrInvalidScope
	}
	weekStart, err := normalizeWeekStart(in.WeekStart)
	if err != nil {
		return nil, err
	}

	var week *Week
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindWeek(txCtx, weekStart, in.Scope)
		if err != nil {
			if errors.Is(err, ErrWeekNotFound) {
				found = &Week{WeekStart: weekStart, Scope: in.Scope}
			} else {
				return err
			}
		}
		week = found
		return nil
	}); err != nil {
		return nil, err
	}

	return week, nil
}

// Publish は週を公開状態に遷移させます。
func (s *Service) Publish(ctx context.Context, in PublishInput) (*Week, error) {
	return s.setPublished(ctx, in, true)
}

// Unpublish は週を下書きに戻します。
func (s *Service) Unpublish(ctx context.Context, in PublishInput) (*Week, error) {
	return s.setPublished(ctx, in, false)
}

func (s *Service) setPublished(ctx context.Context, in PublishInput, published bool) (*Week, error) {
	if in.Scope.Empty() {
		return nil, ErrInvalidScope
	}
	if !in.Actor.Role.Privileged() {
		return nil, ErrForbidden
	}
	weekStart, err := normalizeWeekStart(in.WeekStart)
	if err != nil {
		return nil, err
	}

	var saved *Week
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()

		week, err := s.repo.FindWeek(txCtx, weekStart, in.Scope)
		if err != nil {
			if !errors.Is(err, ErrWeekNotFound) {
				return err
			}
			week = &Week{WeekStart: weekStart, Scope: in.Scope, CreatedAt: now}
		}

		week.Published = published
		week.UpdatedAt = now
		if published {
			publishedAt := now
			week.PublishedAt = &publishedAt
			week.PublishedBy = in.Actor.WorkerID
		} else {
			week.PublishedAt = nil
			week.PublishedBy = ""
		}

		result, err := s.repo.SaveWeek(txCtx, week)
		if err != nil {
			return err
		}
		saved = result
		return nil
	}); err != nil {
		return nil, err
	}

	action := audit.ActionRotaPublish
	if !published {
		action = audit.ActionRotaUnpublish
	}
	s.recordAudit(ctx, in.Actor.WorkerID, action, weekKey(saved), map[string]string{
		"location":   saved.Scope.Location,
		"department": saved.Scope.Department,
	})
	return saved, nil
}

// UpsertShift はシフトを作成または更新します。週の行が無ければ下書きとして
// 遅延作成されるため、下書き開始に専用の操作は不要です。
func (s *Service) UpsertShift(ctx context.Context, in UpsertShiftInput) (*Shift, error) {
	if in.Scope.Empty() {
		return nil, ErrInvalidScope
	}
	if !in.Actor.Role.Privileged() {
		return nil, ErrForbidden
	}

	date := DateOf(in.Date)
	if date.IsZero() {
		return nil, ErrInvalidShiftDate
	}
	weekStart := WeekStartOf(date)

	if _, err := TimeOnDate(date, in.StartTime); err != nil {
		return nil, err
	}
	if _, err := TimeOnDate(date, in.EndTime); err != nil {
		return nil, err
	}

	var saved *Shift
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()

		if err := s.ensureWeek(txCtx, weekStart, in.Scope, now); err != nil {
			return err
		}

		shift := &Shift{
			ID:               strings.TrimSpace(in.ID),
			WeekStart:        weekStart,
			Scope:            in.Scope,
			Date:             date,
			StartTime:        in.StartTime,
			EndTime:          in.EndTime,
			Role:             in.Role,
			Notes:            in.Notes,
			AssignedWorkerID: in.AssignedWorkerID,
			UpdatedAt:        now,
		}

		if shift.ID == "" {
			shift.ID = uuid.NewString()
			shift.CreatedAt = now
		} else {
			existing, err := s.repo.FindShiftByID(txCtx, shift.ID)
			if err != nil {
				return err
			}
			shift.CreatedAt = existing.CreatedAt
		}

		result, err := s.repo.UpsertShift(txCtx, shift)
		if err != nil {
			return err
		}
		saved = result
		return nil
	}); err != nil {
		return nil, err
	}

	return saved, nil
}

// DeleteShift はシフトを削除します。削除されたシフトのリマインダーは以後
// スキャン対象にならないため、未送信分は送信されません。
func (s *Service) DeleteShift(ctx context.Context, in DeleteShiftInput) error {
	if strings.TrimSpace(in.ShiftID) == "" {
		return ErrInvalidShiftID
	}
	if !in.Actor.Role.Privileged() {
		return ErrForbidden
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.DeleteShift(txCtx, in.ShiftID)
	})
}

// CopyShift はシフトの時間帯・役割・メモを新しい日付に複製します。
// 新しい識別子が振られ、担当者とリマインダー状態は引き継がれません。
func (s *Service) CopyShift(ctx context.Context, in CopyShiftInput) (*Shift, error) {
	if strings.TrimSpace(in.ShiftID) == "" {
		return nil, ErrInvalidShiftID
	}
	if !in.Actor.Role.Privileged() {
		return nil, ErrForbidden
	}
	if in.Scope != nil && in.Scope.Empty() {
		return nil, ErrInvalidScope
	}

	newDate := DateOf(in.NewDate)
	if newDate.IsZero() {
		return nil, ErrInvalidShiftDate
	}

	var copied *Shift
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		source, err := s.repo.FindShiftByID(txCtx, in.ShiftID)
		if err != nil {
			return err
		}

		scope := source.Scope
		if in.Scope != nil {
			scope = *in.Scope
		}

		now := s.clock.Now()
		weekStart := WeekStartOf(newDate)

		if err := s.ensureWeek(txCtx, weekStart, scope, now); err != nil {
			return err
		}

		shift := &Shift{
			ID:        uuid.NewString(),
			WeekStart: weekStart,
			Scope:     scope,
			Date:      newDate,
			StartTime: source.StartTime,
			EndTime:   source.EndTime,
			Role:      source.Role,
			Notes:     source.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		}

		result, err := s.repo.UpsertShift(txCtx, shift)
		if err != nil {
			return err
		}
		copied = result
		return nil
	}); err != nil {
		return nil, err
	}

	return copied, nil
}

// ListShifts は閲覧者のロールに応じたシフト一覧を返します。未公開の週を
// 非特権の従業員が参照した場合、エラーでも部分データでもなく常に空を返します。
func (s *Service) ListShifts(ctx context.Context, in ListShiftsInput) ([]*Shift, error) {
	if in.Scope.Empty() {
		return nil, ErrInvalidScope
	}
	weekStart, err := normalizeWeekStart(in.WeekStart)
	if err != nil {
		return nil, err
	}

	var (
		week   *Week
		shifts []*Shift
	)
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindWeek(txCtx, weekStart, in.Scope)
		if err != nil {
			if errors.Is(err, ErrWeekNotFound) {
				found = &Week{WeekStart: weekStart, Scope: in.Scope}
			} else {
				return err
			}
		}
		week = found

		list, err := s.repo.ListShiftsByWeek(txCtx, weekStart, in.Scope)
		if err != nil {
			return err
		}
		shifts = list
		return nil
	}); err != nil {
		return nil, err
	}

	switch in.Viewer.Role {
	case identity.RoleAdmin, identity.RoleManager:
		return shifts, nil
	case identity.RoleEmployee:
		if !week.Published {
			return []*Shift{}, nil
		}
		if in.Scope != (Scope{Location: in.Viewer.Location, Department: in.Viewer.Department}) {
			return []*Shift{}, nil
		}
		own := make([]*Shift, 0, len(shifts))
		for _, shift := range shifts {
			if shift.AssignedWorkerID != nil && *shift.AssignedWorkerID == in.Viewer.WorkerID {
				own = append(own, shift)
			}
		}
		return own, nil
	default:
		return []*Shift{}, nil
	}
}

func (s *Service) ensureWeek(ctx context.Context, weekStart time.Time, scope Scope, now time.Time) error {
	_, err := s.repo.FindWeek(ctx, weekStart, scope)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrWeekNotFound) {
		return err
	}

	_, err = s.repo.SaveWeek(ctx, &Week{
		WeekStart: weekStart,
		Scope:     scope,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return err
}

func (s *Service) recordAudit(ctx context.Context, actorID string, action audit.Action, entityID string, metadata map[string]string) {
	_ = s.audit.Record(ctx, audit.Event{
		ActorID:    actorID,
		Action:     action,
		EntityType: "rota_week",
		EntityID:   entityID,
		Metadata:   metadata,
		Timestamp:  s.clock.Now(),
	})
}

func normalizeWeekStart(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, ErrInvalidWeekStart
	}
	return WeekStartOf(t), nil
}

func weekKey(week *Week) string {
	return week.WeekStart.Format("2006-01-02") + "/" + week.Scope.Location + "/" + week.Scope.Department
}
