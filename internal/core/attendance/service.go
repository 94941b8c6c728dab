package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/audit"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/compliance"
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

// PolicyProvider はポリシー設定のスナップショットを都度取得します。
// 設定変更を再起動なしで反映するため、呼び出しごとに読み直されます。
type PolicyProvider interface {
	PolicyConfig(ctx context.Context) (compliance.Config, error)
}

// Service は勤怠の状態遷移に関するユースケースをまとめます。
type Service struct {
	repo     Repository
	policies PolicyProvider
	clock    Clock
	tx       TransactionManager
	audit    audit.Sink
}

// UseCase は勤怠ユースケースの公開インターフェースです。
type UseCase interface {
	ClockIn(ctx context.Context, in ClockInInput) (*Entry, error)
	ClockOut(ctx context.Context, in ClockOutInput) (*Entry, error)
	StartBreak(ctx context.Context, in StartBreakInput) (*BreakInterval, error)
	EndBreak(ctx context.Context, in EndBreakInput) (*BreakInterval, error)
	RecordGeoEvent(ctx context.Context, in RecordGeoEventInput) (*GeoEvent, error)
	WorkedMinutes(ctx context.Context, entryID string) (int, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, policies PolicyProvider, clock Clock, tx TransactionManager, sink audit.Sink) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{repo: repo, policies: policies, clock: clock, tx: tx, audit: sink}
}

// ClockInInput は出勤打刻の入力です。At が nil の場合は現在時刻を使います。
type ClockInInput struct {
	WorkerID string
	Actor    identity.Principal
	At       *time.Time
	Geo      *GeoPayload
}

// ClockOutInput は退勤打刻の入力です。
type ClockOutInput struct {
	EntryID string
	Actor   identity.Principal
	At      *time.Time
	Geo     *GeoPayload
}

// StartBreakInput は休憩開始の入力です。
type StartBreakInput struct {
	EntryID string
	Actor   identity.Principal
	At      *time.Time
	Geo     *GeoPayload
}

// EndBreakInput は休憩終了の入力です。
type EndBreakInput struct {
	EntryID string
	BreakID string
	Actor   identity.Principal
	At      *time.Time
	Geo     *GeoPayload
}

// RecordGeoEventInput は位置情報イベント追記の入力です。
type RecordGeoEventInput struct {
	EntryID string
	Kind    GeoEventKind
	Payload GeoPayload
	At      *time.Time
}

// ClockIn は出勤打刻を受理し、新しいエントリを作成します。
// コンプライアンス要件が未充足の場合は ErrComplianceIncomplete で拒否します。
// このゲートは新規エントリの作成だけに適用され、退勤や休憩操作は妨げません。
func (s *Service) ClockIn(ctx context.Context, in ClockInInput) (*Entry, error) {
	workerID := strings.TrimSpace(in.WorkerID)
	if workerID == "" {
		return nil, ErrInvalidWorkerID
	}
	if err := ensureActorMayActFor(in.Actor, workerID); err != nil {
		return nil, err
	}

	cfg, err := s.policies.PolicyConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("attendance: load policy config: %w", err)
	}
	if missing := compliance.Evaluate(cfg); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrComplianceIncomplete, joinRequirements(missing))
	}

	at := s.resolveAt(in.At)

	var created *Entry
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		open, err := s.repo.FindOpenEntryByWorker(txCtx, workerID)
		if err != nil && !errors.Is(err, ErrEntryNotFound) {
			return err
		}
		if open != nil {
			return ErrAlreadyOpen
		}

		now := s.clock.Now()
		entry := &Entry{
			ID:        uuid.NewString(),
			WorkerID:  workerID,
			Start:     at,
			Status:    StatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}

		result, err := s.repo.CreateEntry(txCtx, entry)
		if err != nil {
			return err
		}

		if in.Geo != nil {
			if _, err := s.appendGeoEvent(txCtx, result, GeoEventClockIn, *in.Geo, at); err != nil {
				return err
			}
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, in.Actor.WorkerID, audit.ActionClockIn, created.ID, map[string]string{"worker_id": workerID})
	return created, nil
}

// ClockOut は退勤打刻を受理し、エントリを閉じます。
// 休憩が開いたままの場合は ErrOpenBreakPresent で拒否します。休憩終了時刻を
// 勝手に補完しないためで、呼び出し側は先に休憩を終了させる必要があります。
func (s *Service) ClockOut(ctx context.Context, in ClockOutInput) (*Entry, error) {
	if strings.TrimSpace(in.EntryID) == "" {
		return nil, ErrInvalidEntryID
	}

	at := s.resolveAt(in.At)

	var closed *Entry
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		entry, err := s.repo.FindEntryByID(txCtx, in.EntryID)
		if err != nil {
			return err
		}
		if err := ensureActorMayActFor(in.Actor, entry.WorkerID); err != nil {
			return err
		}
		if !entry.Open() {
			return ErrEntryClosed
		}

		brk, err := s.repo.FindOpenBreakByEntry(txCtx, entry.ID)
		if err != nil && !errors.Is(err, ErrBreakNotFound) {
			return err
		}
		if brk != nil {
			return ErrOpenBreakPresent
		}

		end := at
		entry.End = &end
		entry.Status = StatusClosed
		entry.UpdatedAt = s.clock.Now()

		result, err := s.repo.UpdateEntry(txCtx, entry)
		if err != nil {
			return err
		}

		if in.Geo != nil {
			if _, err := s.appendGeoEvent(txCtx, result, GeoEventClockOut, *in.Geo, at); err != nil {
				return err
			}
		}

		closed = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, in.Actor.WorkerID, audit.ActionClockOut, closed.ID, map[string]string{"worker_id": closed.WorkerID})
	return closed, nil
}

// StartBreak は休憩を開始します。
func (s *Service) StartBreak(ctx context.Context, in StartBreakInput) (*BreakInterval, error) {
	if strings.TrimSpace(in.EntryID) == "" {
		return nil, ErrInvalidEntryID
	}

	at := s.resolveAt(in.At)

	var created *BreakInterval
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		entry, err := s.repo.FindEntryByID(txCtx, in.EntryID)
		if err != nil {
			return err
		}
		if err := ensureActorMayActFor(in.Actor, entry.WorkerID); err != nil {
			return err
		}
		if !entry.Open() {
			return ErrEntryClosed
		}

		open, err := s.repo.FindOpenBreakByEntry(txCtx, entry.ID)
		if err != nil && !errors.Is(err, ErrBreakNotFound) {
			return err
		}
		if open != nil {
			return ErrAlreadyOnBreak
		}

		brk := &BreakInterval{
			ID:      uuid.NewString(),
			EntryID: entry.ID,
			Start:   at,
		}

		result, err := s.repo.CreateBreak(txCtx, brk)
		if err != nil {
			return err
		}

		if in.Geo != nil {
			if _, err := s.appendGeoEvent(txCtx, entry, GeoEventBreakStart, *in.Geo, at); err != nil {
				return err
			}
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, in.Actor.WorkerID, audit.ActionBreakStart, created.ID, map[string]string{"entry_id": created.EntryID})
	return created, nil
}

// EndBreak は休憩を終了します。
func (s *Service) EndBreak(ctx context.Context, in EndBreakInput) (*BreakInterval, error) {
	if strings.TrimSpace(in.EntryID) == "" {
		return nil, ErrInvalidEntryID
	}
	if strings.TrimSpace(in.BreakID) == "" {
		return nil, ErrInvalidBreakID
	}

	at := s.resolveAt(in.At)

	var closed *BreakInterval
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		entry, err := s.repo.FindEntryByID(txCtx, in.EntryID)
		if err != nil {
			return err
		}
		if err := ensureActorMayActFor(in.Actor, entry.WorkerID); err != nil {
			return err
		}

		brk, err := s.repo.FindBreakByID(txCtx, in.BreakID)
		if err != nil {
			return err
		}
		if brk.EntryID != entry.ID {
			return ErrBreakNotFound
		}
		if !brk.Open() {
			return ErrBreakNotOpen
		}

		end := at
		brk.End = &end

		result, err := s.repo.UpdateBreak(txCtx, brk)
		if err != nil {
			return err
		}

		if in.Geo != nil {
			if _, err := s.appendGeoEvent(txCtx, entry, GeoEventBreakEnd, *in.Geo, at); err != nil {
				return err
			}
		}

		closed = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, in.Actor.WorkerID, audit.ActionBreakEnd, closed.ID, map[string]string{"entry_id": closed.EntryID})
	return closed, nil
}

// RecordGeoEvent は位置情報イベントを追記します。業務理由で拒否されることはなく、
// エントリが存在しない場合のみ失敗します。
func (s *Service) RecordGeoEvent(ctx context.Context, in RecordGeoEventInput) (*GeoEvent, error) {
	if strings.TrimSpace(in.EntryID) == "" {
		return nil, ErrInvalidEntryID
	}
	if !in.Kind.Valid() {
		return nil, ErrInvalidGeoEventKind
	}

	at := s.resolveAt(in.At)

	var appended *GeoEvent
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		entry, err := s.repo.FindEntryByID(txCtx, in.EntryID)
		if err != nil {
			return err
		}

		result, err := s.appendGeoEvent(txCtx, entry, in.Kind, in.Payload, at)
		if err != nil {
			return err
		}

		appended = result
		return nil
	}); err != nil {
		return nil, err
	}

	return appended, nil
}

// WorkedMinutes はエントリの実働分数を返します。未終了の休憩は、終了するまで
// 実働にも控除にも数えません。
func (s *Service) WorkedMinutes(ctx context.Context, entryID string) (int, error) {
	if strings.TrimSpace(entryID) == "" {
		return 0, ErrInvalidEntryID
	}

	var (
		entry  *Entry
		breaks []*BreakInterval
	)
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindEntryByID(txCtx, entryID)
		if err != nil {
			return err
		}
		list, err := s.repo.ListBreaksByEntry(txCtx, entryID)
		if err != nil {
			return err
		}
		entry = found
		breaks = list
		return nil
	}); err != nil {
		return 0, err
	}

	return workedMinutes(entry, breaks, s.clock.Now()), nil
}

func workedMinutes(entry *Entry, breaks []*BreakInterval, now time.Time) int {
	end := now
	if entry.End != nil {
		end = *entry.End
	}

	total := end.Sub(entry.Start)
	if total < 0 {
		total = 0
	}

	var deducted time.Duration
	for _, brk := range breaks {
		if brk.End == nil {
			continue
		}
		deducted += brk.End.Sub(brk.Start)
	}

	worked := total - deducted
	if worked < 0 {
		worked = 0
	}
	return int(worked.Round(time.Minute) / time.Minute)
}

func (s *Service) appendGeoEvent(ctx context.Context, entry *Entry, kind GeoEventKind, payload GeoPayload, at time.Time) (*GeoEvent, error) {
	event := &GeoEvent{
		ID:        uuid.NewString(),
		EntryID:   entry.ID,
		WorkerID:  entry.WorkerID,
		Kind:      kind,
		Timestamp: at,
		Lat:       payload.Lat,
		Lon:       payload.Lon,
		Accuracy:  payload.Accuracy,
		DeviceID:  payload.DeviceID,
	}
	return s.repo.AppendGeoEvent(ctx, event)
}

func (s *Service) resolveAt(at *time.Time) time.Time {
	if at != nil {
		return at.UTC()
	}
	return s.clock.Now()
}

func (s *Service) recordAudit(ctx context.Context, actorID string, action audit.Action, entityID string, metadata map[string]string) {
	// 監査は書き込み専用のサイドチャネルであり、失敗しても業務処理は成立させる。
	_ = s.audit.Record(ctx, audit.Event{
		ActorID:    actorID,
		Action:     action,
		EntityType: auditEntityType(action),
		EntityID:   entityID,
		Metadata:   metadata,
		Timestamp:  s.clock.Now(),
	})
}

func auditEntityType(action audit.Action) string {
	switch action {
	case audit.ActionBreakStart, audit.ActionBreakEnd:
		return "attendance_break"
	default:
		return "attendance_entry"
	}
}

func ensureActorMayActFor(actor identity.Principal, workerID string) error {
	if actor.WorkerID == workerID {
		return nil
	}
	if actor.Role.Privileged() {
		return nil
	}
	return ErrForbidden
}

func joinRequirements(missing []compliance.Requirement) string {
	parts := make([]string, 0, len(missing))
	for _, req := range missing {
		parts = append(parts, string(req))
	}
	return strings.Join(parts, ", ")
}
