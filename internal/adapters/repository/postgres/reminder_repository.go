package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/reminder"
	pgdb "github.com/ogurasousui/attendance-clean-arch/internal/platform/db/postgres"
)

// ReminderRepository は PostgreSQL を利用した送信済みリマインダー台帳の実装です。
// (shift_id, kind) のユニーク制約が重複送信防止の最終防壁であり、違反は
// ErrAlreadyRecorded に変換されます。
type ReminderRepository struct {
	pool pgdb.Queryer
}

// NewReminderRepository は ReminderRepository を生成します。
func NewReminderRepository(pool pgdb.Queryer) *ReminderRepository {
	return &ReminderRepository{pool: pool}
}

// Find は (シフト, 種別) の台帳レコードを取得します。
func (r *ReminderRepository) Find(ctx context.Context, shiftID string, kind reminder.Kind) (*reminder.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, shift_id, kind, scheduled_for, sent_at
          FROM reminder_records
         WHERE shift_id = $1 AND kind = $2
         LIMIT 1
    `, shiftID, string(kind))

	found, err := scanReminderRecord(row)
	if err != nil {
		return nil, translateReminderPgError(err)
	}
	return found, nil
}

// Create は台帳レコードを追記します。台帳は追記専用で、更新も削除も
// 提供しません。
func (r *ReminderRepository) Create(ctx context.Context, record *reminder.Record) (*reminder.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO reminder_records (id, shift_id, kind, scheduled_for, sent_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, shift_id, kind, scheduled_for, sent_at
    `,
		record.ID,
		record.ShiftID,
		string(record.Kind),
		record.ScheduledFor,
		record.SentAt,
	)

	created, err := scanReminderRecord(row)
	if err != nil {
		return nil, translateReminderPgError(err)
	}
	return created, nil
}

func scanReminderRecord(row pgx.Row) (*reminder.Record, error) {
	var (
		id           string
		shiftID      string
		kind         string
		scheduledFor time.Time
		sentAt       time.Time
	)

	if err := row.Scan(&id, &shiftID, &kind, &scheduledFor, &sentAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reminder.ErrRecordNotFound
		}
		return nil, err
	}

	return &reminder.Record{
		ID:           id,
		ShiftID:      shiftID,
		Kind:         reminder.Kind(kind),
		ScheduledFor: scheduledFor.UTC(),
		SentAt:       sentAt.UTC(),
	}, nil
}

func translateReminderPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return reminder.ErrRecordNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolationCode {
			return reminder.ErrAlreadyRecorded
		}
	}

	return err
}
