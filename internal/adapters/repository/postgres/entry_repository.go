package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/attendance"
	pgdb "github.com/ogurasousui/attendance-clean-arch/internal/platform/db/postgres"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"

	openEntryConstraint = "attendance_entries_open_worker_key"
	openBreakConstraint = "attendance_breaks_open_entry_key"
)

// EntryRepository は PostgreSQL を利用した勤怠エントリ永続化の実装です。
// 「従業員ごとに打刻中エントリは一件」「エントリごとに継続中の休憩は一件」の
// 不変条件は部分ユニークインデックスで担保され、違反は対応する勤怠エラーに
// 変換されます。
type EntryRepository struct {
	pool pgdb.Queryer
}

// NewEntryRepository は EntryRepository を生成します。
func NewEntryRepository(pool pgdb.Queryer) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// CreateEntry は勤怠エントリを新規作成します。
func (r *EntryRepository) CreateEntry(ctx context.Context, e *attendance.Entry) (*attendance.Entry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO attendance_entries (id, worker_id, started_at, ended_at, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, worker_id, started_at, ended_at, status, created_at, updated_at
    `,
		e.ID,
		e.WorkerID,
		e.Start,
		nullableTime(e.End),
		string(e.Status),
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanEntry(row)
	if err != nil {
		return nil, translateEntryPgError(err)
	}
	return created, nil
}

// UpdateEntry は勤怠エントリを更新します。
func (r *EntryRepository) UpdateEntry(ctx context.Context, e *attendance.Entry) (*attendance.Entry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE attendance_entries
           SET ended_at = $1,
               status = $2,
               updated_at = $3
         WHERE id = $4
        RETURNING id, worker_id, started_at, ended_at, status, created_at, updated_at
    `,
		nullableTime(e.End),
		string(e.Status),
		e.UpdatedAt,
		e.ID,
	)

	updated, err := scanEntry(row)
	if err != nil {
		return nil, translateEntryPgError(err)
	}
	return updated, nil
}

// FindEntryByID は ID で勤怠エントリを取得します。
func (r *EntryRepository) FindEntryByID(ctx context.Context, id string) (*attendance.Entry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, worker_id, started_at, ended_at, status, created_at, updated_at
          FROM attendance_entries
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanEntry(row)
	if err != nil {
		return nil, translateEntryPgError(err)
	}
	return found, nil
}

// FindOpenEntryByWorker は従業員の打刻中エントリを取得します。
func (r *EntryRepository) FindOpenEntryByWorker(ctx context.Context, workerID string) (*attendance.Entry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, worker_id, started_at, ended_at, status, created_at, updated_at
          FROM attendance_entries
         WHERE worker_id = $1 AND ended_at IS NULL
         LIMIT 1
    `, workerID)

	found, err := scanEntry(row)
	if err != nil {
		return nil, translateEntryPgError(err)
	}
	return found, nil
}

// CreateBreak は休憩区間を新規作成します。
func (r *EntryRepository) CreateBreak(ctx context.Context, b *attendance.BreakInterval) (*attendance.BreakInterval, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO attendance_breaks (id, entry_id, started_at, ended_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, entry_id, started_at, ended_at
    `,
		b.ID,
		b.EntryID,
		b.Start,
		nullableTime(b.End),
	)

	created, err := scanBreak(row)
	if err != nil {
		return nil, translateBreakPgError(err)
	}
	return created, nil
}

// UpdateBreak は休憩区間を更新します。
func (r *EntryRepository) UpdateBreak(ctx context.Context, b *attendance.BreakInterval) (*attendance.BreakInterval, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE attendance_breaks
           SET ended_at = $1
         WHERE id = $2
        RETURNING id, entry_id, started_at, ended_at
    `,
		nullableTime(b.End),
		b.ID,
	)

	updated, err := scanBreak(row)
	if err != nil {
		return nil, translateBreakPgError(err)
	}
	return updated, nil
}

// FindBreakByID は ID で休憩区間を取得します。
func (r *EntryRepository) FindBreakByID(ctx context.Context, id string) (*attendance.BreakInterval, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, entry_id, started_at, ended_at
          FROM attendance_breaks
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanBreak(row)
	if err != nil {
		return nil, translateBreakPgError(err)
	}
	return found, nil
}

// FindOpenBreakByEntry はエントリの継続中の休憩を取得します。
func (r *EntryRepository) FindOpenBreakByEntry(ctx context.Context, entryID string) (*attendance.BreakInterval, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, entry_id, started_at, ended_at
          FROM attendance_breaks
         WHERE entry_id = $1 AND ended_at IS NULL
         LIMIT 1
    `, entryID)

	found, err := scanBreak(row)
	if err != nil {
		return nil, translateBreakPgError(err)
	}
	return found, nil
}

// ListBreaksByEntry はエントリの休憩区間を開始時刻順に返します。
func (r *EntryRepository) ListBreaksByEntry(ctx context.Context, entryID string) ([]*attendance.BreakInterval, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, entry_id, started_at, ended_at
          FROM attendance_breaks
         WHERE entry_id = $1
         ORDER BY started_at ASC
    `, entryID)
	if err != nil {
		return nil, translateBreakPgError(err)
	}
	defer rows.Close()

	breaks := make([]*attendance.BreakInterval, 0, 4)
	for rows.Next() {
		brk, err := scanBreak(rows)
		if err != nil {
			return nil, translateBreakPgError(err)
		}
		breaks = append(breaks, brk)
	}

	if err := rows.Err(); err != nil {
		return nil, translateBreakPgError(err)
	}

	return breaks, nil
}

// AppendGeoEvent は位置情報イベントを追記します。イベントは不変であり、
// 更新系の操作は提供しません。
func (r *EntryRepository) AppendGeoEvent(ctx context.Context, e *attendance.GeoEvent) (*attendance.GeoEvent, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO geo_events (id, entry_id, worker_id, kind, recorded_at, lat, lon, accuracy, device_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, entry_id, worker_id, kind, recorded_at, lat, lon, accuracy, device_id
    `,
		e.ID,
		e.EntryID,
		e.WorkerID,
		string(e.Kind),
		e.Timestamp,
		e.Lat,
		e.Lon,
		e.Accuracy,
		e.DeviceID,
	)

	appended, err := scanGeoEvent(row)
	if err != nil {
		return nil, translateEntryPgError(err)
	}
	return appended, nil
}

// ListGeoEventsByEntry はエントリの位置情報イベントを、到着順ではなく
// イベント自身のタイムスタンプ順に返します。
func (r *EntryRepository) ListGeoEventsByEntry(ctx context.Context, entryID string) ([]*attendance.GeoEvent, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, entry_id, worker_id, kind, recorded_at, lat, lon, accuracy, device_id
          FROM geo_events
         WHERE entry_id = $1
         ORDER BY recorded_at ASC
    `, entryID)
	if err != nil {
		return nil, translateEntryPgError(err)
	}
	defer rows.Close()

	events := make([]*attendance.GeoEvent, 0, 4)
	for rows.Next() {
		event, err := scanGeoEvent(rows)
		if err != nil {
			return nil, translateEntryPgError(err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, translateEntryPgError(err)
	}

	return events, nil
}

func scanEntry(row pgx.Row) (*attendance.Entry, error) {
	var (
		id        string
		workerID  string
		startedAt time.Time
		endedAt   sql.NullTime
		status    string
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&id, &workerID, &startedAt, &endedAt, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendance.ErrEntryNotFound
		}
		return nil, err
	}

	var endPtr *time.Time
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		endPtr = &t
	}

	return &attendance.Entry{
		ID:        id,
		WorkerID:  workerID,
		Start:     startedAt.UTC(),
		End:       endPtr,
		Status:    attendance.Status(status),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func scanBreak(row pgx.Row) (*attendance.BreakInterval, error) {
	var (
		id        string
		entryID   string
		startedAt time.Time
		endedAt   sql.NullTime
	)

	if err := row.Scan(&id, &entryID, &startedAt, &endedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendance.ErrBreakNotFound
		}
		return nil, err
	}

	var endPtr *time.Time
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		endPtr = &t
	}

	return &attendance.BreakInterval{
		ID:      id,
		EntryID: entryID,
		Start:   startedAt.UTC(),
		End:     endPtr,
	}, nil
}

func scanGeoEvent(row pgx.Row) (*attendance.GeoEvent, error) {
	var (
		id         string
		entryID    string
		workerID   string
		kind       string
		recordedAt time.Time
		lat        float64
		lon        float64
		accuracy   float64
		deviceID   string
	)

	if err := row.Scan(&id, &entryID, &workerID, &kind, &recordedAt, &lat, &lon, &accuracy, &deviceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendance.ErrEntryNotFound
		}
		return nil, err
	}

	return &attendance.GeoEvent{
		ID:        id,
		EntryID:   entryID,
		WorkerID:  workerID,
		Kind:      attendance.GeoEventKind(kind),
		Timestamp: recordedAt.UTC(),
		Lat:       lat,
		Lon:       lon,
		Accuracy:  accuracy,
		DeviceID:  deviceID,
	}, nil
}

func translateEntryPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return attendance.ErrEntryNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == openEntryConstraint {
				return attendance.ErrAlreadyOpen
			}
		case foreignKeyViolationCode:
			return attendance.ErrEntryNotFound
		}
	}

	return err
}

func translateBreakPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return attendance.ErrBreakNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == openBreakConstraint {
				return attendance.ErrAlreadyOnBreak
			}
		case foreignKeyViolationCode:
			return attendance.ErrEntryNotFound
		}
	}

	return err
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC()
}
