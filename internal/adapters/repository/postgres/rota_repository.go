package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/rota"
	pgdb "github.com/ogurasousui/attendance-clean-arch/internal/platform/db/postgres"
)

// RotaRepository は PostgreSQL を利用した週次ロタ永続化の実装です。
type RotaRepository struct {
	pool pgdb.Queryer
}

// NewRotaRepository は RotaRepository を生成します。
func NewRotaRepository(pool pgdb.Queryer) *RotaRepository {
	return &RotaRepository{pool: pool}
}

// FindWeek は (週開始日, スコープ) で週を取得します。
func (r *RotaRepository) FindWeek(ctx context.Context, weekStart time.Time, scope rota.Scope) (*rota.Week, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT week_start, location, department, published, published_at, published_by, created_at, updated_at
          FROM rota_weeks
         WHERE week_start = $1 AND location = $2 AND department = $3
         LIMIT 1
    `, weekStart, scope.Location, scope.Department)

	found, err := scanWeek(row)
	if err != nil {
		return nil, translateRotaPgError(err)
	}
	return found, nil
}

// SaveWeek は週を作成または更新します。
func (r *RotaRepository) SaveWeek(ctx context.Context, w *rota.Week) (*rota.Week, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO rota_weeks (week_start, location, department, published, published_at, published_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (week_start, location, department) DO UPDATE
           SET published = EXCLUDED.published,
               published_at = EXCLUDED.published_at,
               published_by = EXCLUDED.published_by,
               updated_at = EXCLUDED.updated_at
        RETURNING week_start, location, department, published, published_at, published_by, created_at, updated_at
    `,
		w.WeekStart,
		w.Scope.Location,
		w.Scope.Department,
		w.Published,
		nullableTime(w.PublishedAt),
		w.PublishedBy,
		w.CreatedAt,
		w.UpdatedAt,
	)

	saved, err := scanWeek(row)
	if err != nil {
		return nil, translateRotaPgError(err)
	}
	return saved, nil
}

// UpsertShift はシフトを作成または更新します。
func (r *RotaRepository) UpsertShift(ctx context.Context, s *rota.Shift) (*rota.Shift, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO shifts (id, week_start, location, department, shift_date, start_time, end_time, role, notes, assigned_worker_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (id) DO UPDATE
           SET week_start = EXCLUDED.week_start,
               location = EXCLUDED.location,
               department = EXCLUDED.department,
               shift_date = EXCLUDED.shift_date,
               start_time = EXCLUDED.start_time,
               end_time = EXCLUDED.end_time,
               role = EXCLUDED.role,
               notes = EXCLUDED.notes,
               assigned_worker_id = EXCLUDED.assigned_worker_id,
               updated_at = EXCLUDED.updated_at
        RETURNING id, week_start, location, department, shift_date, start_time, end_time, role, notes, assigned_worker_id, created_at, updated_at
    `,
		s.ID,
		s.WeekStart,
		s.Scope.Location,
		s.Scope.Department,
		s.Date,
		s.StartTime,
		s.EndTime,
		s.Role,
		s.Notes,
		nullableString(s.AssignedWorkerID),
		s.CreatedAt,
		s.UpdatedAt,
	)

	saved, err := scanShift(row)
	if err != nil {
		return nil, translateRotaPgError(err)
	}
	return saved, nil
}

// DeleteShift はシフトを削除します。
func (r *RotaRepository) DeleteShift(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return translateRotaPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return rota.ErrShiftNotFound
	}
	return nil
}

// FindShiftByID は ID でシフトを取得します。
func (r *RotaRepository) FindShiftByID(ctx context.Context, id string) (*rota.Shift, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, week_start, location, department, shift_date, start_time, end_time, role, notes, assigned_worker_id, created_at, updated_at
          FROM shifts
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanShift(row)
	if err != nil {
		return nil, translateRotaPgError(err)
	}
	return found, nil
}

// ListShiftsByWeek は週とスコープのシフトを日付・開始時刻順に返します。
func (r *RotaRepository) ListShiftsByWeek(ctx context.Context, weekStart time.Time, scope rota.Scope) ([]*rota.Shift, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, week_start, location, department, shift_date, start_time, end_time, role, notes, assigned_worker_id, created_at, updated_at
          FROM shifts
         WHERE week_start = $1 AND location = $2 AND department = $3
         ORDER BY shift_date ASC, start_time ASC, id ASC
    `, weekStart, scope.Location, scope.Department)
	if err != nil {
		return nil, translateRotaPgError(err)
	}
	defer rows.Close()

	return collectShifts(rows)
}

// ListShiftsOnDate は日付に紐づく全スコープのシフトを返します。
// リマインダースケジューラの当日走査に使われます。
func (r *RotaRepository) ListShiftsOnDate(ctx context.Context, date time.Time) ([]*rota.Shift, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, week_start, location, department, shift_date, start_time, end_time, role, notes, assigned_worker_id, created_at, updated_at
          FROM shifts
         WHERE shift_date = $1
         ORDER BY start_time ASC, id ASC
    `, date)
	if err != nil {
		return nil, translateRotaPgError(err)
	}
	defer rows.Close()

	return collectShifts(rows)
}

func collectShifts(rows pgx.Rows) ([]*rota.Shift, error) {
	shifts := make([]*rota.Shift, 0, 8)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, translateRotaPgError(err)
		}
		shifts = append(shifts, shift)
	}

	if err := rows.Err(); err != nil {
		return nil, translateRotaPgError(err)
	}

	return shifts, nil
}

func scanWeek(row pgx.Row) (*rota.Week, error) {
	var (
		weekStart   time.Time
		location    string
		department  string
		published   bool
		publishedAt sql.NullTime
		publishedBy sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := row.Scan(&weekStart, &location, &department, &published, &publishedAt, &publishedBy, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rota.ErrWeekNotFound
		}
		return nil, err
	}

	var publishedPtr *time.Time
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		publishedPtr = &t
	}

	return &rota.Week{
		WeekStart:   rota.DateOf(weekStart),
		Scope:       rota.Scope{Location: location, Department: department},
		Published:   published,
		PublishedAt: publishedPtr,
		PublishedBy: publishedBy.String,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func scanShift(row pgx.Row) (*rota.Shift, error) {
	var (
		id         string
		weekStart  time.Time
		location   string
		department string
		shiftDate  time.Time
		startTime  string
		endTime    string
		role       sql.NullString
		notes      sql.NullString
		assigned   sql.NullString
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := row.Scan(&id, &weekStart, &location, &department, &shiftDate, &startTime, &endTime, &role, &notes, &assigned, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rota.ErrShiftNotFound
		}
		return nil, err
	}

	var assignedPtr *string
	if assigned.Valid {
		value := assigned.String
		assignedPtr = &value
	}

	return &rota.Shift{
		ID:               id,
		WeekStart:        rota.DateOf(weekStart),
		Scope:            rota.Scope{Location: location, Department: department},
		Date:             rota.DateOf(shiftDate),
		StartTime:        startTime,
		EndTime:          endTime,
		Role:             role.String,
		Notes:            notes.String,
		AssignedWorkerID: assignedPtr,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func translateRotaPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return rota.ErrShiftNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == foreignKeyViolationCode {
			return rota.ErrWeekNotFound
		}
	}

	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
