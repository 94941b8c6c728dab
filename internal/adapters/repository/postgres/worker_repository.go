package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	pgdb "github.com/ogurasousui/attendance-clean-arch/internal/platform/db/postgres"
)

// ErrWorkerNotFound は従業員が見つからない場合に返されます。
var ErrWorkerNotFound = errors.New("postgres: worker not found")

// WorkerRepository は従業員ディレクトリの読み取り実装です。リマインダー
// スケジューラの宛先解決に使われます。
type WorkerRepository struct {
	pool pgdb.Queryer
}

// NewWorkerRepository は WorkerRepository を生成します。
func NewWorkerRepository(pool pgdb.Queryer) *WorkerRepository {
	return &WorkerRepository{pool: pool}
}

// EmailForWorker は従業員 ID から通知先メールアドレスを引きます。
func (r *WorkerRepository) EmailForWorker(ctx context.Context, workerID string) (string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT email
          FROM workers
         WHERE id = $1
         LIMIT 1
    `, workerID)

	var email string
	if err := row.Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrWorkerNotFound
		}
		return "", err
	}
	return email, nil
}
