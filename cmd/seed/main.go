package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/rota"
	"github.com/ogurasousui/attendance-clean-arch/internal/platform/config"
	pg "github.com/ogurasousui/attendance-clean-arch/internal/platform/db/postgres"
)

// ローカル動作確認用のデモデータを投入します。従業員二名と、今日を含む
// 公開済みの週、当日のシフト二件を作成します。
func main() {
	ctx := context.Background()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database pool: %v", err)
	}
	defer pool.Close()

	now := time.Now().UTC()
	today := rota.DateOf(now)
	weekStart := rota.WeekStartOf(today)
	scope := rota.Scope{Location: "madrid", Department: "front-of-house"}

	workers := []struct {
		id    string
		email string
		name  string
		role  string
	}{
		{uuid.NewString(), "ana@example.com", "Ana", "employee"},
		{uuid.NewString(), "luis@example.com", "Luis", "employee"},
	}

	for _, w := range workers {
		if _, err := pool.Exec(ctx, `
            INSERT INTO workers (id, email, name, location, department, role, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        `, w.id, w.email, w.name, scope.Location, scope.Department, w.role, now); err != nil {
			log.Fatalf("failed to insert worker %s: %v", w.name, err)
		}
	}

	if _, err := pool.Exec(ctx, `
        INSERT INTO rota_weeks (week_start, location, department, published, published_at, published_by, created_at, updated_at)
        VALUES ($1, $2, $3, TRUE, $4, 'seed', $4, $4)
        ON CONFLICT (week_start, location, department) DO UPDATE
           SET published = TRUE, published_at = EXCLUDED.published_at, updated_at = EXCLUDED.updated_at
    `, weekStart, scope.Location, scope.Department, now); err != nil {
		log.Fatalf("failed to insert week: %v", err)
	}

	shifts := []struct {
		start, end, role string
		workerID         string
	}{
		{"09:00", "17:00", "waiter", workers[0].id},
		{"17:00", "01:00", "waiter", workers[1].id},
	}

	for _, s := range shifts {
		if _, err := pool.Exec(ctx, `
            INSERT INTO shifts (id, week_start, location, department, shift_date, start_time, end_time, role, notes, assigned_worker_id, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, $10, $10)
        `, uuid.NewString(), weekStart, scope.Location, scope.Department, today, s.start, s.end, s.role, s.workerID, now); err != nil {
			log.Fatalf("failed to insert shift: %v", err)
		}
	}

	log.Printf("seeded %d workers and %d shifts for %s", len(workers), len(shifts), today.Format("2006-01-02"))
}
