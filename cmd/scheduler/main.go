package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	sesadapter "github.com/ogurasousui/attendance-clean-arch/internal/adapters/notification/ses"
	"github.com/ogurasousui/attendance-clean-arch/internal/adapters/repository/postgres"
	"github.com/ogurasousui/attendance-clean-arch/internal/adapters/settings"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/reminder"
	"github.com/ogurasousui/attendance-clean-arch/internal/platform/config"
	pg "github.com/ogurasousui/attendance-clean-arch/internal/platform/db/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database pool: %v", err)
	}
	defer dbPool.Close()

	notifier, err := sesadapter.NewSender(ctx, cfg.Mailer)
	if err != nil {
		log.Fatalf("failed to initialize mailer: %v", err)
	}

	provider := settings.NewFileProvider(cfg.Settings.Path)
	rotaRepo := postgres.NewRotaRepository(dbPool)
	ledger := postgres.NewReminderRepository(dbPool)
	directory := postgres.NewWorkerRepository(dbPool)
	auditSink := postgres.NewAuditRepository(dbPool)

	scheduler := reminder.NewScheduler(rotaRepo, ledger, notifier, provider, directory, nil, auditSink, nil)
	runner := reminder.NewRunner(scheduler, provider, nil)

	log.Printf("reminder scheduler started, settings from %s", cfg.Settings.Path)

	if err := runner.Run(ctx); err != nil {
		log.Fatalf("scheduler stopped with error: %v", err)
	}

	log.Printf("reminder scheduler stopped")
}
