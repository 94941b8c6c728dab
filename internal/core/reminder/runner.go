package reminder

import (
	"context"
	"log"
	"time"
)

// MinPollInterval はティック間隔の下限です。設定がこれより短い、または
// 取得できない場合は下限に丸められます。
const MinPollInterval = time.Minute

// Runner は Scheduler を一定間隔で駆動します。ティックはこのループの中で
// 逐次実行されるため互いに重なることはなく、処理が長引いて取り損ねた
// ティックは実行されずに読み飛ばされます。
type Runner struct {
	scheduler *Scheduler
	provider  ConfigProvider
	logger    *log.Logger
}

// NewRunner は Runner を生成します。
func NewRunner(scheduler *Scheduler, provider ConfigProvider, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{scheduler: scheduler, provider: provider, logger: logger}
}

// Run はコンテキストがキャンセルされるまでティックを繰り返します。
// ティック間隔は毎回設定から読み直されるため、再起動なしで変更できます。
func (r *Runner) Run(ctx context.Context) error {
	timer := time.NewTimer(r.pollInterval(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			stats, err := r.scheduler.Tick(ctx)
			switch {
			case err != nil:
				r.logger.Printf("reminder: tick failed: %v", err)
			case stats.Sent > 0 || stats.Failed > 0:
				r.logger.Printf("reminder: tick scanned=%d sent=%d skipped=%d failed=%d",
					stats.Scanned, stats.Sent, stats.Skipped, stats.Failed)
			}
			timer.Reset(r.pollInterval(ctx))
		}
	}
}

func (r *Runner) pollInterval(ctx context.Context) time.Duration {
	cfg, err := r.provider.SchedulerConfig(ctx)
	if err != nil {
		r.logger.Printf("reminder: load scheduler config: %v", err)
		return MinPollInterval
	}
	if cfg.PollInterval < MinPollInterval {
		return MinPollInterval
	}
	return cfg.PollInterval
}
