package reminder

import "context"

// Ledger は送信済みリマインダーの追記専用台帳です。
type Ledger interface {
	Find(ctx context.Context, shiftID string, kind Kind) (*Record, error)
	Create(ctx context.Context, record *Record) (*Record, error)
}

// Notifier は外部へのメッセージ送信の抽象です。送信は同期的で、
// 一回の呼び出しにつき宛先は一人です。
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ConfigProvider はスケジューラ設定のスナップショットを都度取得します。
// 設定変更を再起動なしで反映するため、ティックごとに読み直されます。
type ConfigProvider interface {
	SchedulerConfig(ctx context.Context) (Config, error)
}

// Directory は従業員 ID から通知先アドレスを引く抽象です。
type Directory interface {
	EmailForWorker(ctx context.Context, workerID string) (string, error)
}
