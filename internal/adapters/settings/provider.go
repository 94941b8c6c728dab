package settings

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ogurasousui/attendance-clean-arch/internal/core/compliance"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/reminder"
	"gopkg.in/yaml.v3"
)

// 省略されたスケジューラ設定に適用される既定値。
const (
	defaultCheckInLeadMinutes  = 60
	defaultCheckOutLeadMinutes = 15
)

// FileProvider は yaml ファイルからライブ設定を読み込むプロバイダです。
// ゲート判定やスケジューラのティックのたびにファイルを読み直すため、
// 設定変更は再起動なしで次の呼び出しから反映されます。
type FileProvider struct {
	path string
}

// NewFileProvider は FileProvider を生成します。
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

type fileSettings struct {
	Policy struct {
		RetentionYears       int    `yaml:"retention_years"`
		PrivacyNoticeVersion string `yaml:"privacy_notice_version"`
		TermsNoticeVersion   string `yaml:"terms_notice_version"`
		HasWorkerReps        bool   `yaml:"has_worker_reps"`
		ConsultationRecorded bool   `yaml:"consultation_recorded"`
		NoRepsStatement      bool   `yaml:"no_reps_statement"`
	} `yaml:"policy"`

	Reminders struct {
		Enabled             bool `yaml:"enabled"`
		CheckInLeadMinutes  *int `yaml:"checkin_lead_minutes"`
		CheckOutLeadMinutes *int `yaml:"checkout_lead_minutes"`
		PollIntervalMinutes *int `yaml:"poll_interval_minutes"`
	} `yaml:"reminders"`
}

// PolicyConfig は現在のポリシー設定のスナップショットを返します。
func (p *FileProvider) PolicyConfig(context.Context) (compliance.Config, error) {
	parsed, err := p.load()
	if err != nil {
		return compliance.Config{}, err
	}

	return compliance.Config{
		RetentionYears:       parsed.Policy.RetentionYears,
		PrivacyNoticeVersion: parsed.Policy.PrivacyNoticeVersion,
		TermsNoticeVersion:   parsed.Policy.TermsNoticeVersion,
		HasWorkerReps:        parsed.Policy.HasWorkerReps,
		ConsultationRecorded: parsed.Policy.ConsultationRecorded,
		NoRepsStatement:      parsed.Policy.NoRepsStatement,
	}, nil
}

// SchedulerConfig は現在のスケジューラ設定のスナップショットを返します。
// 省略された値には既定値が、下限を割るティック間隔には下限が適用されます。
func (p *FileProvider) SchedulerConfig(context.Context) (reminder.Config, error) {
	parsed, err := p.load()
	if err != nil {
		return reminder.Config{}, err
	}

	cfg := reminder.Config{
		Enabled:      parsed.Reminders.Enabled,
		CheckInLead:  defaultCheckInLeadMinutes * time.Minute,
		CheckOutLead: defaultCheckOutLeadMinutes * time.Minute,
		PollInterval: reminder.MinPollInterval,
	}

	if v := parsed.Reminders.CheckInLeadMinutes; v != nil && *v >= 0 {
		cfg.CheckInLead = time.Duration(*v) * time.Minute
	}
	if v := parsed.Reminders.CheckOutLeadMinutes; v != nil && *v >= 0 {
		cfg.CheckOutLead = time.Duration(*v) * time.Minute
	}
	if v := parsed.Reminders.PollIntervalMinutes; v != nil {
		interval := time.Duration(*v) * time.Minute
		if interval < reminder.MinPollInterval {
			interval = reminder.MinPollInterval
		}
		cfg.PollInterval = interval
	}

	return cfg, nil
}

func (p *FileProvider) load() (*fileSettings, error) {
	b, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("settings: read file %s: %w", p.path, err)
	}

	var parsed fileSettings
	if err := yaml.Unmarshal(b, &parsed); err != nil {
		return nil, fmt.Errorf("settings: parse yaml: %w", err)
	}

	return &parsed, nil
}
