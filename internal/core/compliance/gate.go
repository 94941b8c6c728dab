package compliance

// MinRetentionYears は勤怠記録の法定保存年数の下限です。
const MinRetentionYears = 4

// Config は設定プロバイダから取得するポリシー設定のスナップショットです。
type Config struct {
	RetentionYears       int
	PrivacyNoticeVersion string
	TermsNoticeVersion   string
	HasWorkerReps        bool
	ConsultationRecorded bool
	NoRepsStatement      bool
}

// Requirement は未充足のコンプライアンス要件を表します。
type Requirement string

const (
	RequirementRetentionPeriod    Requirement = "retention_period"
	RequirementPrivacyNotice      Requirement = "privacy_notice"
	RequirementTermsNotice        Requirement = "terms_notice"
	RequirementConsultationRecord Requirement = "consultation_record"
	RequirementNoRepsStatement    Requirement = "no_reps_statement"
)

// Evaluate はポリシー設定を検査し、未充足の要件を返します。副作用はありません。
// しきい値はすべて下限です。充足していれば空のスライスを返します。
func Evaluate(cfg Config) []Requirement {
	missing := make([]Requirement, 0, 4)

	if cfg.RetentionYears < MinRetentionYears {
		missing = append(missing, RequirementRetentionPeriod)
	}
	if cfg.PrivacyNoticeVersion == "" {
		missing = append(missing, RequirementPrivacyNotice)
	}
	if cfg.TermsNoticeVersion == "" {
		missing = append(missing, RequirementTermsNotice)
	}

	if cfg.HasWorkerReps {
		if !cfg.ConsultationRecorded {
			missing = append(missing, RequirementConsultationRecord)
		}
	} else if !cfg.NoRepsStatement {
		missing = append(missing, RequirementNoRepsStatement)
	}

	return missing
}
