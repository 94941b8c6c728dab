package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/reminder"
	"github.com/ogurasousui/attendance-clean-arch/internal/platform/config"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *awsses.SendEmailInput, optFns ...func(*awsses.Options)) (*awsses.SendEmailOutput, error)
}

// Sender は SES 経由でリマインダーメールを送信する Notifier の実装です。
type Sender struct {
	client sesAPI
	sender string
}

// NewSender は既定の AWS 認証情報から Sender を生成します。
func NewSender(ctx context.Context, cfg config.MailerConfig) (*Sender, error) {
	opts := make([]func(*awsconfig.LoadOptions) error, 0, 1)
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}

	return &Sender{client: awsses.NewFromConfig(awsCfg), sender: cfg.Sender}, nil
}

// Send は一人の宛先にメールを一通送信します。送信失敗とタイムアウトは
// 区別されず、どちらも ErrNotificationUnavailable として報告されます。
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &awsses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", reminder.ErrNotificationUnavailable, err)
	}
	return nil
}
