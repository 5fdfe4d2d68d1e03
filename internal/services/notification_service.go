package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/pitwall/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// MailSender is the subset of the SES client used for notifications
type MailSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

const notifyTimeout = 5 * time.Second

// NotificationService mails account-security notices through SES. Delivery
// is best effort: failures are logged and never reach the caller.
type NotificationService struct {
	sender      MailSender
	fromAddress string
	logger      *slog.Logger
}

// NewNotificationService wraps an existing sender
func NewNotificationService(sender MailSender, fromAddress string, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		sender:      sender,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// NewSESNotificationService loads the default AWS config for region
func NewSESNotificationService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*NotificationService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewNotificationService(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NotifyLockout tells the account owner that sign-in is blocked until until
func (s *NotificationService) NotifyLockout(ctx context.Context, email string, until time.Time) {
	subject := "Your pit wall account has been locked"
	body := fmt.Sprintf(`Your account was locked after too many failed sign-in attempts.

You can try again after %s.

If this wasn't you, someone may be guessing your password. Once the lock
expires, sign in and change your password from the profile page.
`, until.UTC().Format("2006-01-02 15:04 MST"))

	s.send(ctx, email, subject, body, "lockout")
}

// NotifyPasswordChanged confirms a completed password rotation
func (s *NotificationService) NotifyPasswordChanged(ctx context.Context, email string, at time.Time) {
	subject := "Your pit wall password was changed"
	body := fmt.Sprintf(`The password for your account was changed at %s.

If you didn't make this change, reset your password with your security
questions and contact your team administrator.
`, at.UTC().Format("2006-01-02 15:04 MST"))

	s.send(ctx, email, subject, body, "password_changed")
}

func (s *NotificationService) send(ctx context.Context, to, subject, body, kind string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	}

	result, err := s.sender.SendEmail(ctx, input)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send notification via SES",
			slog.String("kind", kind),
			slog.String("email", logger.SanitizedEmail(to)),
			slog.Any("error", err))
		return
	}

	s.logger.InfoContext(ctx, "notification sent",
		slog.String("kind", kind),
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))
}
