package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/adminguard/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LockoutAlert describes a console that just locked out
type LockoutAlert struct {
	TabID          string
	Email          string
	IPAddress      string
	FailedAttempts int
	LockedUntil    time.Time
}

// LockoutNotifier defines the interface for sending lockout security alerts
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, alert LockoutAlert) error
}

// SESAPI is the subset of the SES client used to send mail
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESLockoutNotifier emails lockout alerts to the security recipients using AWS SES
type SESLockoutNotifier struct {
	sesClient   SESAPI
	fromAddress string
	recipients  []string
	logger      *slog.Logger
}

// NewSESLockoutNotifier loads the default AWS config for region and creates a notifier
func NewSESLockoutNotifier(ctx context.Context, region, fromAddress string, recipients []string, logger *slog.Logger) (*SESLockoutNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESLockoutNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, recipients, logger), nil
}

// NewSESLockoutNotifierWithClient creates a notifier over an existing client
func NewSESLockoutNotifierWithClient(client SESAPI, fromAddress string, recipients []string, logger *slog.Logger) *SESLockoutNotifier {
	return &SESLockoutNotifier{
		sesClient:   client,
		fromAddress: fromAddress,
		recipients:  recipients,
		logger:      logger,
	}
}

// NotifyLockout sends the alert. The attempted email is masked in the message body.
func (n *SESLockoutNotifier) NotifyLockout(ctx context.Context, alert LockoutAlert) error {
	masked := logger.SanitizedEmail(alert.Email)
	until := alert.LockedUntil.UTC().Format(time.RFC1123)

	textBody := fmt.Sprintf(`Admin console lockout

An admin console was locked after %d consecutive failed login attempts.

Attempted account: %s
Source IP: %s
Console: %s
Locked until: %s

If these attempts were not made by a member of your team, review access to the admin console.

This is an automated message. Please do not reply to this email.
`, alert.FailedAttempts, masked, alert.IPAddress, alert.TabID, until)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Admin console lockout</h2>
    <p>An admin console was locked after <strong>%d</strong> consecutive failed login attempts.</p>
    <table>
        <tr><td>Attempted account</td><td><code>%s</code></td></tr>
        <tr><td>Source IP</td><td><code>%s</code></td></tr>
        <tr><td>Console</td><td><code>%s</code></td></tr>
        <tr><td>Locked until</td><td>%s</td></tr>
    </table>
    <p>If these attempts were not made by a member of your team, review access to the admin console.</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, alert.FailedAttempts, masked, alert.IPAddress, alert.TabID, until)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: n.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Security alert: admin console locked"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send lockout alert via SES",
			slog.String("recipients", strings.Join(n.recipients, ",")),
			slog.Any("error", err))
		return fmt.Errorf("failed to send lockout alert: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	n.logger.Info("lockout alert sent",
		slog.String("tab_id", alert.TabID),
		slog.String("message_id", messageID))

	return nil
}
