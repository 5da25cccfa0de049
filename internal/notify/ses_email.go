package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
)

// sesAPI is the slice of the SES client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// TenantEmailSettings overrides the sender identity for one clinic.
type TenantEmailSettings struct {
	FromAddress string
	FromName    string
}

type SESEmailSender struct {
	client  sesAPI
	from    string
	tenants map[uuid.UUID]TenantEmailSettings
	logger  *zap.Logger
}

type SESConfig struct {
	Region      string
	FromAddress string
}

func NewSESEmailSender(ctx context.Context, cfg SESConfig, tenants map[uuid.UUID]TenantEmailSettings, logger *zap.Logger) (*SESEmailSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESEmailSender{
		client:  ses.NewFromConfig(awsCfg),
		from:    cfg.FromAddress,
		tenants: tenants,
		logger:  logger,
	}, nil
}

// source resolves the From identity, preferring the tenant's own.
func (s *SESEmailSender) source(tenantID uuid.UUID) (string, error) {
	if t, ok := s.tenants[tenantID]; ok && t.FromAddress != "" {
		if t.FromName != "" {
			return fmt.Sprintf("%s <%s>", t.FromName, t.FromAddress), nil
		}
		return t.FromAddress, nil
	}
	if s.from == "" {
		return "", apperr.Configuration("no sender address configured for tenant %s", tenantID)
	}
	return s.from, nil
}

func (s *SESEmailSender) Send(ctx context.Context, item *db.QueueItem) (*Result, error) {
	if item.Channel != db.ChannelEmail {
		return nil, apperr.Configuration("email sender got channel %s", item.Channel)
	}
	if item.RecipientAddress == "" {
		return nil, apperr.Configuration("email item %s has no recipient address", item.ID)
	}

	from, err := s.source(item.TenantID)
	if err != nil {
		return nil, err
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{item.RecipientAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(item.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(item.Body),
					Charset: aws.String("UTF-8"),
				},
				Html: &types.Content{
					Data:    aws.String(htmlEnvelope(item.Subject, item.Body)),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, apperr.Provider("ses send failed", err)
	}

	s.logger.Info("email sent",
		zap.String("id", item.ID.String()),
		zap.String("to", item.RecipientAddress),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return &Result{ProviderMessageID: aws.ToString(out.MessageId)}, nil
}

func (s *SESEmailSender) SupportsChannel(ch db.Channel) bool {
	return ch == db.ChannelEmail
}

// htmlEnvelope wraps the plain-text body in a minimal HTML shell so
// clients that prefer HTML render something presentable.
func htmlEnvelope(subject, body string) string {
	return fmt.Sprintf(`<html><body style="font-family:sans-serif;color:#333">`+
		`<h2>%s</h2><p style="white-space:pre-line">%s</p>`+
		`</body></html>`, subject, body)
}
