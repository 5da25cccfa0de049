package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
)

// maxSMSLength is the single-segment GSM limit; longer bodies are
// truncated rather than split into multi-part messages.
const maxSMSLength = 160

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSConfig holds the phone-number normalization rules for the region
// the platform operates in, plus the SNS sender identity.
type SMSConfig struct {
	Region string
	// CountryCode is prepended to local numbers, e.g. "52".
	CountryCode string
	// TrunkPrefix is the leading digit replaced by the country code when
	// present, e.g. "0".
	TrunkPrefix string
	// LocalLength is the digit count of a bare local number.
	LocalLength int
	// SenderID is the alphanumeric origin shown to recipients, where the
	// carrier supports it.
	SenderID string
}

type SNSSMSSender struct {
	client snsAPI
	cfg    SMSConfig
	logger *zap.Logger
}

func NewSNSSMSSender(ctx context.Context, cfg SMSConfig, logger *zap.Logger) (*SNSSMSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SNSSMSSender{
		client: sns.NewFromConfig(awsCfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (s *SNSSMSSender) Send(ctx context.Context, item *db.QueueItem) (*Result, error) {
	if item.Channel != db.ChannelSMS {
		return nil, apperr.Configuration("sms sender got channel %s", item.Channel)
	}
	if item.RecipientAddress == "" {
		return nil, apperr.Configuration("sms item %s has no recipient phone", item.ID)
	}

	phone, err := normalizePhone(item.RecipientAddress, s.cfg)
	if err != nil {
		return nil, err
	}
	body := truncateSMS(item.Body)

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(body),
	}
	if s.cfg.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.cfg.SenderID),
			},
		}
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		return nil, apperr.Provider("sns publish failed", err)
	}

	s.logger.Info("sms sent",
		zap.String("id", item.ID.String()),
		zap.String("phone", phone),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return &Result{ProviderMessageID: aws.ToString(out.MessageId)}, nil
}

func (s *SNSSMSSender) SupportsChannel(ch db.Channel) bool {
	return ch == db.ChannelSMS
}

// truncateSMS cuts the body to a single segment, rune-safe, marking the
// cut with an ellipsis.
func truncateSMS(body string) string {
	runes := []rune(body)
	if len(runes) <= maxSMSLength {
		return body
	}
	return string(runes[:maxSMSLength-3]) + "..."
}

// normalizePhone converts a user-entered phone number to E.164 using the
// configured region rules. Already-international numbers pass through.
func normalizePhone(raw string, cfg SMSConfig) (string, error) {
	hadPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")

	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	if n == "" {
		return "", apperr.Validation("número de teléfono inválido: %q", raw)
	}

	if hadPlus {
		return "+" + n, nil
	}
	if cfg.TrunkPrefix != "" && strings.HasPrefix(n, cfg.TrunkPrefix) &&
		len(n) == len(cfg.TrunkPrefix)+cfg.LocalLength {
		return "+" + cfg.CountryCode + n[len(cfg.TrunkPrefix):], nil
	}
	if cfg.LocalLength > 0 && len(n) == cfg.LocalLength {
		return "+" + cfg.CountryCode + n, nil
	}
	if strings.HasPrefix(n, cfg.CountryCode) {
		return "+" + n, nil
	}
	return "", apperr.Validation("número de teléfono inválido: %q", raw)
}
