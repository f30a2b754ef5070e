package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesSendAPI is the slice of the SES v2 client we use, extracted so
// tests can substitute a fake.
type sesSendAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers directly through SES v2. Used when no gateway is
// configured.
type SESSender struct {
	client      sesSendAPI
	fromAddress string
	fromName    string
	recipients  []string
}

// NewSESSender creates the fallback sender using the default AWS
// credential chain.
func NewSESSender(ctx context.Context, region, fromAddress, fromName string, recipients []string) (*SESSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{
		client:      sesv2.NewFromConfig(awsCfg),
		fromAddress: fromAddress,
		fromName:    fromName,
		recipients:  recipients,
	}, nil
}

// SetClient allows overriding the SES client (useful for testing)
func (s *SESSender) SetClient(client sesSendAPI) {
	s.client = client
}

// Send implements Sender.
func (s *SESSender) Send(ctx context.Context, req Request) (*Outcome, error) {
	if len(s.recipients) == 0 {
		return nil, fmt.Errorf("no SES recipients configured")
	}

	from := s.fromAddress
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(req.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(req.HTML)},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return nil, fmt.Errorf("SES send: %w", err)
	}

	log.Printf("[Mailer] sent %q via SES to %d recipients", req.Name, len(s.recipients))
	return &Outcome{
		SentCount: len(s.recipients),
		Transport: "ses",
	}, nil
}
