package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/resend/resend-go/v2"
)

type Publisher interface {
	Publish(ctx context.Context, s Summary) error
}

// LogPublisher writes the summary to the log, used for local runs.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "summary")}
}

func (p *LogPublisher) Publish(ctx context.Context, s Summary) error {
	p.logger.InfoContext(ctx, "cleanup summary",
		"stack", s.Stack,
		"expired", s.Expired,
		"one_week", s.OneWeek,
		"one_month", s.OneMonth,
		"unactivated", s.Unactivated,
		"failures", s.Failures,
	)
	return nil
}

// snsAPI is the slice of *sns.Client used here.
type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSPublisher struct {
	client   snsAPI
	topicARN string
}

func NewSNSPublisher(client snsAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) Publish(ctx context.Context, s Summary) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(SummarySubject),
		Message:  aws.String(s.Message()),
	})
	if err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

// EmailPublisher mails the summary through Resend.
type EmailPublisher struct {
	client *resend.Client
	from   string
	to     string
}

func NewEmailPublisher(apiKey, from, to string) *EmailPublisher {
	return NewEmailPublisherWithClient(resend.NewClient(apiKey), from, to)
}

// NewEmailPublisherWithClient sends through a preconfigured client, for example one whose
// BaseURL points at a relay.
func NewEmailPublisherWithClient(client *resend.Client, from, to string) *EmailPublisher {
	return &EmailPublisher{client: client, from: from, to: to}
}

func (p *EmailPublisher) Publish(ctx context.Context, s Summary) error {
	params := &resend.SendEmailRequest{
		From:    p.from,
		To:      []string{p.to},
		Subject: SummarySubject,
		Text:    s.Message(),
	}
	if _, err := p.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send summary email: %w", err)
	}
	return nil
}
