package aws

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// SQSProducer sends messages to SQS queues. A destination is either a queue
// URL or a queue name; names are resolved once and cached.
type SQSProducer struct {
	client sqsAPI

	mu   sync.Mutex
	urls map[string]string
}

func NewSQSProducer(cfg sdkaws.Config) *SQSProducer {
	return &SQSProducer{client: sqs.NewFromConfig(cfg), urls: make(map[string]string)}
}

// Publish sends body to the destination queue and returns the SQS message id.
// A non-empty key is attached as the user_id attribute.
func (p *SQSProducer) Publish(ctx context.Context, destination, key string, body []byte) (string, error) {
	queueURL, err := p.queueURL(ctx, destination)
	if err != nil {
		return "", err
	}
	attrs := map[string]types.MessageAttributeValue{
		"event_type": {
			DataType:    sdkaws.String("String"),
			StringValue: sdkaws.String(EventTypeCartAbandoned),
		},
	}
	if key != "" {
		attrs["user_id"] = types.MessageAttributeValue{DataType: sdkaws.String("String"), StringValue: sdkaws.String(key)}
	}
	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          sdkaws.String(queueURL),
		MessageBody:       sdkaws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", queueURL, err)
	}
	return sdkaws.ToString(out.MessageId), nil
}

func (p *SQSProducer) Close() error { return nil }

func (p *SQSProducer) queueURL(ctx context.Context, destination string) (string, error) {
	if destination == "" {
		return "", ErrEmptyDestination
	}
	if strings.HasPrefix(destination, "http://") || strings.HasPrefix(destination, "https://") {
		return destination, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if url, ok := p.urls[destination]; ok {
		return url, nil
	}
	out, err := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: sdkaws.String(destination)})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL for %s: %w", destination, err)
	}
	url := sdkaws.ToString(out.QueueUrl)
	p.urls[destination] = url
	return url, nil
}
