package aws

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

var ErrEmptyDestination = errors.New("empty destination")

// EventTypeCartAbandoned is the event_type attribute of every published message.
const EventTypeCartAbandoned = "cart.abandoned"

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes raw messages to SNS topics.
type SNSClient struct {
	client snsAPI
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

// Publish sends message to topicArn and returns the SNS message id. A
// non-empty key is attached as the user_id attribute for subscription
// filter policies.
func (s *SNSClient) Publish(ctx context.Context, topicArn, key string, message []byte) (string, error) {
	if topicArn == "" {
		return "", ErrEmptyDestination
	}
	attrs := map[string]types.MessageAttributeValue{
		"event_type": {DataType: sdkaws.String("String"), StringValue: sdkaws.String(EventTypeCartAbandoned)},
	}
	if key != "" {
		attrs["user_id"] = types.MessageAttributeValue{DataType: sdkaws.String("String"), StringValue: sdkaws.String(key)}
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          sdkaws.String(topicArn),
		Message:           sdkaws.String(string(message)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("sns publish failed for topic %s: %w", topicArn, err)
	}
	return sdkaws.ToString(out.MessageId), nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *SNSClient) Close() error { return nil }
