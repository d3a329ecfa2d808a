package outcomes

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink queues outcome events for the staff task consumer.
type SQSSink struct {
	client   sqsAPI
	queueURL string
}

// NewSQSSink returns nil when client or queueURL is missing.
func NewSQSSink(client sqsAPI, queueURL string) *SQSSink {
	if client == nil || queueURL == "" {
		return nil
	}
	return &SQSSink{client: client, queueURL: queueURL}
}

func (s *SQSSink) Name() string { return "sqs" }

func (s *SQSSink) Publish(ctx context.Context, evt Event) error {
	body, err := evt.encode()
	if err != nil {
		return err
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"next_action": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(evt.Outcome.NextAction)),
			},
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.Type),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("outcomes: failed to send SQS message: %w", err)
	}
	return nil
}
