package outcomes

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// auditTTL bounds how long outcome audit rows are kept.
const auditTTL = 90 * 24 * time.Hour

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type auditRecord struct {
	PatientID  string `dynamodbav:"patientId"`
	EventID    string `dynamodbav:"eventId"`
	Action     string `dynamodbav:"action"`
	NextAction string `dynamodbav:"nextAction"`
	Status     string `dynamodbav:"status"`
	Kind       string `dynamodbav:"kind,omitempty"`
	Reason     string `dynamodbav:"cancellationReason,omitempty"`
	Reply      string `dynamodbav:"reply,omitempty"`
	ReceivedAt string `dynamodbav:"receivedAt"`
	ExpiresAt  int64  `dynamodbav:"expiresAt"`
}

// DynamoSink writes an audit row per outcome, keyed by patient and event.
type DynamoSink struct {
	client    dynamoAPI
	tableName string
}

// NewDynamoSink returns nil when client or tableName is missing.
func NewDynamoSink(client dynamoAPI, tableName string) *DynamoSink {
	if client == nil || tableName == "" {
		return nil
	}
	return &DynamoSink{client: client, tableName: tableName}
}

func (s *DynamoSink) Name() string { return "dynamodb" }

func (s *DynamoSink) Publish(ctx context.Context, evt Event) error {
	o := evt.Outcome
	received := o.ReceivedAt
	if received.IsZero() {
		received = evt.PublishedAt
	}
	rec := auditRecord{
		PatientID:  o.PatientID,
		EventID:    evt.EventID,
		Action:     string(o.Action),
		NextAction: string(o.NextAction),
		Status:     o.Status,
		Kind:       string(o.Kind),
		Reason:     o.CancellationReason,
		Reply:      o.Reply,
		ReceivedAt: received.UTC().Format(time.RFC3339Nano),
		ExpiresAt:  evt.PublishedAt.Add(auditTTL).Unix(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("outcomes: failed to marshal audit record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(eventId)"),
	})
	if err != nil {
		return fmt.Errorf("outcomes: failed to persist audit record: %w", err)
	}
	return nil
}
