// Package history records the outcome of every prescription email send.
// Records hold metadata only; the rendered document and message body are
// never persisted.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/veldmed/practice-platform/pkg/logging"
)

const recordTTL = 90 * 24 * time.Hour

// Outcome is the terminal state of a send attempt.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// ErrRecordNotFound indicates the requested record ID does not exist.
var ErrRecordNotFound = errors.New("history: record not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Record is one send attempt. PrescriptionID and Recipient identify what
// went where; the attachment itself is not stored.
type Record struct {
	RecordID       string  `dynamodbav:"recordId" json:"recordId"`
	SenderIdentity string  `dynamodbav:"senderIdentity" json:"senderIdentity"`
	Provider       string  `dynamodbav:"provider" json:"provider"`
	PrescriptionID string  `dynamodbav:"prescriptionId,omitempty" json:"prescriptionId,omitempty"`
	Recipient      string  `dynamodbav:"recipient" json:"recipient"`
	Outcome        Outcome `dynamodbav:"outcome" json:"outcome"`
	DocumentBytes  int     `dynamodbav:"documentBytes,omitempty" json:"documentBytes,omitempty"`
	ErrorMessage   string  `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	TokenRefreshed bool    `dynamodbav:"tokenRefreshed,omitempty" json:"tokenRefreshed,omitempty"`
	CreatedAt      string  `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt      int64   `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// Recorder is the write side consumed by the send handler.
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
}

// Store persists send records to DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Recorder = (*Store)(nil)

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("history: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("history: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Record inserts a send record, assigning an ID and timestamps.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("history: record cannot be nil")
	}
	now := time.Now().UTC()
	if rec.RecordID == "" {
		rec.RecordID = uuid.NewString()
	}
	rec.CreatedAt = now.Format(time.RFC3339Nano)
	if rec.ExpiresAt == 0 {
		rec.ExpiresAt = now.Add(recordTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("history: failed to marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(recordId)"),
	})
	if err != nil {
		return fmt.Errorf("history: failed to persist record: %w", err)
	}
	return nil
}

// Get fetches a record by ID.
func (s *Store) Get(ctx context.Context, recordID string) (*Record, error) {
	if recordID == "" {
		return nil, errors.New("history: recordID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"recordId": &types.AttributeValueMemberS{Value: recordID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: failed to fetch record: %w", err)
	}
	if out.Item == nil {
		return nil, ErrRecordNotFound
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("history: failed to decode record: %w", err)
	}
	return &rec, nil
}

// ListBySender returns a sender's records from the senderIdentity-createdAt
// GSI, newest first.
func (s *Store) ListBySender(ctx context.Context, identity string, limit int32) ([]Record, error) {
	if identity == "" {
		return nil, errors.New("history: identity required")
	}
	if limit <= 0 {
		limit = 50
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String("senderIdentity-createdAt-index"),
		KeyConditionExpression: aws.String("senderIdentity = :identity"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":identity": &types.AttributeValueMemberS{Value: identity},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("history: failed to query records: %w", err)
	}

	records := make([]Record, 0, len(out.Items))
	for _, item := range out.Items {
		var rec Record
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			s.logger.Warn("skipping undecodable history item", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
