package connections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/veldmed/practice-platform/pkg/logging"
)

// partitionKey groups all connection rows; the sort key is the sender identity.
const partitionKey = "user"

// Provider identifies the external email-sending service for a connection.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
)

// EmailConnection is the stored OAuth credential pair for one sender identity.
// Rows are created by the out-of-band connect flow; this package only reads
// them and merges refreshed tokens back.
type EmailConnection struct {
	Identity     string   `dynamodbav:"identity" json:"identity"`
	Provider     Provider `dynamodbav:"provider" json:"provider"`
	AccessToken  string   `dynamodbav:"accessToken" json:"-"`
	RefreshToken string   `dynamodbav:"refreshToken,omitempty" json:"-"`
	UpdatedAt    string   `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// ErrNotFound indicates no connection row exists for the sender identity.
var ErrNotFound = errors.New("connections: not found")

// ErrNotConnected is the resolver outcome surfaced to users: either no row
// exists or the stored access token is empty. The user-facing remedy is the
// same in both cases (reconnect in settings).
var ErrNotConnected = errors.New("connections: email not connected")

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store reads and updates EmailConnection rows in DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("connections: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("connections: table name cannot be empty")
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

// Get fetches the connection row for a sender identity.
func (s *Store) Get(ctx context.Context, identity string) (*EmailConnection, error) {
	if identity == "" {
		return nil, errors.New("connections: identity required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       rowKey(identity),
	})
	if err != nil {
		return nil, fmt.Errorf("connections: failed to fetch %s: %w", identity, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var conn EmailConnection
	if err := attributevalue.UnmarshalMap(out.Item, &conn); err != nil {
		return nil, fmt.Errorf("connections: failed to decode row: %w", err)
	}
	if conn.Identity == "" {
		conn.Identity = identity
	}
	return &conn, nil
}

// Resolve looks up a connection and verifies it is usable for sending. Both a
// missing row and an empty access token surface as ErrNotConnected; the
// internal distinction is logged.
func (s *Store) Resolve(ctx context.Context, identity string) (*EmailConnection, error) {
	conn, err := s.Get(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("connection row missing", "identity", identity)
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	if conn.AccessToken == "" {
		s.logger.Info("connection row has no access token", "identity", identity, "provider", conn.Provider)
		return nil, ErrNotConnected
	}
	return conn, nil
}

// UpdateTokens merges refreshed tokens into an existing row. Only the token
// fields change; when the provider issued no new refresh token the stored one
// is left untouched. The write is unconditional, so concurrent refreshes are
// last-write-wins.
func (s *Store) UpdateTokens(ctx context.Context, identity, accessToken, refreshToken string) error {
	if identity == "" {
		return errors.New("connections: identity required")
	}
	if accessToken == "" {
		return errors.New("connections: access token required")
	}

	expression := "SET accessToken = :access, updatedAt = :updated"
	values := map[string]types.AttributeValue{
		":access":  &types.AttributeValueMemberS{Value: accessToken},
		":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	if refreshToken != "" {
		expression += ", refreshToken = :refresh"
		values[":refresh"] = &types.AttributeValueMemberS{Value: refreshToken}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       rowKey(identity),
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("connections: failed to update tokens for %s: %w", identity, err)
	}
	return nil
}

func rowKey(identity string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":       &types.AttributeValueMemberS{Value: partitionKey},
		"identity": &types.AttributeValueMemberS{Value: identity},
	}
}
