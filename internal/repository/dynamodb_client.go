package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"lead-responder/internal/domain"
)

const skSeen = "SEEN#"

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps seen-state in a DynamoDB table keyed by PK/SK, so that it
// survives restarts and is shared by every invocation of the Lambda.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoStore creates a DynamoStore. A positive ttl sets the item "ttl"
// attribute so that idle conversations age out of the table.
func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID domain.ID) string {
	return "CONV#" + conversationID.String()
}

func (s *DynamoStore) key(conversationID domain.ID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK": &types.AttributeValueMemberS{Value: skSeen},
	}
}

// LastSeen returns the last processed message id for a conversation.
func (s *DynamoStore) LastSeen(ctx context.Context, conversationID domain.ID) (domain.ID, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(conversationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("repository: LastSeen get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", false, nil
	}
	id, err := strAttr(out.Item, "lastMessageId")
	if err != nil {
		return "", false, fmt.Errorf("repository: LastSeen decode: %w", err)
	}
	return domain.ID(id), true, nil
}

// MarkSeen records messageID as the last processed message of a conversation.
func (s *DynamoStore) MarkSeen(ctx context.Context, conversationID, messageID domain.ID) error {
	if conversationID.Empty() {
		return errors.New("repository: MarkSeen: conversation id is required")
	}
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      s.seenItem(conversationID, messageID),
	})
	if err != nil {
		return fmt.Errorf("repository: MarkSeen: %w", err)
	}
	return nil
}

func (s *DynamoStore) seenItem(conversationID, messageID domain.ID) map[string]types.AttributeValue {
	now := s.now().UTC()
	item := s.key(conversationID)
	item["conversationId"] = &types.AttributeValueMemberS{Value: conversationID.String()}
	item["lastMessageId"] = &types.AttributeValueMemberS{Value: messageID.String()}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
	if s.ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(s.ttl).Unix())}
	}
	return item
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
