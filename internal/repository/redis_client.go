package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"lead-responder/internal/domain"
)

const defaultRedisPrefix = "lead-responder:"

// RedisStore keeps seen-state in a single Redis hash: field = conversation id,
// value = last processed message id.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

func NewRedisStore(client redis.Cmdable, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, key: prefix + "seen"}, nil
}

func (s *RedisStore) LastSeen(ctx context.Context, conversationID domain.ID) (domain.ID, bool, error) {
	v, err := s.client.HGet(ctx, s.key, conversationID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("repository: redis LastSeen: %w", err)
	}
	return domain.ID(v), true, nil
}

func (s *RedisStore) MarkSeen(ctx context.Context, conversationID, messageID domain.ID) error {
	if conversationID.Empty() {
		return errors.New("repository: MarkSeen: conversation id is required")
	}
	if err := s.client.HSet(ctx, s.key, conversationID.String(), messageID.String()).Err(); err != nil {
		return fmt.Errorf("repository: redis MarkSeen: %w", err)
	}
	return nil
}
