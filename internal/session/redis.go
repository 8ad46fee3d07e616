package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chateval/backend/pkg/logger"
)

// RedisStore backs the session document store with Redis so documents
// survive process restarts and are shared across replicas. Keys expire
// after the configured TTL instead of counting sessions.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func documentKey(sessionID string) string {
	return fmt.Sprintf("document:%s", sessionID)
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	err = s.client.Set(ctx, documentKey(sessionID), data, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	logger.Debug("Document stored",
		zap.String("session_id", sessionID),
		zap.Int("text_length", len(doc.Text)),
	)

	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (Document, bool, error) {
	data, err := s.client.Get(ctx, documentKey(sessionID)).Bytes()
	if err == redis.Nil {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("failed to get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, false, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return doc, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	err := s.client.Del(ctx, documentKey(sessionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
