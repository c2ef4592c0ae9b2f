package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"academy-assistant/internal/domain"
)

// maxStoredTurns caps the per-conversation message list.
const maxStoredTurns = 100

// RedisStore keeps transcripts in Redis: a JSON list at conv:<id>:msgs and a
// hash at conv:<id>:meta, both expiring 30 days after the last write.
type RedisStore struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisStore(rdb redis.Cmdable) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	return &RedisStore{rdb: rdb, now: time.Now}, nil
}

// OpenRedis connects to url and verifies the connection with PING.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("repository: redis url must not be empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("repository: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("repository: redis ping: %w", err)
	}
	return client, nil
}

func msgsKey(conversationID string) string {
	return "conv:" + conversationID + ":msgs"
}

func metaKey(conversationID string) string {
	return "conv:" + conversationID + ":meta"
}

func (s *RedisStore) GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.rdb.LRange(ctx, msgsKey(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory lrange: %w", err)
	}
	msgs := make([]domain.Message, 0, len(raw))
	for _, r := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) GetConversationTurnCount(ctx context.Context, conversationID string) (int, error) {
	v, err := s.rdb.HGet(ctx, metaKey(conversationID), "turns").Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repository: GetConversationTurnCount hget: %w", err)
	}
	turns, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("repository: GetConversationTurnCount decode turns: %w", err)
	}
	return turns, nil
}

func (s *RedisStore) SaveCompletedTurn(ctx context.Context, conversationID, question, answer, status string, turns int) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: SaveCompletedTurn: conversation id is required")
	}
	now := s.now()
	msg := newMessage(conversationID, question, answer, status, now)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("repository: SaveCompletedTurn marshal: %w", err)
	}
	meta := newConversationMeta(conversationID, turns, now)

	mk, hk := msgsKey(conversationID), metaKey(conversationID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, mk, payload)
		pipe.LTrim(ctx, mk, -maxStoredTurns, -1)
		pipe.HSet(ctx, hk, "turns", meta.Turns, "lastActivity", meta.LastActivity)
		pipe.Expire(ctx, mk, ttlDuration)
		pipe.Expire(ctx, hk, ttlDuration)
		return nil
	})
	if err != nil {
		return fmt.Errorf("repository: SaveCompletedTurn: %w", err)
	}
	return nil
}
