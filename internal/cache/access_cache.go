package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/organization/domain"
)

const (
	keyAccessFacts = "identity:access:%s"

	defaultAccessTTL = 5 * time.Minute
)

type accessCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAccessCache stores per-user access facts in Redis. It returns a nil
// interface when no client is configured.
func NewAccessCache(client *redis.Client, cfg config.Config) domain.AccessCache {
	if client == nil {
		return nil
	}
	ttl := cfg.Redis.CacheTTL
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	return &accessCache{client: client, ttl: ttl}
}

func (c *accessCache) GetFacts(ctx context.Context, userID domain.UserID) ([]domain.AccessFacts, bool, error) {
	raw, err := c.client.Get(ctx, accessKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var facts []domain.AccessFacts
	if err := json.Unmarshal(raw, &facts); err != nil {
		// Undecodable entries are treated as a miss and overwritten.
		return nil, false, nil
	}
	return facts, true, nil
}

func (c *accessCache) SetFacts(ctx context.Context, userID domain.UserID, facts []domain.AccessFacts) error {
	if facts == nil {
		facts = []domain.AccessFacts{}
	}
	raw, err := json.Marshal(facts)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, accessKey(userID), raw, c.ttl).Err()
}

func (c *accessCache) Invalidate(ctx context.Context, userIDs ...domain.UserID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, accessKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

func accessKey(userID domain.UserID) string {
	return fmt.Sprintf(keyAccessFacts, userID.String())
}
