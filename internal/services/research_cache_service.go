package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ResultRow is one structured record from a research response. Rows keep
// whatever fields the provider produced; consumers pick out the ones
// they recognize.
type ResultRow map[string]interface{}

// CachedResearch is the payload stored for reuse. Token and cost figures
// are the ones from the original provider call; responses served from
// cache report zero for both.
type CachedResearch struct {
	Rows               []ResultRow `json:"rows"`
	Summary            string      `json:"summary,omitempty"`
	ModelUsed          string      `json:"model_used"`
	PromptTokens       int         `json:"prompt_tokens"`
	CompletionTokens   int         `json:"completion_tokens"`
	EstimatedCostCents int         `json:"estimated_cost_cents"`
	CreatedAt          time.Time   `json:"created_at"`
}

// NormalizeCacheKey folds case and whitespace so repeated natural
// language queries land on the same entry. Punctuation is preserved.
func NormalizeCacheKey(query string, maxResults int) string {
	folded := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("research:%s:%d", folded, maxResults)
}

type RedisResearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisResearchCache(client *redis.Client, ttl time.Duration) ResearchCache {
	return &RedisResearchCache{client: client, ttl: ttl}
}

// Lookup returns nil without error on a miss. Entries that fail to
// decode are treated as misses and evicted.
func (c *RedisResearchCache) Lookup(ctx context.Context, query string, maxResults int) (*CachedResearch, error) {
	key := NormalizeCacheKey(query, maxResults)
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	var entry CachedResearch
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Evicting undecodable cache entry")
		c.client.Del(ctx, key)
		return nil, nil
	}
	return &entry, nil
}

// Store upserts, overwriting any entry for the same normalized key.
func (c *RedisResearchCache) Store(ctx context.Context, query string, maxResults int, entry *CachedResearch) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	key := NormalizeCacheKey(query, maxResults)
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}
