package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm-agent-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// PersonaCache 缓存 persona 编号到已解析 persona 的映射。
// Get 未命中时返回 (nil, nil)。
type PersonaCache interface {
	Get(ctx context.Context, kind model.PersonaKind, number string) (*model.Persona, error)
	Set(ctx context.Context, persona *model.Persona) error
}

type redisPersonaCache struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewPersonaCache 创建一个基于 Redis 的 PersonaCache。
func NewPersonaCache(redisClient *redis.Client, ttl time.Duration) PersonaCache {
	return &redisPersonaCache{redisClient: redisClient, ttl: ttl}
}

func personaKey(kind model.PersonaKind, number string) string {
	return fmt.Sprintf("persona:%s:%s", kind, number)
}

func (c *redisPersonaCache) Get(ctx context.Context, kind model.PersonaKind, number string) (*model.Persona, error) {
	data, err := c.redisClient.Get(ctx, personaKey(kind, number)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get persona from cache: %w", err)
	}
	var persona model.Persona
	if err := json.Unmarshal(data, &persona); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached persona: %w", err)
	}
	return &persona, nil
}

func (c *redisPersonaCache) Set(ctx context.Context, persona *model.Persona) error {
	data, err := json.Marshal(persona)
	if err != nil {
		return fmt.Errorf("failed to marshal persona: %w", err)
	}
	if err := c.redisClient.Set(ctx, personaKey(persona.Kind, persona.Number), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set persona cache: %w", err)
	}
	return nil
}
