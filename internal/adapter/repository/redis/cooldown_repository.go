package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CooldownRepository is the Redis-backed creation-cooldown store, for
// deployments running more than one control-plane replica. The window is a
// key with the cooldown as TTL, written only once a creation is accepted:
// every replica sees the same window until it expires, and rejected requests
// never arm it.
type CooldownRepository struct {
	client *redis.Client
	window time.Duration
}

func NewCooldownRepository(client *redis.Client, window time.Duration) *CooldownRepository {
	return &CooldownRepository{client: client, window: window}
}

func (r *CooldownRepository) InCooldown(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	n, err := r.client.Exists(ctx, cooldownKey(ownerID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cooldown: %w", err)
	}
	return n > 0, nil
}

func (r *CooldownRepository) Mark(ctx context.Context, ownerID uuid.UUID) error {
	if err := r.client.Set(ctx, cooldownKey(ownerID), 1, r.window).Err(); err != nil {
		return fmt.Errorf("mark cooldown: %w", err)
	}
	return nil
}

func cooldownKey(ownerID uuid.UUID) string {
	return "cooldown:store_create:" + ownerID.String()
}
