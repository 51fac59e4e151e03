package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkpost/inkpost/internal/model"
)

const (
	principalKeyPrefix = "identity:principal:"
	// PrincipalTTL bounds how long a revoked key or renamed user stays visible.
	PrincipalTTL = 5 * time.Minute
)

// cachedPrincipal is the Redis representation of a principal.
type cachedPrincipal struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

// GetPrincipal returns the cached principal for cacheKey.
// Misses and corrupted entries return (nil, nil).
func (c *Cache) GetPrincipal(ctx context.Context, cacheKey string) (*model.Principal, error) {
	data, err := c.client.Get(ctx, principalKeyPrefix+cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return decodePrincipal(data), nil
}

// SetPrincipal caches principal under cacheKey for PrincipalTTL.
func (c *Cache) SetPrincipal(ctx context.Context, cacheKey string, principal *model.Principal) error {
	data, err := json.Marshal(cachedPrincipal{
		ID:    principal.ID,
		Email: principal.Email,
		Name:  principal.Name,
		Image: principal.Image,
	})
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}
	return c.client.Set(ctx, principalKeyPrefix+cacheKey, data, PrincipalTTL).Err()
}

func decodePrincipal(data []byte) *model.Principal {
	var cached cachedPrincipal
	if err := json.Unmarshal(data, &cached); err != nil || cached.ID == "" {
		return nil
	}
	return &model.Principal{
		ID:    cached.ID,
		Email: cached.Email,
		Name:  cached.Name,
		Image: cached.Image,
	}
}
