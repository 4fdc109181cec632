package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// GetEvent returns the cached event detail, or nil on a miss.
func (c *Cache) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	val, err := c.client.Get(ctx, "event:"+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var event domain.Event
	if err := json.Unmarshal(val, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *Cache) SetEvent(ctx context.Context, event *domain.Event, ttl time.Duration) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "event:"+event.ID.String(), data, ttl).Err()
}

// InvalidateEvent drops the cached detail after a booking or an admin edit
// changes availability.
func (c *Cache) InvalidateEvent(ctx context.Context, id string) error {
	return c.client.Del(ctx, "event:"+id).Err()
}
