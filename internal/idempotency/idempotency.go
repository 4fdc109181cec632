// Package idempotency remembers the confirmation produced for an
// Idempotency-Key so a replay of the same booking request returns the
// original receipt instead of debiting seats twice.
package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotency returns a store over the given redis client. A nil client
// disables replay protection; Get and Set become no-ops.
func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	return &Idempotency{client: client, ttl: ttl}
}

// BookingReceipt is the replayable outcome of a completed booking request.
type BookingReceipt struct {
	Status      int       `json:"status"`
	BookingID   uuid.UUID `json:"booking_id"`
	TotalAmount float64   `json:"total_amount"`
}

// Get returns the receipt stored for key, or nil when the key is unseen.
func (i *Idempotency) Get(ctx context.Context, key string) (*BookingReceipt, error) {
	if i.client == nil || key == "" {
		return nil, nil
	}
	val, err := i.client.Get(ctx, "idemp:"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var receipt BookingReceipt
	if err := json.Unmarshal(val, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, receipt BookingReceipt) error {
	if i.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, "idemp:"+key, data, i.ttl).Err()
}
