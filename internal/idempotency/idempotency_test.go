package idempotency_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/event-ticketing/internal/idempotency"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	client := redisclient.NewClient(&redisclient.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIdempotency_ReceiptReplay(t *testing.T) {
	ctx := context.Background()
	idemp := idempotency.NewIdempotency(startRedis(t), time.Hour)

	receipt, err := idemp.Get(ctx, "key-1234567890abcdef")
	if err != nil {
		t.Fatal(err)
	}
	if receipt != nil {
		t.Fatalf("unseen key must miss, got %+v", receipt)
	}

	stored := idempotency.BookingReceipt{
		Status:      http.StatusCreated,
		BookingID:   uuid.New(),
		TotalAmount: 80,
	}
	if err := idemp.Set(ctx, "key-1234567890abcdef", stored); err != nil {
		t.Fatal(err)
	}

	receipt, err = idemp.Get(ctx, "key-1234567890abcdef")
	if err != nil {
		t.Fatal(err)
	}
	if receipt == nil {
		t.Fatal("expected stored receipt")
	}
	if receipt.Status != http.StatusCreated || receipt.BookingID != stored.BookingID || receipt.TotalAmount != 80 {
		t.Errorf("replayed receipt differs from stored: %+v", receipt)
	}

	// Another key must not see this booking.
	receipt, err = idemp.Get(ctx, "key-aaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatal(err)
	}
	if receipt != nil {
		t.Errorf("wrong key returned a receipt: %+v", receipt)
	}
}

func TestIdempotency_NilClientIsNoOp(t *testing.T) {
	ctx := context.Background()
	idemp := idempotency.NewIdempotency(nil, time.Hour)

	if err := idemp.Set(ctx, "key-1234567890abcdef", idempotency.BookingReceipt{Status: http.StatusCreated}); err != nil {
		t.Fatal(err)
	}
	receipt, err := idemp.Get(ctx, "key-1234567890abcdef")
	if err != nil {
		t.Fatal(err)
	}
	if receipt != nil {
		t.Errorf("nil client must never replay, got %+v", receipt)
	}
}
