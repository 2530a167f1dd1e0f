//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/averlon/storefront/internal/domain/cart"
	"github.com/averlon/storefront/internal/storage/cartslot"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %s", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStore_RoundTrip(t *testing.T) {
	client := setupRedis(t)
	store := cartslot.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	saved := &cart.Cart{Lines: []cart.Line{
		{ProductID: "p1", Name: "Waffle", UnitPrice: decimal.RequireFromString("6.50"), Quantity: 2},
		{ProductID: "p2", Name: "Tiramisu", UnitPrice: decimal.RequireFromString("5.50"), Quantity: 1},
	}}
	require.NoError(t, store.Save(ctx, "u1", saved))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "p1", got.Lines[0].ProductID)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("6.50").Equal(got.Lines[0].UnitPrice))
}

func TestRedisStore_AbsentAndCleared(t *testing.T) {
	client := setupRedis(t)
	store := cartslot.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	got, err := store.Load(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(ctx, "u1", &cart.Cart{Lines: []cart.Line{
		{ProductID: "p1", Name: "Waffle", UnitPrice: decimal.New(650, -2), Quantity: 1},
	}}))
	require.NoError(t, store.Clear(ctx, "u1"))

	got, err = store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	client := setupRedis(t)
	store := cartslot.NewRedisStore(client, 500*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u1", &cart.Cart{Lines: []cart.Line{
		{ProductID: "p1", Name: "Waffle", UnitPrice: decimal.New(650, -2), Quantity: 1},
	}}))

	require.Eventually(t, func() bool {
		got, err := store.Load(ctx, "u1")
		return err == nil && got == nil
	}, 5*time.Second, 100*time.Millisecond, "slot expires after its TTL")
}
