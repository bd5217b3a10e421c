package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/parlorgames/parlor-backend/internal"
)

func setupRedis(t *testing.T) *Redis {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	rd := NewRedisFromClient(client)
	t.Cleanup(func() { _ = rd.Close() })

	require.NoError(t, rd.Ping(ctx))
	return rd
}

func TestRedisStateRoundTrip(t *testing.T) {
	rd := setupRedis(t)
	ctx := context.Background()

	_, err := rd.GetState(ctx, "r1")
	require.ErrorIs(t, err, ErrStateNotFound)

	state := &internal.GameState{
		RoomID:        "r1",
		GameType:      internal.GameTypePoker,
		Phase:         internal.PhasePlaying,
		RoundNumber:   3,
		TimeRemaining: 42_000,
		Scores:        map[string]int{"p1": 980, "p2": 1020},
	}
	require.NoError(t, rd.PutState(ctx, "r1", state, time.Minute))

	got, err := rd.GetState(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, state.RoomID, got.RoomID)
	require.Equal(t, state.Phase, got.Phase)
	require.Equal(t, state.TimeRemaining, got.TimeRemaining)
	require.Equal(t, state.Scores, got.Scores)

	require.NoError(t, rd.DeleteState(ctx, "r1"))
	_, err = rd.GetState(ctx, "r1")
	require.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStateTTL(t *testing.T) {
	rd := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rd.PutState(ctx, "r1", &internal.GameState{RoomID: "r1"}, 500*time.Millisecond))

	_, err := rd.GetState(ctx, "r1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := rd.GetState(ctx, "r1")
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}
