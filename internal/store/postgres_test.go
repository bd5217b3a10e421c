package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/parlorgames/parlor-backend/internal"
)

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("parlor"),
		tcpostgres.WithUsername("parlor"),
		tcpostgres.WithPassword("parlor"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pg, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	return pg
}

func TestPostgresRoomLifecycle(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()

	_, err := pg.GetRoom(ctx, "r1")
	require.ErrorIs(t, err, ErrRoomNotFound)

	room := Room{
		ID:         "r1",
		GameType:   internal.GameTypeDrawing,
		HostID:     "p1",
		MaxPlayers: 8,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, pg.CreateRoom(ctx, room))

	got, err := pg.GetRoom(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, internal.GameTypeDrawing, got.GameType)
	require.Equal(t, "p1", got.HostID)

	room.HostID = "p2"
	require.NoError(t, pg.UpdateRoom(ctx, room))
	got, err = pg.GetRoom(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "p2", got.HostID)

	require.ErrorIs(t, pg.UpdateRoom(ctx, Room{ID: "ghost"}), ErrRoomNotFound)

	require.NoError(t, pg.DeleteRoom(ctx, "r1"))
	_, err = pg.GetRoom(ctx, "r1")
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestPostgresPlayerRecords(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, pg.CreateRoom(ctx, Room{
		ID: "r1", GameType: internal.GameTypePoker, MaxPlayers: 8, CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, pg.UpsertPlayer(ctx, PlayerRecord{
		ID: "p1", RoomID: "r1", Name: "Alice", IsHost: true, JoinedAt: time.Now().UTC(),
	}))
	require.NoError(t, pg.UpsertPlayer(ctx, PlayerRecord{
		ID: "p2", RoomID: "r1", Name: "Bob", JoinedAt: time.Now().UTC().Add(time.Second),
	}))

	players, err := pg.RoomPlayers(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, players, 2)
	require.Equal(t, "p1", players[0].ID, "ordered by join time")
	require.True(t, players[0].IsHost)

	// Upsert renames without duplicating.
	require.NoError(t, pg.UpsertPlayer(ctx, PlayerRecord{
		ID: "p2", RoomID: "r1", Name: "Bobby", JoinedAt: time.Now().UTC(),
	}))
	players, err = pg.RoomPlayers(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, players, 2)

	require.NoError(t, pg.RemovePlayer(ctx, "r1", "p1"))
	require.ErrorIs(t, pg.RemovePlayer(ctx, "r1", "p1"), ErrPlayerNotFound)

	// Dropping the room cascades to its players.
	require.NoError(t, pg.DeleteRoom(ctx, "r1"))
	players, err = pg.RoomPlayers(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, players)
}
