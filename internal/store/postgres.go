package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id          TEXT PRIMARY KEY,
	game_type   TEXT NOT NULL,
	host_id     TEXT NOT NULL DEFAULT '',
	max_players INT  NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS players (
	id        TEXT NOT NULL,
	room_id   TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	is_host   BOOLEAN NOT NULL DEFAULT false,
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (room_id, id)
);
`

// Postgres implements RoomStore on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and ensures the schema exists.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() { s.pool.Close() }

func (s *Postgres) CreateRoom(ctx context.Context, room Room) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, game_type, host_id, max_players, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		room.ID, room.GameType, room.HostID, room.MaxPlayers, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *Postgres) GetRoom(ctx context.Context, roomID string) (Room, error) {
	room := Room{ID: roomID}
	row := s.pool.QueryRow(ctx,
		`SELECT game_type, host_id, max_players, created_at FROM rooms WHERE id = $1`, roomID)
	err := row.Scan(&room.GameType, &room.HostID, &room.MaxPlayers, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func (s *Postgres) UpdateRoom(ctx context.Context, room Room) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms SET game_type = $2, host_id = $3, max_players = $4 WHERE id = $1`,
		room.ID, room.GameType, room.HostID, room.MaxPlayers)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *Postgres) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func (s *Postgres) UpsertPlayer(ctx context.Context, player PlayerRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (id, room_id, name, is_host, joined_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (room_id, id) DO UPDATE SET name = $3, is_host = $4`,
		player.ID, player.RoomID, player.Name, player.IsHost, player.JoinedAt)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

func (s *Postgres) RemovePlayer(ctx context.Context, roomID, playerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM players WHERE room_id = $1 AND id = $2`, roomID, playerID)
	if err != nil {
		return fmt.Errorf("remove player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

func (s *Postgres) RoomPlayers(ctx context.Context, roomID string) ([]PlayerRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, is_host, joined_at FROM players WHERE room_id = $1 ORDER BY joined_at`, roomID)
	if err != nil {
		return nil, fmt.Errorf("room players: %w", err)
	}
	defer rows.Close()

	var records []PlayerRecord
	for rows.Next() {
		record := PlayerRecord{RoomID: roomID}
		if err := rows.Scan(&record.ID, &record.Name, &record.IsHost, &record.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
