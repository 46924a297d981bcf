package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"broadcast-room/internal/room"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ROOM_DEFAULT_ID", "ROOM_HISTORY_SIZE", "ROOM_TYPING_TTL", "DB_DSN", "AMQP_URL", "ROOM_MAX_ROOMS", "ROOM_IDLE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "broadcast", cfg.DefaultRoomID)
	assert.Equal(t, 100, cfg.Room.HistorySize)
	assert.Equal(t, 50, cfg.Room.InitialMessages)
	assert.Equal(t, 5*time.Second, cfg.Room.TypingTTL)
	assert.Equal(t, 4096, cfg.Room.MaxContentLength)
	assert.Equal(t, time.Second, cfg.SweepInterval)
	assert.Equal(t, "room_events", cfg.AMQPExchange)
	assert.Equal(t, 1000, cfg.RoomLimits.MaxRooms)
	assert.Equal(t, 10*time.Minute, cfg.RoomLimits.IdleTimeout)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ROOM_HISTORY_SIZE", "10")
	t.Setenv("ROOM_TYPING_TTL", "2s")
	t.Setenv("DB_DSN", "postgres://localhost/rooms")
	t.Setenv("ENV", "production")
	t.Setenv("ROOM_MAX_ROOMS", "5")
	t.Setenv("ROOM_IDLE_TIMEOUT", "1m")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 10, cfg.Room.HistorySize)
	assert.Equal(t, 2*time.Second, cfg.Room.TypingTTL)
	assert.True(t, cfg.ArchiveEnabled())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, room.Limits{MaxRooms: 5, IdleTimeout: time.Minute}, cfg.RoomLimits)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ROOM_HISTORY_SIZE", "lots")
	t.Setenv("ROOM_SWEEP_INTERVAL", "-1s")
	t.Setenv("WS_SEND_BUFFER", "0")

	cfg := Load()

	assert.Equal(t, 100, cfg.Room.HistorySize)
	assert.Equal(t, time.Second, cfg.SweepInterval)
	assert.Equal(t, 256, cfg.SendBuffer)
}
