package config

import (
	"os"
	"strconv"
	"time"

	"broadcast-room/internal/room"
)

type Config struct {
	Env             string
	Port            string
	DefaultRoomID   string
	Room            room.Config
	RoomLimits      room.Limits
	SweepInterval   time.Duration
	SendBuffer      int
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	DatabaseDSN     string
	ArchiveQueue    int
	AMQPURL         string
	AMQPExchange    string
	AuditRoutingKey string
	OTLPEndpoint    string
	ShutdownTimeout time.Duration
}

func Load() *Config {
	defaults := room.DefaultConfig()
	return &Config{
		Env:           getEnv("ENV", "development"),
		Port:          getEnv("PORT", "8083"),
		DefaultRoomID: getEnv("ROOM_DEFAULT_ID", "broadcast"),
		Room: room.Config{
			HistorySize:      getEnvInt("ROOM_HISTORY_SIZE", defaults.HistorySize),
			InitialMessages:  getEnvInt("ROOM_INITIAL_MESSAGES", defaults.InitialMessages),
			TypingTTL:        getEnvDuration("ROOM_TYPING_TTL", defaults.TypingTTL),
			MaxContentLength: getEnvInt("ROOM_MAX_CONTENT", defaults.MaxContentLength),
		},
		RoomLimits: room.Limits{
			MaxRooms:    getEnvInt("ROOM_MAX_ROOMS", 1000),
			IdleTimeout: getEnvDuration("ROOM_IDLE_TIMEOUT", 10*time.Minute),
		},
		SweepInterval:   getEnvDuration("ROOM_SWEEP_INTERVAL", time.Second),
		SendBuffer:      getEnvInt("WS_SEND_BUFFER", 256),
		WriteTimeout:    getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		PongTimeout:     getEnvDuration("WS_PONG_TIMEOUT", 60*time.Second),
		DatabaseDSN:     getEnv("DB_DSN", ""),
		ArchiveQueue:    getEnvInt("ARCHIVE_QUEUE_SIZE", 1024),
		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "room_events"),
		AuditRoutingKey: getEnv("AUDIT_ROUTING_KEY", "audit.room"),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseDSN != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
