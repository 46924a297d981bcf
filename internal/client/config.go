package client

import (
	"net/http"
	"time"
)

// Config controls how the client connects and joins.
type Config struct {
	URL      string
	UserID   string
	UserName string
	Role     string

	HandshakeTimeout time.Duration
	// ReadTimeout bounds a single read. Zero waits forever, which suits a
	// server that keeps the connection alive with pings.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	ReconnectAttempts int
	ReconnectDelay    time.Duration
	TypingTimeout     time.Duration

	UploadURL  string
	HTTPClient *http.Client
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Second,
		TypingTimeout:     3 * time.Second,
	}
}

func (c Config) validate() error {
	switch {
	case c.URL == "":
		return NewError(CodeInvalidConfig, "empty URL")
	case c.UserID == "" || c.UserName == "":
		return NewError(CodeInvalidConfig, "user id and name are required")
	}
	return nil
}
