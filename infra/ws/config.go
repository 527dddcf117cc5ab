package ws

import "time"

// Config tunes the websocket transport.
type Config struct {
	ReadBufferSize    int `json:"read_buffer_size"`
	WriteBufferSize   int `json:"write_buffer_size"`
	MessageBufferSize int `json:"message_buffer_size"`
	MaxMessageBytes   int `json:"max_message_bytes"`
	HeartbeatSeconds  int `json:"heartbeat_seconds"`
	WriteWaitSeconds  int `json:"write_wait_seconds"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 1024
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = 1024
	}
	if c.MessageBufferSize <= 0 {
		c.MessageBufferSize = 64
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 4096
	}
	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = 30
	}
	if c.WriteWaitSeconds <= 0 {
		c.WriteWaitSeconds = 10
	}
}

func (c Config) heartbeat() time.Duration { return time.Duration(c.HeartbeatSeconds) * time.Second }
func (c Config) writeWait() time.Duration { return time.Duration(c.WriteWaitSeconds) * time.Second }
