package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.ConnStr == "" {
		return errors.New("database.conn_str is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return errors.New("database.max_open_conns must be >= 1")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if len(c.Auth.Secret) < 32 {
		return errors.New("auth.secret must be at least 32 bytes")
	}
	if c.Game.TickInterval <= 0 {
		return errors.New("game.tick_interval must be > 0")
	}
	if c.Game.StartDelay < 0 {
		return errors.New("game.start_delay must be >= 0")
	}
	if c.Game.BetRateLimit < 1 {
		return errors.New("game.bet_rate_limit must be >= 1")
	}
	if c.Uploads.MaxBytes < 1 {
		return errors.New("uploads.max_bytes must be >= 1")
	}
	return nil
}
