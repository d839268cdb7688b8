package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

type BetTier struct {
	ID      string `json:"id"`
	BaseBet int64  `json:"base_bet"`
}

type GameConfig struct {
	DefaultTier         string    `json:"default_tier"`
	Tiers               []BetTier `json:"tiers"`
	TurnDurationSeconds int       `json:"turn_duration_seconds"`
	// RegameDelaySeconds is how long a voided round waits before the
	// fresh deal.
	RegameDelaySeconds int `json:"regame_delay_seconds"`
	// SweepIntervalSeconds is the timeout supervisor's polling period.
	SweepIntervalSeconds int   `json:"sweep_interval_seconds"`
	StartingChips        int64 `json:"starting_chips"`
	MaxSeats             int   `json:"max_seats"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		var c GameConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or defaults when
// no file was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		return &GameConfig{}
	}
	return cfg
}

// GetBaseBet returns the base bet for a given tier ID, or the default if not found.
func GetBaseBet(tierID string) int64 {
	if cfg == nil {
		return 1000 // Safe default
	}

	target := tierID
	if target == "" {
		target = cfg.DefaultTier
	}

	for _, tier := range cfg.Tiers {
		if tier.ID == target {
			return tier.BaseBet
		}
	}

	// Fallback to default tier if specific ID not found
	for _, tier := range cfg.Tiers {
		if tier.ID == cfg.DefaultTier {
			return tier.BaseBet
		}
	}

	return 1000
}

// TurnDuration returns the per-turn deadline window.
func (c *GameConfig) TurnDuration() time.Duration {
	if c == nil || c.TurnDurationSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TurnDurationSeconds) * time.Second
}

// RegameDelay returns the pause before a voided round redeals.
func (c *GameConfig) RegameDelay() time.Duration {
	if c == nil || c.RegameDelaySeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.RegameDelaySeconds) * time.Second
}

// SweepInterval returns the supervisor's polling period.
func (c *GameConfig) SweepInterval() time.Duration {
	if c == nil || c.SweepIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// GetStartingChips returns the one-time stack granted to new users.
func (c *GameConfig) GetStartingChips() int64 {
	if c == nil || c.StartingChips <= 0 {
		return 10000
	}
	return c.StartingChips
}

// GetMaxSeats returns the table capacity.
func (c *GameConfig) GetMaxSeats() int {
	if c == nil || c.MaxSeats <= 0 {
		return 6
	}
	return c.MaxSeats
}
