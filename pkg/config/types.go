package config

import (
	"fmt"
	"time"

	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/transport/redis"
)

type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

type BotsConfig struct {
	Count int `json:"count" yaml:"count"`
}

// GameConfig is the on-disk shape of game.Settings. Durations are plain
// millisecond integers so config files read the way the tunables are
// usually discussed (300ms windows, 3000ms respawns).
type GameConfig struct {
	MaxHealth   int `json:"maxHealth" yaml:"maxHealth"`
	ShotsToKill int `json:"shotsToKill" yaml:"shotsToKill"`

	ProjectileSpeed     float64 `json:"projectileSpeed" yaml:"projectileSpeed"`
	HitRadius           float64 `json:"hitRadius" yaml:"hitRadius"`
	TorsoHeight         float64 `json:"torsoHeight" yaml:"torsoHeight"`
	MaxRange            float64 `json:"maxRange" yaml:"maxRange"`
	ProjectileTimeoutMs int     `json:"projectileTimeoutMs" yaml:"projectileTimeoutMs"`

	RespawnDelayMs int     `json:"respawnDelayMs" yaml:"respawnDelayMs"`
	SpawnRadius    float64 `json:"spawnRadius" yaml:"spawnRadius"`
	SpawnHeight    float64 `json:"spawnHeight" yaml:"spawnHeight"`

	MoveEpsilon   float64 `json:"moveEpsilon" yaml:"moveEpsilon"`
	NoiseWindowMs int     `json:"noiseWindowMs" yaml:"noiseWindowMs"`
	StaleAfterMs  int     `json:"staleAfterMs" yaml:"staleAfterMs"`

	PositionIntervalMs   int `json:"positionIntervalMs" yaml:"positionIntervalMs"`
	PositionFastDelayMs  int `json:"positionFastDelayMs" yaml:"positionFastDelayMs"`
	StatsDebounceMs      int `json:"statsDebounceMs" yaml:"statsDebounceMs"`
	ProjectileDebounceMs int `json:"projectileDebounceMs" yaml:"projectileDebounceMs"`

	TickRate int `json:"tickRate" yaml:"tickRate"`
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Settings converts the on-disk shape to the runtime tunables.
func (c GameConfig) Settings() game.Settings {
	return game.Settings{
		MaxHealth:   c.MaxHealth,
		ShotsToKill: c.ShotsToKill,

		ProjectileSpeed:   c.ProjectileSpeed,
		HitRadius:         c.HitRadius,
		TorsoHeight:       c.TorsoHeight,
		MaxRange:          c.MaxRange,
		ProjectileTimeout: ms(c.ProjectileTimeoutMs),

		RespawnDelay: ms(c.RespawnDelayMs),
		SpawnRadius:  c.SpawnRadius,
		SpawnHeight:  c.SpawnHeight,

		MoveEpsilon: c.MoveEpsilon,
		NoiseWindow: ms(c.NoiseWindowMs),
		StaleAfter:  ms(c.StaleAfterMs),

		PositionInterval:   ms(c.PositionIntervalMs),
		PositionFastDelay:  ms(c.PositionFastDelayMs),
		StatsDebounce:      ms(c.StatsDebounceMs),
		ProjectileDebounce: ms(c.ProjectileDebounceMs),

		TickRate: c.TickRate,
	}
}

type Config struct {
	Gateway GatewayConfig  `json:"gateway" yaml:"gateway"`
	Redis   redis.Settings `json:"redis" yaml:"redis"`
	Game    GameConfig     `json:"game" yaml:"game"`
	Bots    BotsConfig     `json:"bots" yaml:"bots"`
}

func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway port %d is out of range", c.Gateway.Port)
	}
	if c.Bots.Count < 0 {
		return fmt.Errorf("bot count cannot be negative, got %d", c.Bots.Count)
	}
	if err := c.Game.Settings().Validate(); err != nil {
		return fmt.Errorf("invalid game settings: %w", err)
	}
	return nil
}
