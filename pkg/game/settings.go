package game

import (
	"fmt"
	"time"
)

// Settings are the combat and pacing tunables. Damage is not configured
// directly: it is derived from MaxHealth and ShotsToKill so that exactly
// ShotsToKill hits bring a full-health player to zero.
type Settings struct {
	MaxHealth   int `json:"maxHealth" yaml:"maxHealth"`
	ShotsToKill int `json:"shotsToKill" yaml:"shotsToKill"`

	// Projectile flight.
	ProjectileSpeed   float64       `json:"projectileSpeed" yaml:"projectileSpeed"` // units per second
	HitRadius         float64       `json:"hitRadius" yaml:"hitRadius"`
	TorsoHeight       float64       `json:"torsoHeight" yaml:"torsoHeight"`
	MaxRange          float64       `json:"maxRange" yaml:"maxRange"`
	ProjectileTimeout time.Duration `json:"projectileTimeout" yaml:"projectileTimeout"`

	// Death and respawn.
	RespawnDelay time.Duration `json:"respawnDelay" yaml:"respawnDelay"`
	SpawnRadius  float64       `json:"spawnRadius" yaml:"spawnRadius"`
	SpawnHeight  float64       `json:"spawnHeight" yaml:"spawnHeight"`

	// Change classification.
	MoveEpsilon float64       `json:"moveEpsilon" yaml:"moveEpsilon"`
	NoiseWindow time.Duration `json:"noiseWindow" yaml:"noiseWindow"`
	StaleAfter  time.Duration `json:"staleAfter" yaml:"staleAfter"`

	// Outbound pacing.
	PositionInterval   time.Duration `json:"positionInterval" yaml:"positionInterval"`
	PositionFastDelay  time.Duration `json:"positionFastDelay" yaml:"positionFastDelay"`
	StatsDebounce      time.Duration `json:"statsDebounce" yaml:"statsDebounce"`
	ProjectileDebounce time.Duration `json:"projectileDebounce" yaml:"projectileDebounce"`

	// Simulation tick frequency.
	TickRate int `json:"tickRate" yaml:"tickRate"`
}

func DefaultSettings() Settings {
	return Settings{
		MaxHealth:   100,
		ShotsToKill: 3,

		ProjectileSpeed:   60,
		HitRadius:         1.0,
		TorsoHeight:       1.5,
		MaxRange:          100,
		ProjectileTimeout: 3 * time.Second,

		RespawnDelay: 3 * time.Second,
		SpawnRadius:  20,
		SpawnHeight:  2,

		MoveEpsilon: 0.1,
		NoiseWindow: 50 * time.Millisecond,
		StaleAfter:  500 * time.Millisecond,

		PositionInterval:   300 * time.Millisecond,
		PositionFastDelay:  50 * time.Millisecond,
		StatsDebounce:      300 * time.Millisecond,
		ProjectileDebounce: 100 * time.Millisecond,

		TickRate: 60,
	}
}

// DamagePerHit is ceil(MaxHealth / ShotsToKill). With the defaults that is
// 34, so three hits run 100 -> 66 -> 32 -> 0.
func (s Settings) DamagePerHit() int {
	return (s.MaxHealth + s.ShotsToKill - 1) / s.ShotsToKill
}

func (s Settings) Validate() error {
	if s.MaxHealth <= 0 {
		return fmt.Errorf("maxHealth must be positive, got %d", s.MaxHealth)
	}
	if s.ShotsToKill <= 0 {
		return fmt.Errorf("shotsToKill must be positive, got %d", s.ShotsToKill)
	}
	// ShotsToKill must exactly partition MaxHealth under ceiling division:
	// one hit short always leaves the target alive.
	if damage := s.DamagePerHit(); (s.ShotsToKill-1)*damage >= s.MaxHealth {
		return fmt.Errorf(
			"shotsToKill=%d does not partition maxHealth=%d: %d hits of %d already kill",
			s.ShotsToKill, s.MaxHealth, s.ShotsToKill-1, damage,
		)
	}
	if s.ProjectileSpeed <= 0 {
		return fmt.Errorf("projectileSpeed must be positive, got %v", s.ProjectileSpeed)
	}
	if s.HitRadius <= 0 {
		return fmt.Errorf("hitRadius must be positive, got %v", s.HitRadius)
	}
	if s.MaxRange <= 0 {
		return fmt.Errorf("maxRange must be positive, got %v", s.MaxRange)
	}
	if s.ProjectileTimeout <= 0 {
		return fmt.Errorf("projectileTimeout must be positive, got %v", s.ProjectileTimeout)
	}
	if s.RespawnDelay <= 0 {
		return fmt.Errorf("respawnDelay must be positive, got %v", s.RespawnDelay)
	}
	if s.SpawnRadius <= 0 {
		return fmt.Errorf("spawnRadius must be positive, got %v", s.SpawnRadius)
	}
	if s.MoveEpsilon <= 0 {
		return fmt.Errorf("moveEpsilon must be positive, got %v", s.MoveEpsilon)
	}
	if s.NoiseWindow <= 0 || s.StaleAfter <= 0 || s.NoiseWindow >= s.StaleAfter {
		return fmt.Errorf(
			"noiseWindow (%v) must be positive and below staleAfter (%v)",
			s.NoiseWindow, s.StaleAfter,
		)
	}
	if s.PositionInterval <= 0 || s.PositionFastDelay <= 0 ||
		s.PositionFastDelay >= s.PositionInterval {
		return fmt.Errorf(
			"positionFastDelay (%v) must be positive and below positionInterval (%v)",
			s.PositionFastDelay, s.PositionInterval,
		)
	}
	if s.StatsDebounce <= 0 {
		return fmt.Errorf("statsDebounce must be positive, got %v", s.StatsDebounce)
	}
	if s.ProjectileDebounce <= 0 {
		return fmt.Errorf("projectileDebounce must be positive, got %v", s.ProjectileDebounce)
	}
	if s.TickRate <= 0 {
		return fmt.Errorf("tickRate must be positive, got %d", s.TickRate)
	}
	return nil
}

// TickInterval converts TickRate to the duration between simulation steps.
func (s Settings) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}
