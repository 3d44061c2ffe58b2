// Package game defines the wire-shaped state types shared by every part of
// strafe: the per-player snapshot, the one-shot projectile announcement, and
// the static map objects. All of them travel through the realtime transport
// encoded as-is, so field changes here are protocol changes.
package game

import (
	"github.com/go-gl/mathgl/mgl64"
)

// PlayerState is the last fully-known state of one player. The local client
// owns its own PlayerState outright; remote ones are snapshots owned by the
// world store and replaced wholesale by accepted inbound updates.
type PlayerState struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Health    int        `json:"health"`
	Position  mgl64.Vec3 `json:"position"`
	Rotation  mgl64.Vec3 `json:"rotation"`
	Velocity  mgl64.Vec3 `json:"velocity"`
	Jumping   bool       `json:"isJumping"`
	Crouching bool       `json:"isCrouching"`
	Kills     int        `json:"kills"`
	Deaths    int        `json:"deaths"`
	Inactive  bool       `json:"inactive,omitempty"`
	// UpdatedAt is unix milliseconds on the owning client's clock. Receivers
	// only ever compare durations measured on their own clock against it.
	UpdatedAt int64 `json:"lastUpdated"`
}

func (p *PlayerState) Alive() bool {
	return p.Health > 0
}

// ApplyDamage subtracts damage and clamps at zero. It reports whether this
// application was the killing blow (health crossed from positive to zero).
func (p *PlayerState) ApplyDamage(damage int) bool {
	if damage <= 0 || p.Health <= 0 {
		return false
	}
	p.Health -= damage
	if p.Health <= 0 {
		p.Health = 0
		return true
	}
	return false
}

// Equivalent compares everything a network echo must preserve. UpdatedAt is
// deliberately excluded: it is stamped by whoever publishes.
func (p *PlayerState) Equivalent(o *PlayerState) bool {
	return p.ID == o.ID &&
		p.Name == o.Name &&
		p.Health == o.Health &&
		p.Position == o.Position &&
		p.Rotation == o.Rotation &&
		p.Velocity == o.Velocity &&
		p.Jumping == o.Jumping &&
		p.Crouching == o.Crouching &&
		p.Kills == o.Kills &&
		p.Deaths == o.Deaths
}

// ProjectileEvent announces a single shot. It is ephemeral: published once,
// simulated to completion on every client, never stored.
type ProjectileEvent struct {
	ID        string     `json:"id"`
	ShooterID string     `json:"shooterId"`
	Origin    mgl64.Vec3 `json:"origin"`
	Direction mgl64.Vec3 `json:"direction"`
	FiredAt   int64      `json:"firedAt"`
}

type ObjectKind string

const (
	ObjectPlatform ObjectKind = "platform"
	ObjectBuilding ObjectKind = "building"
	ObjectLight    ObjectKind = "light"
)

// MapObjectState describes one static world prop. Objects are created once at
// world init and afterwards only re-synced, never deleted mid-session.
type MapObjectState struct {
	ID       string     `json:"id"`
	Kind     ObjectKind `json:"kind"`
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Vec3 `json:"rotation"`
	Scale    mgl64.Vec3 `json:"scale"`
	Color    string     `json:"color"`
}
