// Package vehicle implements the shared kinematic model used by the
// player and every rival: longitudinal control, the nitro state
// machine, steering and drift, damage, and collision response. One
// vehicle type serves both roles; only the source of driver intent
// differs.
package vehicle

import (
	"math"

	"github.com/apexrush/simulation/pkg/core"
)

// NitroState is the explicit nitro subsystem state. Reifying the state
// machine keeps the amount/cooldown invariants checkable and illegal
// combinations unrepresentable.
type NitroState int

const (
	NitroIdle NitroState = iota
	NitroDraining
	NitroCooldown
)

// String returns the snapshot/wire name of the state.
func (s NitroState) String() string {
	switch s {
	case NitroDraining:
		return "draining"
	case NitroCooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// DriftEventThreshold is the |drift| level at which a drift event is
// raised for scoring and audio collaborators.
const DriftEventThreshold = 0.15

// collisionRestitution is the speed reflection factor applied on impact.
const collisionRestitution = -0.5

// frictionFrameRate anchors the friction coefficient to a reference
// frame duration so decay is frame-rate independent.
const frictionFrameRate = 60.0

// Tunables are the per-vehicle physics constants, loaded from
// configuration at race build time.
type Tunables struct {
	MaxSpeed         float64 `json:"maxSpeed" mapstructure:"maxSpeed"`
	Acceleration     float64 `json:"acceleration" mapstructure:"acceleration"`
	BrakeMultiplier  float64 `json:"brakeMultiplier" mapstructure:"brakeMultiplier"`
	ThrottleResponse float64 `json:"throttleResponse" mapstructure:"throttleResponse"`
	Friction         float64 `json:"friction" mapstructure:"friction"`
	SteeringPower    float64 `json:"steeringPower" mapstructure:"steeringPower"`
	SpeedDeadzone    float64 `json:"speedDeadzone" mapstructure:"speedDeadzone"`
	DriftResponse    float64 `json:"driftResponse" mapstructure:"driftResponse"`

	NitroCapacity  float64 `json:"nitroCapacity" mapstructure:"nitroCapacity"`
	NitroDrainRate float64 `json:"nitroDrainRate" mapstructure:"nitroDrainRate"`
	NitroRegenRate float64 `json:"nitroRegenRate" mapstructure:"nitroRegenRate"`
	NitroCooldown  float64 `json:"nitroCooldown" mapstructure:"nitroCooldown"`
	NitroPower     float64 `json:"nitroPower" mapstructure:"nitroPower"`
	NitroPull      float64 `json:"nitroPull" mapstructure:"nitroPull"`

	CollisionRadius   float64 `json:"collisionRadius" mapstructure:"collisionRadius"`
	CollisionDebounce float64 `json:"collisionDebounce" mapstructure:"collisionDebounce"`
	PushDistance      float64 `json:"pushDistance" mapstructure:"pushDistance"`
	DamageFactor      float64 `json:"damageFactor" mapstructure:"damageFactor"`
	MaxHealth         float64 `json:"maxHealth" mapstructure:"maxHealth"`
}

// DefaultTunables returns the baseline arcade handling profile.
func DefaultTunables() Tunables {
	return Tunables{
		MaxSpeed:         55,
		Acceleration:     28,
		BrakeMultiplier:  2.2,
		ThrottleResponse: 6,
		Friction:         0.995,
		SteeringPower:    2.4,
		SpeedDeadzone:    0.5,
		DriftResponse:    4,

		NitroCapacity:  100,
		NitroDrainRate: 45,
		NitroRegenRate: 8,
		NitroCooldown:  3,
		NitroPower:     1.45,
		NitroPull:      2.5,

		CollisionRadius:   2,
		CollisionDebounce: 0.35,
		PushDistance:      1.2,
		DamageFactor:      0.25,
		MaxHealth:         100,
	}
}

// Vehicle is the mutable simulation state of one car. Owned exclusively
// by the simulation; collaborators only ever see Snapshot copies.
type Vehicle struct {
	ID       uint16
	Name     string
	IsPlayer bool
	Tun      Tunables

	Position core.Vec3
	Heading  float64 // yaw, radians; forward is (sin h, 0, cos h)
	Speed    float64 // signed scalar along heading
	Drift    float64 // signed lateral slide intensity in [-1,1]

	Nitro      float64
	NitroState NitroState
	Health     float64
	Progress   float64 // wrapping [0,1) along the track, set by the tracker

	Invulnerable bool

	// Transient per-frame state, deliberately excluded from saves.
	throttle          float64 // smoothed longitudinal intent
	nitroCooldown     float64
	collisionDebounce float64
	driftEventHigh    bool
	destroyed         bool

	emit func(core.Event)
}

// New creates a vehicle at the given pose with full health and nitro.
func New(id uint16, name string, isPlayer bool, tun Tunables, pos core.Vec3, heading float64) *Vehicle {
	return &Vehicle{
		ID:       id,
		Name:     name,
		IsPlayer: isPlayer,
		Tun:      tun,
		Position: pos,
		Heading:  heading,
		Nitro:    tun.NitroCapacity,
		Health:   tun.MaxHealth,
	}
}

// SetEmitter installs the outbound event sink. Events are dropped when
// no sink is installed.
func (v *Vehicle) SetEmitter(emit func(core.Event)) {
	v.emit = emit
}

func (v *Vehicle) raise(e core.Event) {
	if v.emit != nil {
		e.VehicleID = v.ID
		v.emit(e)
	}
}

// Forward returns the unit vector of the current facing direction.
func (v *Vehicle) Forward() core.Vec3 {
	return core.Vec3{X: math.Sin(v.Heading), Z: math.Cos(v.Heading)}
}

// Destroyed reports whether health has reached zero.
func (v *Vehicle) Destroyed() bool {
	return v.destroyed
}

// NitroCooldownRemaining exposes the cooldown timer for snapshots and
// invariants; always within [0, Tun.NitroCooldown].
func (v *Vehicle) NitroCooldownRemaining() float64 {
	return v.nitroCooldown
}

// Snapshot returns the read-only per-frame view of this vehicle.
func (v *Vehicle) Snapshot() core.VehicleSnapshot {
	return core.VehicleSnapshot{
		ID:         v.ID,
		Name:       v.Name,
		IsPlayer:   v.IsPlayer,
		Position:   v.Position,
		Heading:    v.Heading,
		Speed:      v.Speed,
		Drift:      v.Drift,
		Nitro:      v.Nitro,
		NitroState: v.NitroState.String(),
		Health:     v.Health,
		Progress:   v.Progress,
	}
}

// SavedState captures the round-trippable state subset.
func (v *Vehicle) SavedState() core.SavedVehicleState {
	return core.SavedVehicleState{
		Position:    v.Position,
		Heading:     v.Heading,
		Speed:       v.Speed,
		Health:      v.Health,
		NitroAmount: v.Nitro,
		Progress:    v.Progress,
	}
}

// Restore applies a saved state. Transient smoothers and timers reset
// to their deterministic zero values, so two restores of the same state
// behave identically under the same future inputs.
func (v *Vehicle) Restore(s core.SavedVehicleState) {
	v.Position = s.Position
	v.Heading = s.Heading
	v.Speed = s.Speed
	v.Health = clamp(s.Health, 0, v.Tun.MaxHealth)
	v.Nitro = clamp(s.NitroAmount, 0, v.Tun.NitroCapacity)
	v.Progress = s.Progress

	v.NitroState = NitroIdle
	v.nitroCooldown = 0
	v.throttle = 0
	v.Drift = 0
	v.driftEventHigh = false
	v.collisionDebounce = 0
	v.destroyed = v.Health <= 0
	v.Invulnerable = false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
