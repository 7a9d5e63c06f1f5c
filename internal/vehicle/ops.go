package vehicle

import (
	"math"

	"github.com/apexrush/simulation/pkg/core"
)

// ApplyDamage reduces health by the given amount, clamped at zero.
// Negative amounts are ignored. Fails closed while the invulnerability
// flag is set. Raises a destroyed event exactly once when health
// reaches zero.
func (v *Vehicle) ApplyDamage(amount float64) {
	if amount <= 0 || v.Invulnerable || v.destroyed {
		return
	}
	v.Health = math.Max(0, v.Health-amount)
	if v.Health == 0 {
		v.destroyed = true
		v.raise(core.Event{Kind: core.EventDestroyed})
	}
}

// Repair restores health up to the configured maximum. Negative
// amounts are ignored. Repairing a destroyed vehicle revives it.
func (v *Vehicle) Repair(amount float64) {
	if amount <= 0 {
		return
	}
	v.Health = math.Min(v.Tun.MaxHealth, v.Health+amount)
	if v.Health > 0 {
		v.destroyed = false
	}
}

// ResolveCollision applies the impact response: damage proportional to
// |speed| and severity, speed reflection at fixed restitution, and a
// positional push along the given unit direction. A second resolution
// within the debounce window is ignored so overlapping test passes
// cannot double-count one impact. Reports whether the response was
// applied.
func (v *Vehicle) ResolveCollision(pushDir core.Vec3, severity float64) bool {
	if v.collisionDebounce > 0 {
		return false
	}
	v.collisionDebounce = v.Tun.CollisionDebounce

	v.ApplyDamage(math.Abs(v.Speed) * severity * v.Tun.DamageFactor)
	v.Speed *= collisionRestitution
	v.Position = v.Position.Add(pushDir.Scale(v.Tun.PushDistance))
	return true
}

// Respawn places the vehicle at the given pose with zero speed and
// clears transient motion state. Used for void fall-through recovery.
func (v *Vehicle) Respawn(pos core.Vec3, heading float64) {
	v.Position = pos
	v.Heading = heading
	v.Speed = 0
	v.Drift = 0
	v.throttle = 0
	v.driftEventHigh = false
}
