package vehicle

import (
	"math"

	"github.com/apexrush/simulation/pkg/core"
)

// Update advances the vehicle by dt seconds under the given intent.
// Non-positive dt is a stalled frame: the update is a silent no-op.
// Out-of-range intent values are clamped, never rejected.
func (v *Vehicle) Update(dt float64, in core.DriverIntent) {
	if dt <= 0 {
		return
	}

	v.tickTimers(dt)
	v.updateLongitudinal(dt, in)
	draining := v.updateNitro(dt, in.NitroRequested)
	v.clampSpeed(draining)
	v.applyFriction(dt)
	v.updateSteering(dt, clamp(in.Steer, -1, 1))

	// Euler integration along the facing direction. No sub-stepping;
	// the frame loop clamps dt upstream.
	v.Position = v.Position.Add(v.Forward().Scale(v.Speed * dt))
}

func (v *Vehicle) tickTimers(dt float64) {
	if v.collisionDebounce > 0 {
		v.collisionDebounce = math.Max(0, v.collisionDebounce-dt)
	}
}

// updateLongitudinal smooths the throttle/brake intent and integrates
// it into speed. Braking bites harder than acceleration.
func (v *Vehicle) updateLongitudinal(dt float64, in core.DriverIntent) {
	target := clamp(in.Throttle, 0, 1) - clamp(in.Brake, 0, 1)
	v.throttle += (target - v.throttle) * math.Min(1, v.Tun.ThrottleResponse*dt)

	accel := v.throttle * v.Tun.Acceleration
	if v.throttle < 0 {
		accel *= v.Tun.BrakeMultiplier
	}
	v.Speed += accel * dt
}

// updateNitro advances the Idle -> Draining -> Cooldown -> Idle machine
// and reports whether the boost ceiling applies this frame. Amount
// stays in [0, capacity] and the cooldown timer in [0, cooldownDuration]
// for any dt sequence.
func (v *Vehicle) updateNitro(dt float64, requested bool) bool {
	prev := v.NitroState

	switch v.NitroState {
	case NitroCooldown:
		v.nitroCooldown = math.Max(0, v.nitroCooldown-dt)
		if v.nitroCooldown == 0 {
			v.NitroState = NitroIdle
		}

	case NitroDraining:
		if !requested {
			v.NitroState = NitroIdle
			break
		}
		v.Nitro -= v.Tun.NitroDrainRate * dt
		if v.Nitro <= 0 {
			v.Nitro = 0
			v.enterCooldown()
		}

	default: // NitroIdle
		if requested {
			if v.Nitro > 0 {
				v.NitroState = NitroDraining
				v.Nitro -= v.Tun.NitroDrainRate * dt
				if v.Nitro <= 0 {
					v.Nitro = 0
					v.enterCooldown()
				}
			} else {
				// Empty tank: straight to cooldown, no boost.
				v.enterCooldown()
			}
		} else {
			v.Nitro = math.Min(v.Tun.NitroCapacity, v.Nitro+v.Tun.NitroRegenRate*dt)
		}
	}

	draining := v.NitroState == NitroDraining
	if draining {
		// Pull toward the boosted ceiling instead of raising raw
		// acceleration, so the boost feel is speed-proportional.
		ceiling := v.Tun.MaxSpeed * v.Tun.NitroPower
		v.Speed += (ceiling - v.Speed) * math.Min(1, v.Tun.NitroPull*dt)
	}

	if v.NitroState != prev {
		v.raise(core.Event{Kind: core.EventNitroStateChanged, NitroState: v.NitroState.String()})
	}
	return draining
}

func (v *Vehicle) enterCooldown() {
	v.NitroState = NitroCooldown
	v.nitroCooldown = v.Tun.NitroCooldown
}

func (v *Vehicle) clampSpeed(draining bool) {
	ceiling := v.Tun.MaxSpeed
	if draining {
		ceiling = v.Tun.MaxSpeed * v.Tun.NitroPower
	}
	v.Speed = clamp(v.Speed, -v.Tun.MaxSpeed/2, ceiling)
}

// applyFriction decays speed geometrically, anchored to a reference
// frame rate so the decay per second is the same at any dt.
func (v *Vehicle) applyFriction(dt float64) {
	v.Speed *= math.Pow(v.Tun.Friction, dt*frictionFrameRate)
}

// updateSteering rotates the heading and tracks the drift factor.
// Steering authority scales with speed and vanishes inside the
// deadzone, where the drift factor relaxes back to zero.
func (v *Vehicle) updateSteering(dt, steer float64) {
	moving := math.Abs(v.Speed) > v.Tun.SpeedDeadzone

	driftTarget := 0.0
	if moving && steer != 0 {
		ratio := math.Abs(v.Speed) / v.Tun.MaxSpeed
		v.Heading += steer * v.Tun.SteeringPower * dt * sign(v.Speed) * ratio
		driftTarget = steer * ratio
	}
	v.Drift += (driftTarget - v.Drift) * math.Min(1, v.Tun.DriftResponse*dt)

	// Edge-triggered drift notification for scoring/audio.
	high := math.Abs(v.Drift) >= DriftEventThreshold
	if high && !v.driftEventHigh {
		v.raise(core.Event{Kind: core.EventDrift, DriftFactor: v.Drift})
	}
	v.driftEventHigh = high
}
