// Package rival implements the AI decision layer for computer-driven
// cars. The policy is pure decision-making: it owns no geometry and
// mutates nothing but its own timers, producing a nitro request and a
// target lane offset that the race loop feeds into the shared vehicle
// kinematics.
package rival

import (
	"math"
	"math/rand"
)

// Tunables control rival aggressiveness and lane behavior.
type Tunables struct {
	// RubberBandMargin is the progress gap to the leader beyond which
	// a trailing rival always requests nitro.
	RubberBandMargin float64 `json:"rubberBandMargin" mapstructure:"rubberBandMargin"`
	// NitroChance is the small independent per-eligible-frame request
	// probability that keeps even a tight race lively.
	NitroChance float64 `json:"nitroChance" mapstructure:"nitroChance"`

	NitroActiveMin   float64 `json:"nitroActiveMin" mapstructure:"nitroActiveMin"`
	NitroActiveMax   float64 `json:"nitroActiveMax" mapstructure:"nitroActiveMax"`
	NitroCooldownMin float64 `json:"nitroCooldownMin" mapstructure:"nitroCooldownMin"`
	NitroCooldownMax float64 `json:"nitroCooldownMax" mapstructure:"nitroCooldownMax"`

	LaneWidth      float64 `json:"laneWidth" mapstructure:"laneWidth"`
	LaneSwitchMin  float64 `json:"laneSwitchMin" mapstructure:"laneSwitchMin"`
	LaneSwitchMax  float64 `json:"laneSwitchMax" mapstructure:"laneSwitchMax"`
	LaneResponse   float64 `json:"laneResponse" mapstructure:"laneResponse"`
	LaneNitroBoost float64 `json:"laneNitroBoost" mapstructure:"laneNitroBoost"`
}

// DefaultTunables returns the baseline rival temperament.
func DefaultTunables() Tunables {
	return Tunables{
		RubberBandMargin: 0.05,
		NitroChance:      0.004,
		NitroActiveMin:   1.5,
		NitroActiveMax:   3.5,
		NitroCooldownMin: 2,
		NitroCooldownMax: 6,
		LaneWidth:        8,
		LaneSwitchMin:    2,
		LaneSwitchMax:    7,
		LaneResponse:     1.5,
		LaneNitroBoost:   2,
	}
}

// Decision is the per-frame policy output consumed by the race loop.
type Decision struct {
	NitroActive bool
	LaneOffset  float64
}

// Policy drives one rival. Each rival gets its own seeded RNG so the
// field stays varied but a single run is deterministic.
type Policy struct {
	tun Tunables
	rng *rand.Rand

	laneOffset   float64
	targetOffset float64
	switchTimer  float64

	nitroActive bool
	activeTimer float64
	cooldown    float64
}

// New creates a policy with the given tunables and RNG seed.
func New(tun Tunables, seed int64) *Policy {
	p := &Policy{
		tun: tun,
		rng: rand.New(rand.NewSource(seed)),
	}
	p.switchTimer = p.rangeF(tun.LaneSwitchMin, tun.LaneSwitchMax)
	return p
}

func (p *Policy) rangeF(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + p.rng.Float64()*(hi-lo)
}

// Update advances the policy by dt seconds. ownProgress and
// leaderProgress are monotonic totals (laps + fractional position), so
// the gap comparison is wrap-safe. A nil leaderProgress degrades to the
// random-request branch only.
func (p *Policy) Update(dt float64, ownProgress float64, leaderProgress *float64) Decision {
	if dt > 0 {
		p.updateNitro(dt, ownProgress, leaderProgress)
		p.updateLane(dt)
	}
	return Decision{NitroActive: p.nitroActive, LaneOffset: p.laneOffset}
}

func (p *Policy) updateNitro(dt, ownProgress float64, leaderProgress *float64) {
	if p.nitroActive {
		p.activeTimer -= dt
		if p.activeTimer <= 0 {
			p.nitroActive = false
			p.cooldown = p.rangeF(p.tun.NitroCooldownMin, p.tun.NitroCooldownMax)
		}
		return
	}
	if p.cooldown > 0 {
		p.cooldown = math.Max(0, p.cooldown-dt)
		return
	}

	// Rubber-banding first: a rival far behind the leader always
	// boosts. Otherwise roll the keep-it-lively dice.
	want := false
	if leaderProgress != nil && *leaderProgress-ownProgress > p.tun.RubberBandMargin {
		want = true
	} else if p.rng.Float64() < p.tun.NitroChance {
		want = true
	}
	if want {
		p.nitroActive = true
		p.activeTimer = p.rangeF(p.tun.NitroActiveMin, p.tun.NitroActiveMax)
	}
}

func (p *Policy) updateLane(dt float64) {
	p.switchTimer -= dt
	if p.switchTimer <= 0 {
		half := p.tun.LaneWidth / 2
		p.targetOffset = p.rangeF(-half, half)
		p.switchTimer = p.rangeF(p.tun.LaneSwitchMin, p.tun.LaneSwitchMax)
	}

	rate := p.tun.LaneResponse
	if p.nitroActive {
		rate *= p.tun.LaneNitroBoost
	}
	p.laneOffset += (p.targetOffset - p.laneOffset) * math.Min(1, rate*dt)
}

// NitroActive reports whether the policy currently holds nitro on.
func (p *Policy) NitroActive() bool {
	return p.nitroActive
}

// LaneOffset returns the current smoothed lateral offset.
func (p *Policy) LaneOffset() float64 {
	return p.laneOffset
}

// TargetLaneOffset returns the offset the rival is steering toward.
func (p *Policy) TargetLaneOffset() float64 {
	return p.targetOffset
}
