package vehicle

import (
	"math"
	"testing"

	"github.com/apexrush/simulation/pkg/core"
)

func newTestVehicle() *Vehicle {
	return New(1, "test", true, DefaultTunables(), core.Vec3{}, 0)
}

func TestUpdate_NonPositiveDtIsNoOp(t *testing.T) {
	v := newTestVehicle()
	before := *v
	v.Update(0, core.DriverIntent{Throttle: 1})
	v.Update(-0.016, core.DriverIntent{Throttle: 1})
	if v.Speed != before.Speed || v.Position != before.Position || v.Nitro != before.Nitro {
		t.Fatal("expected no state change for non-positive dt")
	}
}

func TestUpdate_ThrottleFromRest(t *testing.T) {
	v := newTestVehicle()
	dt := 1.0 / 60.0
	for i := 0; i < 60; i++ {
		v.Update(dt, core.DriverIntent{Throttle: 1})
	}
	if v.Speed <= 0 {
		t.Fatalf("expected positive speed after 1s of throttle, got %f", v.Speed)
	}
	if v.Speed >= v.Tun.MaxSpeed {
		t.Fatalf("expected speed below maxSpeed after 1s, got %f (max %f)", v.Speed, v.Tun.MaxSpeed)
	}
	if v.Position.IsZero() {
		t.Fatal("expected position to advance")
	}
}

func TestUpdate_SpeedNeverExceedsCeiling(t *testing.T) {
	v := newTestVehicle()
	dt := 1.0 / 30.0
	for i := 0; i < 600; i++ {
		v.Update(dt, core.DriverIntent{Throttle: 1, NitroRequested: true})
		ceiling := v.Tun.MaxSpeed * v.Tun.NitroPower
		if v.Speed > ceiling+1e-9 {
			t.Fatalf("speed %f exceeded nitro ceiling %f at frame %d", v.Speed, ceiling, i)
		}
	}
}

func TestUpdate_ReverseSpeedClamp(t *testing.T) {
	v := newTestVehicle()
	for i := 0; i < 600; i++ {
		v.Update(1.0/60.0, core.DriverIntent{Brake: 1})
	}
	if v.Speed < -v.Tun.MaxSpeed/2-1e-9 {
		t.Fatalf("reverse speed %f exceeded -maxSpeed/2", v.Speed)
	}
}

func TestNitro_InvariantsUnderArbitraryDtSequence(t *testing.T) {
	v := newTestVehicle()
	dts := []float64{0, 1.0 / 60, 0.5, 0, 0.001, 2.5, 1.0 / 144, 0.05}
	for cycle := 0; cycle < 50; cycle++ {
		for i, dt := range dts {
			req := (cycle+i)%3 != 0
			v.Update(dt, core.DriverIntent{Throttle: 1, NitroRequested: req})

			if v.Nitro < 0 || v.Nitro > v.Tun.NitroCapacity {
				t.Fatalf("nitro amount %f outside [0, %f]", v.Nitro, v.Tun.NitroCapacity)
			}
			cd := v.NitroCooldownRemaining()
			if cd < 0 || cd > v.Tun.NitroCooldown {
				t.Fatalf("nitro cooldown %f outside [0, %f]", cd, v.Tun.NitroCooldown)
			}
		}
	}
}

func TestNitro_EmptyTankEntersCooldownWithoutBoost(t *testing.T) {
	v := newTestVehicle()
	v.Nitro = 0
	v.Speed = 10

	v.Update(1.0/60.0, core.DriverIntent{NitroRequested: true})

	if v.NitroState != NitroCooldown {
		t.Fatalf("expected Cooldown, got %v", v.NitroState)
	}
	// No boost: without throttle, speed can only decay.
	if v.Speed > 10 {
		t.Fatalf("expected no speed boost, got %f", v.Speed)
	}
}

func TestNitro_DrainThenCooldownThenIdle(t *testing.T) {
	v := newTestVehicle()
	dt := 1.0 / 60.0

	// Drain the tank dry.
	frames := int(v.Tun.NitroCapacity/v.Tun.NitroDrainRate/dt) + 10
	for i := 0; i < frames; i++ {
		v.Update(dt, core.DriverIntent{Throttle: 1, NitroRequested: true})
	}
	if v.NitroState != NitroCooldown {
		t.Fatalf("expected Cooldown after draining dry, got %v", v.NitroState)
	}
	if v.Nitro != 0 {
		t.Fatalf("expected empty tank, got %f", v.Nitro)
	}

	// Cooldown elapses even while still requesting.
	cooldownFrames := int(v.Tun.NitroCooldown/dt) + 5
	for i := 0; i < cooldownFrames; i++ {
		v.Update(dt, core.DriverIntent{NitroRequested: true})
	}
	// After cooldown the machine is idle or immediately re-entered
	// cooldown from the still-empty tank; either way cooldown stays
	// bounded and the tank never goes negative.
	if v.Nitro < 0 {
		t.Fatalf("nitro went negative: %f", v.Nitro)
	}
}

func TestNitro_RegeneratesOnlyWhenIdle(t *testing.T) {
	v := newTestVehicle()
	dt := 1.0 / 60.0

	// Half-drain.
	for i := 0; i < 60; i++ {
		v.Update(dt, core.DriverIntent{NitroRequested: true})
	}
	drained := v.Nitro
	if drained >= v.Tun.NitroCapacity {
		t.Fatalf("expected drain, got %f", drained)
	}

	// Release: idle regen toward capacity.
	for i := 0; i < 240; i++ {
		v.Update(dt, core.DriverIntent{})
	}
	if v.Nitro <= drained {
		t.Fatalf("expected regeneration, before %f after %f", drained, v.Nitro)
	}
	if v.Nitro > v.Tun.NitroCapacity {
		t.Fatalf("regenerated past capacity: %f", v.Nitro)
	}
}

func TestNitro_StateChangeEventEmitted(t *testing.T) {
	v := newTestVehicle()
	var events []core.Event
	v.SetEmitter(func(e core.Event) { events = append(events, e) })

	v.Update(1.0/60.0, core.DriverIntent{NitroRequested: true})

	found := false
	for _, e := range events {
		if e.Kind == core.EventNitroStateChanged && e.NitroState == "draining" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected nitro state change event")
	}
}

func TestSteering_DeadzoneBlocksHeadingChange(t *testing.T) {
	v := newTestVehicle()
	v.Speed = 0
	v.Update(1.0/60.0, core.DriverIntent{Steer: 1})
	if v.Heading != 0 {
		t.Fatalf("expected no heading change inside deadzone, got %f", v.Heading)
	}
}

func TestSteering_HeadingFollowsSteerSign(t *testing.T) {
	v := newTestVehicle()
	v.Speed = 30

	v.Update(1.0/60.0, core.DriverIntent{Throttle: 1, Steer: 1})
	if v.Heading <= 0 {
		t.Fatalf("expected positive heading change, got %f", v.Heading)
	}

	w := newTestVehicle()
	w.Speed = 30
	w.Update(1.0/60.0, core.DriverIntent{Throttle: 1, Steer: -1})
	if w.Heading >= 0 {
		t.Fatalf("expected negative heading change, got %f", w.Heading)
	}
}

func TestDrift_EventOnThresholdCrossing(t *testing.T) {
	v := newTestVehicle()
	v.Speed = v.Tun.MaxSpeed
	var driftEvents int
	v.SetEmitter(func(e core.Event) {
		if e.Kind == core.EventDrift {
			driftEvents++
		}
	})

	for i := 0; i < 120; i++ {
		v.Update(1.0/60.0, core.DriverIntent{Throttle: 1, Steer: 1})
	}
	if driftEvents != 1 {
		t.Fatalf("expected exactly one drift event for one sustained slide, got %d", driftEvents)
	}
	if math.Abs(v.Drift) < DriftEventThreshold {
		t.Fatalf("expected drift beyond threshold, got %f", v.Drift)
	}

	// Straighten out, then slide again: a second crossing, a second event.
	for i := 0; i < 240; i++ {
		v.Update(1.0/60.0, core.DriverIntent{Throttle: 1})
	}
	for i := 0; i < 120; i++ {
		v.Update(1.0/60.0, core.DriverIntent{Throttle: 1, Steer: 1})
	}
	if driftEvents != 2 {
		t.Fatalf("expected second drift event after recrossing, got %d", driftEvents)
	}
}

func TestApplyDamage_ClampsAndEmitsDestroyedOnce(t *testing.T) {
	v := newTestVehicle()
	var destroyed int
	v.SetEmitter(func(e core.Event) {
		if e.Kind == core.EventDestroyed {
			destroyed++
		}
	})

	v.ApplyDamage(-5)
	if v.Health != v.Tun.MaxHealth {
		t.Fatal("negative damage must be ignored")
	}

	v.ApplyDamage(1e6)
	if v.Health != 0 {
		t.Fatalf("expected health clamped to 0, got %f", v.Health)
	}
	v.ApplyDamage(10)
	if destroyed != 1 {
		t.Fatalf("expected exactly one destroyed event, got %d", destroyed)
	}
}

func TestApplyDamage_InvulnerableFailsClosed(t *testing.T) {
	v := newTestVehicle()
	v.Invulnerable = true
	v.ApplyDamage(50)
	if v.Health != v.Tun.MaxHealth {
		t.Fatalf("expected no damage while invulnerable, got %f", v.Health)
	}
}

func TestRepair_ClampsToMax(t *testing.T) {
	v := newTestVehicle()
	v.ApplyDamage(30)
	v.Repair(1e6)
	if v.Health != v.Tun.MaxHealth {
		t.Fatalf("expected full health, got %f", v.Health)
	}
}

func TestResolveCollision_ReflectsAndDebounces(t *testing.T) {
	v := newTestVehicle()
	v.Speed = 40
	pos := v.Position

	if !v.ResolveCollision(core.Vec3{X: 1}, 1) {
		t.Fatal("expected first resolution to apply")
	}
	if v.Speed != -20 {
		t.Fatalf("expected speed reflected to -20, got %f", v.Speed)
	}
	if v.Position == pos {
		t.Fatal("expected positional push")
	}
	if v.Health >= v.Tun.MaxHealth {
		t.Fatal("expected impact damage")
	}

	// Second hit inside the debounce window is swallowed.
	if v.ResolveCollision(core.Vec3{X: 1}, 1) {
		t.Fatal("expected debounced resolution to be ignored")
	}

	// The window expires with simulated time.
	for i := 0; i < 60; i++ {
		v.Update(1.0/60.0, core.DriverIntent{})
	}
	if !v.ResolveCollision(core.Vec3{X: 1}, 1) {
		t.Fatal("expected resolution after debounce window")
	}
}

func TestSavedState_RoundTripReproducesBehavior(t *testing.T) {
	v := newTestVehicle()
	dt := 1.0 / 60.0
	for i := 0; i < 90; i++ {
		v.Update(dt, core.DriverIntent{Throttle: 1, Steer: 0.3})
	}
	saved := v.SavedState()

	// Two restored copies must evolve identically under the same inputs.
	a := newTestVehicle()
	a.Restore(saved)
	b := newTestVehicle()
	b.Restore(saved)

	inputs := []core.DriverIntent{
		{Throttle: 1},
		{Throttle: 1, Steer: -0.5},
		{Brake: 1},
		{Throttle: 0.5, NitroRequested: true},
	}
	for i := 0; i < 240; i++ {
		in := inputs[i%len(inputs)]
		a.Update(dt, in)
		b.Update(dt, in)
	}
	if a.Position != b.Position || a.Speed != b.Speed || a.Nitro != b.Nitro || a.Heading != b.Heading {
		t.Fatal("restored vehicles diverged under identical inputs")
	}
}

func TestRestore_ClampsOutOfRangeValues(t *testing.T) {
	v := newTestVehicle()
	v.Restore(core.SavedVehicleState{
		Health:      1e9,
		NitroAmount: -50,
	})
	if v.Health != v.Tun.MaxHealth {
		t.Fatalf("expected health clamped to max, got %f", v.Health)
	}
	if v.Nitro != 0 {
		t.Fatalf("expected nitro clamped to 0, got %f", v.Nitro)
	}
}
