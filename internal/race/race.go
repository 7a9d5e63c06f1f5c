// Package race owns the frame loop: one logical thread stepping the
// whole simulation in a fixed order (player kinematics, rival policy
// and positioning, collision, progress). Collaborators only ever see
// snapshot copies and the drained event queue; inbound mutation goes
// through intents and the discrete commands.
package race

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/collision"
	"github.com/apexrush/simulation/internal/queue"
	"github.com/apexrush/simulation/internal/rival"
	"github.com/apexrush/simulation/internal/track"
	"github.com/apexrush/simulation/internal/vehicle"
)

// MaxFrameDelta caps dt so a stalled frame cannot destabilize the
// integration.
const MaxFrameDelta = 0.05

// rivalSpacing is the spline-parameter gap between grid slots.
const rivalSpacing = 0.008

// escapeMargin widens the track envelope the escape check uses, in
// world units, so off-line driving is not punished as leaving the map.
const escapeMargin = 60.0

var ErrUnknownVehicle = errors.New("unknown vehicle id")

// Config collects everything needed to stage a race.
type Config struct {
	Laps       int              `json:"laps" mapstructure:"laps"`
	Rivals     int              `json:"rivals" mapstructure:"rivals"`
	Seed       int64            `json:"seed" mapstructure:"seed"`
	KillPlaneY float64          `json:"killPlaneY" mapstructure:"killPlaneY"`
	Vehicle    vehicle.Tunables `json:"vehicle" mapstructure:"vehicle"`
	Rival      rival.Tunables   `json:"rival" mapstructure:"rival"`
}

// DefaultConfig returns a three-lap race against five rivals.
func DefaultConfig() Config {
	return Config{
		Laps:       3,
		Rivals:     5,
		Seed:       1,
		KillPlaneY: -25,
		Vehicle:    vehicle.DefaultTunables(),
		Rival:      rival.DefaultTunables(),
	}
}

// rivalCar pairs a rival's vehicle with its policy and the unwrapped
// spline parameter it rides. Rivals are positioned along the spline
// directly; steering never applies to them.
type rivalCar struct {
	veh      *vehicle.Vehicle
	policy   *rival.Policy
	progress float64
}

// Race is the simulation root for one staged race.
type Race struct {
	log *slog.Logger
	cfg Config

	spline   *track.Spline
	resolver *collision.Resolver
	tracker  *Tracker
	events   *queue.Queue[core.Event]

	player   *vehicle.Vehicle
	source   vehicle.IntentSource
	intent   core.DriverIntent
	rivals   []*rivalCar
	vehicles []*vehicle.Vehicle

	paused  bool
	elapsed float64
	frame   uint64
}

// New stages a race on the given layout.
func New(log *slog.Logger, layout *track.Layout, cfg Config) (*Race, error) {
	spline, err := layout.Spline()
	if err != nil {
		return nil, fmt.Errorf("building track spline: %w", err)
	}

	r := &Race{
		log:    log,
		cfg:    cfg,
		spline: spline,
		events: queue.New[core.Event](),
	}
	r.resolver = collision.NewResolver(
		layout.BuildObstacles(),
		layout.BuildProps(),
		cfg.KillPlaneY,
		spline.StartPoint(),
		spline.HeadingAt(0),
	)
	r.resolver.SetEmitter(r.emit)
	r.resolver.SetEscapeBounds(spline.Bounds(), escapeMargin)
	r.tracker = NewTracker(spline, cfg.Laps)
	r.tracker.SetEmitter(r.emit)
	r.buildField()

	log.Info("race staged",
		"track", layout.Name,
		"laps", cfg.Laps,
		"rivals", cfg.Rivals,
		"trackLength", spline.Length(),
	)
	return r, nil
}

// buildField spawns the player on the start line and the rivals on a
// staggered grid behind it.
func (r *Race) buildField() {
	r.player = vehicle.New(1, "Player", true, r.cfg.Vehicle, r.spline.StartPoint(), r.spline.HeadingAt(0))
	r.player.SetEmitter(r.emit)
	r.vehicles = []*vehicle.Vehicle{r.player}
	r.rivals = nil

	for i := 0; i < r.cfg.Rivals; i++ {
		t := -rivalSpacing * float64(i+1)
		lane := r.cfg.Rival.LaneWidth / 2
		if i%2 == 0 {
			lane = -lane
		}
		v := vehicle.New(uint16(i+2), fmt.Sprintf("Rival %d", i+1), false,
			r.cfg.Vehicle, r.spline.OffsetAt(t, lane), r.spline.HeadingAt(t))
		v.SetEmitter(r.emit)
		r.rivals = append(r.rivals, &rivalCar{
			veh:      v,
			policy:   rival.New(r.cfg.Rival, r.cfg.Seed+int64(i)),
			progress: t,
		})
		r.vehicles = append(r.vehicles, v)
	}
}

// emit is the single-event sink handed to every collaborator.
func (r *Race) emit(e core.Event) {
	r.events.Push(e)
}

// SetPlayerIntent records the intent applied on the next Step. It
// stays in effect until replaced.
func (r *Race) SetPlayerIntent(in core.DriverIntent) {
	r.intent = in
}

// SetIntentSource installs a per-frame intent provider for the player,
// taking precedence over SetPlayerIntent. Pass nil to remove it.
func (r *Race) SetIntentSource(src vehicle.IntentSource) {
	r.source = src
}

// Step advances the whole simulation by dt seconds. Non-positive dt
// and paused races are no-ops; oversized dt is clamped.
func (r *Race) Step(dt float64) {
	if dt <= 0 || r.paused {
		return
	}
	if dt > MaxFrameDelta {
		dt = MaxFrameDelta
	}
	r.elapsed += dt

	in := r.intent
	if r.source != nil {
		in = r.source.NextIntent(dt)
	}
	r.player.Update(dt, in)

	leader := r.leaderProgress()
	for _, rc := range r.rivals {
		own := r.tracker.TotalProgress(rc.veh)
		d := rc.policy.Update(dt, own, leader)
		rc.veh.Update(dt, core.DriverIntent{Throttle: 1, NitroRequested: d.NitroActive})
		rc.progress += rc.veh.Speed * dt / r.spline.Length()
		rc.veh.Position = r.spline.OffsetAt(rc.progress, d.LaneOffset)
		rc.veh.Heading = r.spline.HeadingAt(rc.progress)
	}

	r.resolver.Resolve(r.vehicles)
	r.tracker.Update(r.elapsed, r.vehicles)
	r.frame++
}

func (r *Race) leaderProgress() *float64 {
	best := 0.0
	found := false
	for _, v := range r.vehicles {
		if p := r.tracker.TotalProgress(v); !found || p > best {
			best = p
			found = true
		}
	}
	if !found {
		return nil
	}
	return &best
}

// Pause withholds frame advancement until Resume.
func (r *Race) Pause() { r.paused = true }

// Resume lifts a pause.
func (r *Race) Resume() { r.paused = false }

// Paused reports whether stepping is withheld.
func (r *Race) Paused() bool { return r.paused }

// Finished reports whether the player has completed the race.
func (r *Race) Finished() bool { return r.tracker.PlayerFinished() }

// Elapsed returns the race clock in seconds.
func (r *Race) Elapsed() float64 { return r.elapsed }

// Frame returns the number of frames stepped.
func (r *Race) Frame() uint64 { return r.frame }

// Player returns the player's vehicle for intent adapters.
func (r *Race) Player() *vehicle.Vehicle { return r.player }

// Spline returns the track geometry.
func (r *Race) Spline() *track.Spline { return r.spline }

// DrainEvents removes and returns every event raised since the last
// drain, in raise order. Intended to be called once per frame.
func (r *Race) DrainEvents() []core.Event {
	return r.events.Drain()
}

// QueueDepth returns the number of undrained events.
func (r *Race) QueueDepth() int {
	return r.events.Len()
}

// PropState is a prop's snapshot entry.
type PropState struct {
	ID       uint16    `json:"id"`
	Position core.Vec3 `json:"position"`
	Hit      bool      `json:"hit"`
	Score    int       `json:"score"`
}

// Snapshot is the read-only per-frame view handed to collaborators.
type Snapshot struct {
	Frame    uint64                 `json:"frame"`
	Elapsed  float64                `json:"elapsed"`
	Paused   bool                   `json:"paused"`
	Finished bool                   `json:"finished"`
	Vehicles []core.VehicleSnapshot `json:"vehicles"`
	Props    []PropState            `json:"props"`
}

// Snapshot deep-copies the externally visible state of the frame.
func (r *Race) Snapshot() Snapshot {
	snap := Snapshot{
		Frame:    r.frame,
		Elapsed:  r.elapsed,
		Paused:   r.paused,
		Finished: r.Finished(),
	}
	for _, v := range r.vehicles {
		vs := v.Snapshot()
		if st, ok := r.tracker.StandingFor(v.ID); ok {
			vs.Lap = st.Lap
		}
		vs.Rank = r.tracker.Rank(r.vehicles, v.ID)
		snap.Vehicles = append(snap.Vehicles, vs)
	}
	for _, p := range r.resolver.Props() {
		snap.Props = append(snap.Props, PropState{ID: p.ID, Position: p.Position, Hit: p.Hit, Score: p.Score})
	}
	return snap
}

// Reset restages the race from scratch: fresh vehicles on the grid,
// cleared standings, restored props, zeroed clock.
func (r *Race) Reset() {
	r.buildField()
	r.tracker.Reset()
	r.resolver.ResetProps()
	r.events.Clear()
	r.elapsed = 0
	r.frame = 0
	r.paused = false
	r.intent = core.DriverIntent{}
	r.log.Info("race reset")
}

// RespawnPlayer puts the player back on the start line at zero speed.
func (r *Race) RespawnPlayer() {
	r.player.Respawn(r.spline.StartPoint(), r.spline.HeadingAt(0))
	r.log.Debug("player respawned")
}

// SavedEntry is one vehicle's share of a save game.
type SavedEntry struct {
	ID       uint16                 `json:"id"`
	State    core.SavedVehicleState `json:"state"`
	Standing Standing               `json:"standing"`
	// RivalProgress preserves the unwrapped spline parameter a rival
	// rides; zero and unused for the player.
	RivalProgress float64 `json:"rivalProgress,omitempty"`
}

// SaveGame captures enough race state to resume later. Restoring it
// and replaying the same intents reproduces the same frames.
type SaveGame struct {
	Elapsed  float64      `json:"elapsed"`
	Vehicles []SavedEntry `json:"vehicles"`
}

// Save captures the current race state.
func (r *Race) Save() SaveGame {
	sg := SaveGame{Elapsed: r.elapsed}
	for _, v := range r.vehicles {
		entry := SavedEntry{ID: v.ID, State: v.SavedState()}
		if st, ok := r.tracker.StandingFor(v.ID); ok {
			entry.Standing = st
		}
		for _, rc := range r.rivals {
			if rc.veh.ID == v.ID {
				entry.RivalProgress = rc.progress
			}
		}
		sg.Vehicles = append(sg.Vehicles, entry)
	}
	return sg
}

// Load restores a previously saved race. Every entry must match a
// vehicle in the current field.
func (r *Race) Load(sg SaveGame) error {
	byID := make(map[uint16]*vehicle.Vehicle, len(r.vehicles))
	for _, v := range r.vehicles {
		byID[v.ID] = v
	}
	for _, entry := range sg.Vehicles {
		if _, ok := byID[entry.ID]; !ok {
			return fmt.Errorf("restoring vehicle %d: %w", entry.ID, ErrUnknownVehicle)
		}
	}

	r.elapsed = sg.Elapsed
	r.events.Clear()
	r.tracker.playerFinished = false
	for _, entry := range sg.Vehicles {
		byID[entry.ID].Restore(entry.State)
		r.tracker.RestoreStanding(entry.ID, entry.Standing, sg.Elapsed)
		if entry.ID == r.player.ID && entry.Standing.Finished {
			r.tracker.playerFinished = true
		}
		for _, rc := range r.rivals {
			if rc.veh.ID == entry.ID {
				rc.progress = entry.RivalProgress
			}
		}
	}
	// Policies carry RNG and timer state outside the save format.
	// Rebuilding them from the staging seeds keeps every restore of
	// the same save on the same replay.
	for i, rc := range r.rivals {
		rc.policy = rival.New(r.cfg.Rival, r.cfg.Seed+int64(i))
	}
	r.log.Info("race loaded", "elapsed", sg.Elapsed, "vehicles", len(sg.Vehicles))
	return nil
}
