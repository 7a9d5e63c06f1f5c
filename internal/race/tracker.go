package race

import (
	"time"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/track"
	"github.com/apexrush/simulation/internal/vehicle"
)

// Default latch radii around the quarter and start points. Wide enough
// to cover the full lane width so rivals on an outside line still trip
// the latch.
const (
	DefaultArmRadius     = 15.0
	DefaultConsumeRadius = 15.0
)

// Standing is the tracker's per-vehicle lap bookkeeping.
type Standing struct {
	Lap      int           `json:"lap"`
	Armed    bool          `json:"armed"`
	LastLap  time.Duration `json:"lastLap"`
	BestLap  time.Duration `json:"bestLap"`
	Finished bool          `json:"finished"`

	lapStart float64 // elapsed seconds at the start of the current lap
}

// Tracker measures progress, laps, and rank for every vehicle. The
// checkpoint is a two-phase latch: armed near the track's quarter
// point, consumed near the start point. Crossing the start line twice
// without visiting the quarter point cannot double-count a lap.
type Tracker struct {
	spline        *track.Spline
	totalLaps     int
	armRadius     float64
	consumeRadius float64

	standings map[uint16]*Standing

	playerFinished bool

	emit func(core.Event)
}

// NewTracker builds a tracker for a race of totalLaps laps.
func NewTracker(spline *track.Spline, totalLaps int) *Tracker {
	return &Tracker{
		spline:        spline,
		totalLaps:     totalLaps,
		armRadius:     DefaultArmRadius,
		consumeRadius: DefaultConsumeRadius,
		standings:     make(map[uint16]*Standing),
	}
}

// SetLatchRadii overrides the checkpoint latch radii.
func (tr *Tracker) SetLatchRadii(arm, consume float64) {
	tr.armRadius = arm
	tr.consumeRadius = consume
}

// SetEmitter installs the outbound event sink.
func (tr *Tracker) SetEmitter(emit func(core.Event)) {
	tr.emit = emit
}

func (tr *Tracker) raise(e core.Event) {
	if tr.emit != nil {
		tr.emit(e)
	}
}

func (tr *Tracker) standing(id uint16, elapsed float64) *Standing {
	st, ok := tr.standings[id]
	if !ok {
		st = &Standing{lapStart: elapsed}
		tr.standings[id] = st
	}
	return st
}

// Update projects every vehicle onto the spline, advances the
// checkpoint latches, and raises lap and finish events. elapsed is the
// race clock in seconds.
func (tr *Tracker) Update(elapsed float64, vehicles []*vehicle.Vehicle) {
	quarter := tr.spline.QuarterPoint()
	start := tr.spline.StartPoint()

	for _, v := range vehicles {
		v.Progress = tr.spline.Project(v.Position)
		st := tr.standing(v.ID, elapsed)
		if st.Finished {
			continue
		}

		if !st.Armed && v.Position.DistanceSqTo(quarter) < tr.armRadius*tr.armRadius {
			st.Armed = true
			tr.raise(core.Event{Kind: core.EventCheckpointArmed, VehicleID: v.ID})
		}
		if st.Armed && v.Position.DistanceSqTo(start) < tr.consumeRadius*tr.consumeRadius {
			tr.completeLap(v, st, elapsed, vehicles)
		}
	}
}

func (tr *Tracker) completeLap(v *vehicle.Vehicle, st *Standing, elapsed float64, vehicles []*vehicle.Vehicle) {
	st.Armed = false
	st.Lap++
	st.LastLap = time.Duration((elapsed - st.lapStart) * float64(time.Second))
	st.lapStart = elapsed
	if st.BestLap == 0 || st.LastLap < st.BestLap {
		st.BestLap = st.LastLap
	}
	tr.raise(core.Event{
		Kind:      core.EventLapCompleted,
		VehicleID: v.ID,
		Lap:       st.Lap,
		LapTime:   st.LastLap,
	})

	if st.Lap >= tr.totalLaps {
		st.Finished = true
		if v.IsPlayer && !tr.playerFinished {
			tr.playerFinished = true
			tr.raise(core.Event{
				Kind:      core.EventRaceFinished,
				VehicleID: v.ID,
				Rank:      tr.Rank(vehicles, v.ID),
			})
		}
	}
}

// TotalProgress returns laps plus fractional track position, a
// monotonic measure suitable for ranking and rubber-banding. Vehicles
// gridded behind the start line project near the end of the loop, so
// until the latch first arms that position counts as negative progress
// rather than a nearly completed lap.
func (tr *Tracker) TotalProgress(v *vehicle.Vehicle) float64 {
	p := v.Progress
	st, ok := tr.standings[v.ID]
	if !ok {
		if p > 0.5 {
			p -= 1
		}
		return p
	}
	if st.Lap == 0 && !st.Armed && p > 0.5 {
		p -= 1
	}
	return float64(st.Lap) + p
}

// Rank returns 1 + the number of vehicles strictly ahead of id. Ties
// share the better rank; ordering is stable only within a frame.
func (tr *Tracker) Rank(vehicles []*vehicle.Vehicle, id uint16) int {
	var own float64
	found := false
	for _, v := range vehicles {
		if v.ID == id {
			own = tr.TotalProgress(v)
			found = true
			break
		}
	}
	if !found {
		return 0
	}
	rank := 1
	for _, v := range vehicles {
		if v.ID != id && tr.TotalProgress(v) > own {
			rank++
		}
	}
	return rank
}

// Standing returns a copy of the bookkeeping for one vehicle.
func (tr *Tracker) StandingFor(id uint16) (Standing, bool) {
	st, ok := tr.standings[id]
	if !ok {
		return Standing{}, false
	}
	return *st, true
}

// PlayerFinished reports whether the finish event has been raised.
func (tr *Tracker) PlayerFinished() bool {
	return tr.playerFinished
}

// TotalLaps returns the configured race length.
func (tr *Tracker) TotalLaps() int {
	return tr.totalLaps
}

// Reset clears all standings for a fresh race.
func (tr *Tracker) Reset() {
	tr.standings = make(map[uint16]*Standing)
	tr.playerFinished = false
}

// RestoreStanding installs saved bookkeeping for one vehicle, used
// when loading a saved race.
func (tr *Tracker) RestoreStanding(id uint16, st Standing, elapsed float64) {
	cp := st
	cp.lapStart = elapsed
	tr.standings[id] = &cp
}
