package core

import "time"

// EventKind enumerates the discrete gameplay events raised by the
// simulation. Events accumulate on the race's outbound queue during a
// frame and are drained once per frame by collaborators, preserving
// ordering and avoiding re-entrant mutation.
type EventKind int

const (
	EventCollision EventKind = iota
	EventDrift
	EventNitroStateChanged
	EventDestroyed
	EventPropDestroyed
	EventCheckpointArmed
	EventLapCompleted
	EventRaceFinished
)

// String returns the wire/storage name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventCollision:
		return "collision"
	case EventDrift:
		return "drift"
	case EventNitroStateChanged:
		return "nitro_state_changed"
	case EventDestroyed:
		return "destroyed"
	case EventPropDestroyed:
		return "prop_destroyed"
	case EventCheckpointArmed:
		return "checkpoint_armed"
	case EventLapCompleted:
		return "lap_completed"
	case EventRaceFinished:
		return "race_finished"
	default:
		return "unknown"
	}
}

// Event is one discrete gameplay occurrence. Only the fields relevant
// to the Kind are populated; the rest stay zero.
type Event struct {
	Kind      EventKind `json:"kind"`
	VehicleID uint16    `json:"vehicleId"`

	// Collision
	OtherID uint16  `json:"otherId,omitempty"`
	Impulse float64 `json:"impulse,omitempty"`

	// Drift
	DriftFactor float64 `json:"driftFactor,omitempty"`

	// Nitro
	NitroState string `json:"nitroState,omitempty"`

	// PropDestroyed
	PropID uint16 `json:"propId,omitempty"`
	Score  int    `json:"score,omitempty"`

	// LapCompleted / RaceFinished
	Lap     int           `json:"lap,omitempty"`
	LapTime time.Duration `json:"lapTime,omitempty"`
	Rank    int           `json:"rank,omitempty"`
}
