package vehicle

import "github.com/apexrush/simulation/pkg/core"

// IntentSource produces the per-frame driver intent for one vehicle.
// The player-input adapter and the rival policy are the two
// interchangeable implementations; the kinematics never know which is
// driving.
type IntentSource interface {
	NextIntent(dt float64) core.DriverIntent
}

// StaticIntent is an IntentSource that always returns the same intent.
// Useful for scripted scenarios and tests.
type StaticIntent core.DriverIntent

// NextIntent implements IntentSource.
func (s StaticIntent) NextIntent(float64) core.DriverIntent {
	return core.DriverIntent(s)
}
