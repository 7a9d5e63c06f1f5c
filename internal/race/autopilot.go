package race

import (
	"math"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/track"
	"github.com/apexrush/simulation/internal/vehicle"
)

// Autopilot is an IntentSource that drives a vehicle around the
// spline: full throttle, steering toward the tangent a short way
// ahead, nitro when nearly aligned. Used by the headless runner and in
// long-horizon tests.
type Autopilot struct {
	spline *track.Spline
	veh    *vehicle.Vehicle

	// Lookahead is the spline-parameter distance ahead of the current
	// projection used as the steering target.
	Lookahead float64
	// UseNitro enables nitro requests on near-straight sections.
	UseNitro bool
}

// NewAutopilot builds an autopilot for one vehicle.
func NewAutopilot(spline *track.Spline, veh *vehicle.Vehicle) *Autopilot {
	return &Autopilot{spline: spline, veh: veh, Lookahead: 0.02}
}

// NextIntent implements vehicle.IntentSource. Pure pursuit: aim at
// the spline point a fixed parameter distance past the current
// projection, so lateral error pulls the vehicle back onto the line.
func (a *Autopilot) NextIntent(dt float64) core.DriverIntent {
	t := a.spline.Project(a.veh.Position)
	target := a.spline.PointAt(t + a.Lookahead)
	to := target.Sub(a.veh.Position)
	desired := math.Atan2(to.X, to.Z)
	diff := wrapAngle(desired - a.veh.Heading)

	steer := diff * 2
	if steer > 1 {
		steer = 1
	} else if steer < -1 {
		steer = -1
	}

	in := core.DriverIntent{Throttle: 1, Steer: steer}
	if a.UseNitro && math.Abs(diff) < 0.1 {
		in.NitroRequested = true
	}
	return in
}

// wrapAngle maps an angle into (-pi, pi].
func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
