// Package collision runs the post-positioning contact pass. Pairwise
// tests are fine at this scale (tens of entities); there are no swept
// tests, so very fast movers can tunnel through thin contacts over a
// single frame.
package collision

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/vehicle"
)

const (
	// vehicleSeverity scales damage for car-on-car contact.
	vehicleSeverity = 1.0
	// obstacleSeverity scales damage for hitting fixed track furniture.
	obstacleSeverity = 0.6
	// propSpeedDamping is the fraction of speed kept after smashing a
	// destructible prop.
	propSpeedDamping = 0.65
)

// Resolver owns the static collision geometry for one track and
// resolves overlaps for the frame. Vehicles themselves debounce
// repeated resolutions, so running the full pass every frame stays
// idempotent.
type Resolver struct {
	obstacles []core.StaticObstacle
	props     []*core.DestructibleProp

	killPlaneY     float64
	respawnPoint   core.Vec3
	respawnHeading float64

	// Horizontal escape limits on the geometry plane (x and sim z),
	// derived from the track envelope. Inactive until set.
	escapeMinX, escapeMaxX float64
	escapeMinZ, escapeMaxZ float64
	escapeSet              bool

	emit func(core.Event)
}

// NewResolver builds a resolver over the track's fixed geometry.
// killPlaneY is the vertical coordinate below which the player is
// considered fallen off the track.
func NewResolver(obstacles []core.StaticObstacle, props []*core.DestructibleProp, killPlaneY float64, respawn core.Vec3, respawnHeading float64) *Resolver {
	return &Resolver{
		obstacles:      obstacles,
		props:          props,
		killPlaneY:     killPlaneY,
		respawnPoint:   respawn,
		respawnHeading: respawnHeading,
	}
}

// SetEmitter installs the outbound event sink. Events are dropped when
// no sink is installed.
func (r *Resolver) SetEmitter(emit func(core.Event)) {
	r.emit = emit
}

// SetEscapeBounds derives the horizontal escape limits from the track
// envelope, widened by margin on every side. A player outside the
// limits is treated like a void fall. Empty envelopes leave the check
// inactive.
func (r *Resolver) SetEscapeBounds(env geom.Envelope, margin float64) {
	mn, mx, ok := env.MinMaxXYs()
	if !ok {
		return
	}
	r.escapeMinX, r.escapeMaxX = mn.X-margin, mx.X+margin
	r.escapeMinZ, r.escapeMaxZ = mn.Y-margin, mx.Y+margin
	r.escapeSet = true
}

// escaped reports whether a position has left the widened track
// envelope. The geometry plane carries simulation z in its y axis.
func (r *Resolver) escaped(p core.Vec3) bool {
	if !r.escapeSet {
		return false
	}
	return p.X < r.escapeMinX || p.X > r.escapeMaxX ||
		p.Z < r.escapeMinZ || p.Z > r.escapeMaxZ
}

func (r *Resolver) raise(e core.Event) {
	if r.emit != nil {
		r.emit(e)
	}
}

// Props exposes the destructible set, hit flags included.
func (r *Resolver) Props() []*core.DestructibleProp {
	return r.props
}

// ResetProps restores every destructible prop for a fresh race.
func (r *Resolver) ResetProps() {
	for _, p := range r.props {
		p.Hit = false
	}
}

// Resolve runs the whole contact pass for one frame: vehicle pairs,
// static obstacles, destructible props, then the kill plane.
func (r *Resolver) Resolve(vehicles []*vehicle.Vehicle) {
	for i := 0; i < len(vehicles); i++ {
		for j := i + 1; j < len(vehicles); j++ {
			r.resolvePair(vehicles[i], vehicles[j])
		}
	}
	for _, v := range vehicles {
		if v.Destroyed() {
			continue
		}
		r.resolveObstacles(v)
		r.resolveProps(v)
	}
	r.resolveVoid(vehicles)
}

// resolvePair separates two overlapping vehicles symmetrically, each
// pushed away from the other along opposite unit directions.
func (r *Resolver) resolvePair(a, b *vehicle.Vehicle) {
	if a.Destroyed() || b.Destroyed() {
		return
	}
	minDist := a.Tun.CollisionRadius + b.Tun.CollisionRadius
	delta := a.Position.Sub(b.Position)
	if delta.LengthSq() >= minDist*minDist {
		return
	}

	dir := delta.Normalized()
	if dir.IsZero() {
		// Perfectly coincident centers: pick a fixed axis so the pair
		// still separates deterministically.
		dir = core.Vec3{X: 1}
	}

	impulse := math.Abs(a.Speed) + math.Abs(b.Speed)
	hitA := a.ResolveCollision(dir, vehicleSeverity)
	hitB := b.ResolveCollision(dir.Scale(-1), vehicleSeverity)
	if hitA {
		r.raise(core.Event{Kind: core.EventCollision, VehicleID: a.ID, OtherID: b.ID, Impulse: impulse})
	}
	if hitB {
		r.raise(core.Event{Kind: core.EventCollision, VehicleID: b.ID, OtherID: a.ID, Impulse: impulse})
	}
}

// resolveObstacles bounces the vehicle off fixed obstacles. The
// obstacle never moves.
func (r *Resolver) resolveObstacles(v *vehicle.Vehicle) {
	for _, o := range r.obstacles {
		minDist := o.Radius + v.Tun.CollisionRadius
		delta := v.Position.Sub(o.Position)
		if delta.LengthSq() >= minDist*minDist {
			continue
		}
		dir := delta.Normalized()
		if dir.IsZero() {
			dir = core.Vec3{X: 1}
		}
		impulse := math.Abs(v.Speed)
		if v.ResolveCollision(dir, obstacleSeverity) {
			r.raise(core.Event{Kind: core.EventCollision, VehicleID: v.ID, OtherID: o.ID, Impulse: impulse})
		}
	}
}

// resolveProps smashes destructible props. A prop flips hit=true
// exactly once; after that it drops out of the test entirely.
func (r *Resolver) resolveProps(v *vehicle.Vehicle) {
	radius := v.Tun.CollisionRadius
	for _, p := range r.props {
		if p.Hit {
			continue
		}
		minDist := p.Radius + radius
		if v.Position.DistanceSqTo(p.Position) >= minDist*minDist {
			continue
		}
		p.Hit = true
		v.Speed *= propSpeedDamping
		r.raise(core.Event{
			Kind:      core.EventPropDestroyed,
			VehicleID: v.ID,
			PropID:    p.ID,
			Score:     p.Score,
		})
	}
}

// resolveVoid teleports a fallen or escaped player back to the respawn
// point. Rivals ride the spline and cannot leave the track, so only the
// player is checked.
func (r *Resolver) resolveVoid(vehicles []*vehicle.Vehicle) {
	for _, v := range vehicles {
		if !v.IsPlayer {
			continue
		}
		if v.Position.Y >= r.killPlaneY && !r.escaped(v.Position) {
			continue
		}
		v.Respawn(r.respawnPoint, r.respawnHeading)
	}
}
