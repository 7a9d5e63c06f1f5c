// Package track models the closed racing circuit: a smoothed parametric
// loop over 3D control points plus the progress-query primitives every
// other simulation component depends on.
package track

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/apexrush/simulation/pkg/core"
)

// ErrTooFewControlPoints is returned when a loop cannot be formed.
var ErrTooFewControlPoints = errors.New("track requires at least 4 control points")

const (
	// projectSamples is the fixed uniform sampling resolution used by
	// Project. Lap and ranking correctness only needs gameplay-grade
	// accuracy, so the best sample wins with no refinement step.
	projectSamples = 200

	// tangentDelta is the parameter step for finite-difference tangents.
	tangentDelta = 1e-4
)

var up = core.Vec3{Y: 1}

// Spline is a closed cardinal (Catmull-Rom family) curve through an
// ordered ring of control points. Immutable after construction.
type Spline struct {
	points  []core.Vec3
	tension float64

	// Uniform samples precomputed for Project.
	samplePos []core.Vec3
	length    float64
}

// NewSpline builds a closed loop through the given control points with
// the given smoothing tension in [0,1); 0 is a full Catmull-Rom curve,
// values toward 1 straighten the segments. The points are copied.
// Self-intersecting input is the caller's responsibility and is not
// validated here.
func NewSpline(points []core.Vec3, tension float64) (*Spline, error) {
	if len(points) < 4 {
		return nil, ErrTooFewControlPoints
	}
	s := &Spline{
		points:  append([]core.Vec3(nil), points...),
		tension: tension,
	}
	s.samplePos = make([]core.Vec3, projectSamples)
	prev := s.PointAt(0)
	first := prev
	for i := 0; i < projectSamples; i++ {
		p := s.PointAt(float64(i) / projectSamples)
		s.samplePos[i] = p
		if i > 0 {
			s.length += p.DistanceTo(prev)
		}
		prev = p
	}
	s.length += prev.DistanceTo(first)
	return s, nil
}

// wrap maps any real t onto [0,1).
func wrap(t float64) float64 {
	t = math.Mod(t, 1)
	if t < 0 {
		t += 1
	}
	return t
}

// PointAt evaluates the curve at parameter t. Defined for all real t via
// modulo-1 wraparound; PointAt(t) == PointAt(t+1) and the loop is
// continuous across the seam.
func (s *Spline) PointAt(t float64) core.Vec3 {
	t = wrap(t)
	n := len(s.points)
	scaled := t * float64(n)
	seg := int(scaled)
	if seg >= n {
		seg = n - 1
	}
	u := scaled - float64(seg)

	p0 := s.points[(seg-1+n)%n]
	p1 := s.points[seg]
	p2 := s.points[(seg+1)%n]
	p3 := s.points[(seg+2)%n]

	// Cardinal spline: Hermite basis with tension-scaled tangents.
	k := (1 - s.tension) / 2
	m1 := p2.Sub(p0).Scale(k)
	m2 := p3.Sub(p1).Scale(k)

	u2 := u * u
	u3 := u2 * u
	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2

	return p1.Scale(h00).
		Add(m1.Scale(h10)).
		Add(p2.Scale(h01)).
		Add(m2.Scale(h11))
}

// TangentAt returns the unit tangent at parameter t, computed by central
// finite difference so it stays loop-consistent across the seam.
func (s *Spline) TangentAt(t float64) core.Vec3 {
	a := s.PointAt(t - tangentDelta)
	b := s.PointAt(t + tangentDelta)
	return b.Sub(a).Normalized()
}

// HeadingAt returns the yaw (radians) of the direction of travel at t,
// using the simulation's forward convention (sin h, 0, cos h).
func (s *Spline) HeadingAt(t float64) float64 {
	tan := s.TangentAt(t)
	return math.Atan2(tan.X, tan.Z)
}

// OffsetAt returns the point at parameter t displaced laterally by the
// given distance, positive toward the right of the direction of travel.
// Used to place rivals in lanes.
func (s *Spline) OffsetAt(t, lateral float64) core.Vec3 {
	p := s.PointAt(t)
	right := s.TangentAt(t).Cross(up).Normalized()
	return p.Add(right.Scale(lateral))
}

// Project returns the parameter t* minimizing the distance from the
// curve to the given position, at the fixed sampling resolution. Ties
// break toward the lowest t. Side effect free; always returns a value.
func (s *Spline) Project(pos core.Vec3) float64 {
	best := 0
	bestDistSq := math.MaxFloat64
	for i, sp := range s.samplePos {
		d := sp.DistanceSqTo(pos)
		if d < bestDistSq {
			bestDistSq = d
			best = i
		}
	}
	return float64(best) / projectSamples
}

// StartPoint returns the start/finish line position (t = 0).
func (s *Spline) StartPoint() core.Vec3 {
	return s.PointAt(0)
}

// QuarterPoint returns the mid-course checkpoint position (t = 0.25)
// used to arm the lap latch.
func (s *Spline) QuarterPoint() core.Vec3 {
	return s.PointAt(0.25)
}

// Length returns the approximate loop length at the sampling resolution.
func (s *Spline) Length() float64 {
	return s.length
}

// ControlPointCount returns the number of control points in the ring.
func (s *Spline) ControlPointCount() int {
	return len(s.points)
}

// LineString returns the sampled loop as a closed simplefeatures
// LineString on the ground plane (simulation X/Z maps to geometry X/Y,
// elevation to geometry Z), for export and inspection tooling.
func (s *Spline) LineString() geom.LineString {
	flat := make([]float64, 0, (projectSamples+1)*3)
	for _, p := range s.samplePos {
		flat = append(flat, p.X, p.Z, p.Y)
	}
	first := s.samplePos[0]
	flat = append(flat, first.X, first.Z, first.Y)
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ))
	if err != nil {
		// Unreachable for a ring of distinct samples; the empty line
		// string is the degenerate fallback.
		return geom.LineString{}
	}
	return ls
}

// Bounds returns the envelope of the sampled loop on the ground plane.
func (s *Spline) Bounds() geom.Envelope {
	return s.LineString().Envelope()
}
