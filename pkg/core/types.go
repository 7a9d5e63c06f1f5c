// Package core holds the plain data types shared between the simulation,
// its storage backends and external collaborators. Nothing in here has
// behavior beyond small value-type helpers; the simulation packages own
// all mutation.
package core

import "math"

// Vec3 represents a 3D coordinate in track-local space.
// Y is the vertical axis; the track plane is X/Z.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// LengthSq returns the squared magnitude. Cheaper than Length when only
// comparing distances.
func (v Vec3) LengthSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Length returns the magnitude of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.LengthSq())
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vec3) DistanceTo(o Vec3) float64 {
	return v.Sub(o).Length()
}

// DistanceSqTo returns the squared distance between v and o.
func (v Vec3) DistanceSqTo(o Vec3) float64 {
	return v.Sub(o).LengthSq()
}

// Normalized returns the unit vector in the direction of v, or the zero
// vector when v has no magnitude.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// IsZero reports whether every component is exactly zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// DriverIntent is the abstract per-frame input for one vehicle. The
// simulation never sees keyboards or touch events, only this.
// Throttle, Brake and Steer are expected in [0,1], [0,1] and [-1,1];
// out-of-range values are clamped by the consumer, never rejected.
type DriverIntent struct {
	Throttle       float64 `json:"throttle"`
	Brake          float64 `json:"brake"`
	Steer          float64 `json:"steer"`
	NitroRequested bool    `json:"nitroRequested"`
}

// StaticObstacle is immovable track furniture. Created at track build
// time, never mutated, never destroyed during a race.
type StaticObstacle struct {
	ID       uint16  `json:"id"`
	Position Vec3    `json:"position"`
	Radius   float64 `json:"radius"`
}

// DestructibleProp is a one-shot scoring prop. Hit transitions
// false -> true exactly once, after which the prop is excluded from
// collision tests.
type DestructibleProp struct {
	ID       uint16  `json:"id"`
	Position Vec3    `json:"position"`
	Radius   float64 `json:"radius"`
	Score    int     `json:"score"`
	Hit      bool    `json:"hit"`
}

// SavedVehicleState is the round-trippable subset of vehicle state.
// Restoring it and replaying the same future inputs reproduces the same
// subsequent frames.
type SavedVehicleState struct {
	Position    Vec3    `json:"position"`
	Heading     float64 `json:"heading"`
	Speed       float64 `json:"speed"`
	Health      float64 `json:"health"`
	NitroAmount float64 `json:"nitroAmount"`
	Progress    float64 `json:"progress"`
}

// VehicleSnapshot is the read-only per-frame view handed to rendering,
// HUD and recording collaborators. Collaborators must never reach back
// into simulation state.
type VehicleSnapshot struct {
	ID         uint16  `json:"id"`
	Name       string  `json:"name"`
	IsPlayer   bool    `json:"isPlayer"`
	Position   Vec3    `json:"position"`
	Heading    float64 `json:"heading"`
	Speed      float64 `json:"speed"`
	Drift      float64 `json:"drift"`
	Nitro      float64 `json:"nitro"`
	NitroState string  `json:"nitroState"`
	Health     float64 `json:"health"`
	Progress   float64 `json:"progress"`
	Lap        int     `json:"lap"`
	Rank       int     `json:"rank"`
}
