package track

import (
	"encoding/json"
	"fmt"
	"os"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/apexrush/simulation/pkg/core"
)

// Layout is the declarative track definition loaded at race build time:
// the control-point loop plus the static and destructible furniture
// placed around it. The loop is given either as explicit control points
// or as a WKT LINESTRING exported by another tool.
type Layout struct {
	Name          string        `json:"name"`
	Tension       float64       `json:"tension"`
	ControlPoints [][]float64   `json:"controlPoints"`
	WKT           string        `json:"wkt"`
	Obstacles     []ObstacleDef `json:"obstacles"`
	Props         []PropDef     `json:"props"`
}

// ObstacleDef places one static obstacle.
type ObstacleDef struct {
	Position []float64 `json:"position"`
	Radius   float64   `json:"radius"`
}

// PropDef places one destructible scoring prop.
type PropDef struct {
	Position []float64 `json:"position"`
	Radius   float64   `json:"radius"`
	Score    int       `json:"score"`
}

// ParseLayout parses a JSON track document. Positions are [x,y,z]
// triples; [x,z] pairs are accepted with elevation zero.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse track layout JSON: %w", err)
	}
	if len(l.ControlPoints) == 0 && l.WKT != "" {
		return &l, nil
	}
	if len(l.ControlPoints) < 4 {
		return nil, fmt.Errorf("track %q: %w", l.Name, ErrTooFewControlPoints)
	}
	for i, cp := range l.ControlPoints {
		if len(cp) < 2 {
			return nil, fmt.Errorf("control point %d has insufficient values", i)
		}
	}
	return &l, nil
}

// LoadLayout reads and parses a track document from disk.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}
	return ParseLayout(data)
}

func vecFromSlice(v []float64) core.Vec3 {
	switch len(v) {
	case 0:
		return core.Vec3{}
	case 1:
		return core.Vec3{X: v[0]}
	case 2:
		// Ground-plane pair: x and z, flat elevation.
		return core.Vec3{X: v[0], Z: v[1]}
	default:
		return core.Vec3{X: v[0], Y: v[1], Z: v[2]}
	}
}

// Spline builds the closed curve from the layout's control points, or
// from its WKT geometry when no points are given.
func (l *Layout) Spline() (*Spline, error) {
	if len(l.ControlPoints) == 0 && l.WKT != "" {
		g, err := geom.UnmarshalWKT(l.WKT)
		if err != nil {
			return nil, fmt.Errorf("parsing track %q geometry: %w", l.Name, err)
		}
		ls, ok := g.AsLineString()
		if !ok {
			return nil, fmt.Errorf("track %q geometry is %s, want LINESTRING", l.Name, g.Type())
		}
		return FromLineString(ls, l.Tension)
	}
	pts := make([]core.Vec3, len(l.ControlPoints))
	for i, cp := range l.ControlPoints {
		pts[i] = vecFromSlice(cp)
	}
	return NewSpline(pts, l.Tension)
}

// BuildObstacles materializes the static obstacles with stable
// sequential identifiers.
func (l *Layout) BuildObstacles() []core.StaticObstacle {
	out := make([]core.StaticObstacle, len(l.Obstacles))
	for i, def := range l.Obstacles {
		out[i] = core.StaticObstacle{
			ID:       uint16(i + 1),
			Position: vecFromSlice(def.Position),
			Radius:   def.Radius,
		}
	}
	return out
}

// BuildProps materializes the destructible props, all unhit.
func (l *Layout) BuildProps() []*core.DestructibleProp {
	out := make([]*core.DestructibleProp, len(l.Props))
	for i, def := range l.Props {
		out[i] = &core.DestructibleProp{
			ID:       uint16(i + 1),
			Position: vecFromSlice(def.Position),
			Radius:   def.Radius,
			Score:    def.Score,
		}
	}
	return out
}

// FromLineString builds a spline from a simplefeatures LineString whose
// geometry plane is X/Y with Z elevation; coordinates are remapped into
// simulation space (X/Z ground, Y up). A closing point coincident with
// the first is dropped.
func FromLineString(ls geom.LineString, tension float64) (*Spline, error) {
	seq := ls.Coordinates()
	n := seq.Length()
	pts := make([]core.Vec3, 0, n)
	for i := 0; i < n; i++ {
		c := seq.Get(i)
		pts = append(pts, core.Vec3{X: c.X, Y: c.Z, Z: c.Y})
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return NewSpline(pts, tension)
}
