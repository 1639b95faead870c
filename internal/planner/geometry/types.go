// Package geometry holds the coordinate payloads of floor-plan shapes and the
// pure transform math applied to them. Nothing in this package keeps state.
package geometry

import "math"

// ============================================================
// Primitives
// ============================================================

// Point is a 2D point in scene units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p shifted by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Sub returns the vector p - o.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Dist returns the euclidean distance between p and o.
func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Rect is an axis-aligned box defined by its top-left corner and size.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

func (r Rect) MaxX() float64 { return r.X + r.W }
func (r Rect) MaxY() float64 { return r.Y + r.H }

func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.MaxX() && p.Y <= r.MaxY()
}

// Intersects reports whether r and o overlap or touch.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.MaxX() && o.X <= r.MaxX() && r.Y <= o.MaxY() && o.Y <= r.MaxY()
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.MaxX(), o.MaxX())
	maxY := math.Max(r.MaxY(), o.MaxY())
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// RectFromPoints returns the normalized box spanned by two corners.
func RectFromPoints(a, b Point) Rect {
	return Rect{
		X: math.Min(a.X, b.X),
		Y: math.Min(a.Y, b.Y),
		W: math.Abs(a.X - b.X),
		H: math.Abs(a.Y - b.Y),
	}
}

// ============================================================
// Coordinate payloads
// ============================================================

// Schema identifies which coordinate payload a shape kind carries.
type Schema int

const (
	SchemaRect Schema = iota + 1
	SchemaCircle
	SchemaAnchor
	SchemaPoints
)

func (s Schema) String() string {
	switch s {
	case SchemaRect:
		return "rect"
	case SchemaCircle:
		return "circle"
	case SchemaAnchor:
		return "anchor"
	case SchemaPoints:
		return "points"
	default:
		return "unknown"
	}
}

// Coordinates is the discriminated coordinate payload of a shape. The set
// of implementations is closed; every switch over it has a default arm.
type Coordinates interface {
	Schema() Schema
	coordinates()
}

// RectCoords is the payload of rectangle, door, opening and library kinds.
type RectCoords struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CircleCoords is the payload of circle shapes.
type CircleCoords struct {
	CX     float64 `json:"cx"`
	CY     float64 `json:"cy"`
	Radius float64 `json:"radius"`
}

// AnchorCoords is the payload of text shapes.
type AnchorCoords struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PathCoords is the payload of freehand and polygon shapes.
type PathCoords struct {
	Points []Point `json:"points"`
}

func (RectCoords) Schema() Schema   { return SchemaRect }
func (CircleCoords) Schema() Schema { return SchemaCircle }
func (AnchorCoords) Schema() Schema { return SchemaAnchor }
func (PathCoords) Schema() Schema   { return SchemaPoints }

func (RectCoords) coordinates()   {}
func (CircleCoords) coordinates() {}
func (AnchorCoords) coordinates() {}
func (PathCoords) coordinates()   {}

// Clone returns a copy of c that shares no memory with it.
func Clone(c Coordinates) Coordinates {
	switch v := c.(type) {
	case PathCoords:
		pts := make([]Point, len(v.Points))
		copy(pts, v.Points)
		return PathCoords{Points: pts}
	default:
		return c
	}
}

// Equal is deep equality of two payloads.
func Equal(a, b Coordinates) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case RectCoords:
		bv, ok := b.(RectCoords)
		return ok && av == bv
	case CircleCoords:
		bv, ok := b.(CircleCoords)
		return ok && av == bv
	case AnchorCoords:
		bv, ok := b.(AnchorCoords)
		return ok && av == bv
	case PathCoords:
		bv, ok := b.(PathCoords)
		if !ok || len(av.Points) != len(bv.Points) {
			return false
		}
		for i := range av.Points {
			if av.Points[i] != bv.Points[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Finite reports whether every number in c is finite.
func Finite(c Coordinates) bool {
	ok := func(vals ...float64) bool {
		for _, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
		return true
	}
	switch v := c.(type) {
	case RectCoords:
		return ok(v.Left, v.Top, v.Width, v.Height)
	case CircleCoords:
		return ok(v.CX, v.CY, v.Radius)
	case AnchorCoords:
		return ok(v.X, v.Y)
	case PathCoords:
		for _, p := range v.Points {
			if !ok(p.X, p.Y) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Bounds returns the axis-aligned box of c, ignoring rotation.
func Bounds(c Coordinates) Rect {
	switch v := c.(type) {
	case RectCoords:
		return Rect{X: v.Left, Y: v.Top, W: v.Width, H: v.Height}
	case CircleCoords:
		return Rect{X: v.CX - v.Radius, Y: v.CY - v.Radius, W: 2 * v.Radius, H: 2 * v.Radius}
	case AnchorCoords:
		return Rect{X: v.X, Y: v.Y}
	case PathCoords:
		return pointsBounds(v.Points)
	default:
		return Rect{}
	}
}

// Origin returns the position the renderer places the node at.
func Origin(c Coordinates) Point {
	switch v := c.(type) {
	case RectCoords:
		return Point{X: v.Left, Y: v.Top}
	case CircleCoords:
		return Point{X: v.CX, Y: v.CY}
	case AnchorCoords:
		return Point{X: v.X, Y: v.Y}
	case PathCoords:
		// Lines are drawn with absolute points from a node at (0,0).
		return Point{}
	default:
		return Point{}
	}
}

func pointsBounds(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
