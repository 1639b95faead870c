package interaction

import (
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/shapes"
)

// DragSession is the transient state of one move gesture. Originals are
// captured at drag start; nothing is written until the session commits.
type DragSession struct {
	IDs       []string
	Originals map[string]geometry.Coordinates
	Start     geometry.Point
	DX, DY    float64
}

func newDragSession(start geometry.Point, selected []shapes.Shape) DragSession {
	s := DragSession{Start: start, Originals: make(map[string]geometry.Coordinates, len(selected))}
	for _, sh := range selected {
		if sh.Coordinates == nil {
			continue
		}
		s.IDs = append(s.IDs, sh.ID)
		s.Originals[sh.ID] = geometry.Clone(sh.Coordinates)
	}
	return s
}

// MoveTo updates the offset from the drag start.
func (s *DragSession) MoveTo(p geometry.Point) {
	s.DX = p.X - s.Start.X
	s.DY = p.Y - s.Start.Y
}

// Committed returns the coordinates id will be written with.
func (s DragSession) Committed(id string) (geometry.Coordinates, bool) {
	orig, ok := s.Originals[id]
	if !ok {
		return nil, false
	}
	return geometry.Translate(orig, s.DX, s.DY), true
}

// TransformSession is the transient state of one resize or rotate gesture
// on a single shape.
type TransformSession struct {
	ID       string
	Kind     shapes.Kind
	Handle   geometry.Handle
	Original geometry.Coordinates
	Rotation float64
	Start    geometry.Point
	Pivot    geometry.Point

	ScaleX, ScaleY float64
	Angle          float64
}

func newTransformSession(sh shapes.Shape, h geometry.Handle, start geometry.Point) TransformSession {
	s := TransformSession{
		ID:       sh.ID,
		Kind:     sh.Type,
		Handle:   h,
		Original: geometry.Clone(sh.Coordinates),
		Rotation: sh.RotationDeg(),
		Start:    start,
		ScaleX:   1,
		ScaleY:   1,
	}
	if _, ok := sh.Coordinates.(geometry.PathCoords); ok {
		s.Pivot = geometry.Bounds(sh.Coordinates).Center()
	} else {
		s.Pivot = geometry.Origin(sh.Coordinates)
	}
	return s
}

// Rotating reports whether the rotate handle was grabbed.
func (s TransformSession) Rotating() bool {
	return s.Handle == geometry.HandleRotate
}

// MoveTo updates scale or angle from the pointer position.
func (s *TransformSession) MoveTo(p geometry.Point) {
	if s.Rotating() {
		s.Angle = geometry.AngleAround(s.Pivot, s.Start, p)
		return
	}
	// Handle deltas are measured in the shape's unrotated frame.
	d := geometry.RotatePoint(p.Sub(s.Start), geometry.Point{}, -s.Rotation)
	s.ScaleX, s.ScaleY = geometry.HandleScale(geometry.Bounds(s.Original), s.Handle, d.X, d.Y)
}

// Resized returns the committed coordinates of a resize, keeping the corner
// opposite the handle fixed.
func (s TransformSession) Resized() geometry.Coordinates {
	if s.Rotation == 0 {
		return geometry.ResizeFromHandle(s.Original, s.Handle, s.ScaleX, s.ScaleY)
	}
	resized := geometry.Resize(s.Original, s.ScaleX, s.ScaleY)
	dx, dy := geometry.AnchorShift(geometry.Bounds(s.Original), geometry.Bounds(resized), s.Handle)
	w := geometry.RotatePoint(geometry.Point{X: dx, Y: dy}, geometry.Point{}, s.Rotation)
	return geometry.Translate(resized, w.X, w.Y)
}

// RotatedPoints returns a point list turned by Angle about the pivot. Point
// shapes carry absolute coordinates, so they rotate their geometry instead
// of a rotation attribute.
func (s TransformSession) RotatedPoints() (geometry.Coordinates, bool) {
	path, ok := s.Original.(geometry.PathCoords)
	if !ok {
		return nil, false
	}
	pts := make([]geometry.Point, len(path.Points))
	for i, p := range path.Points {
		pts[i] = geometry.RotatePoint(p, s.Pivot, s.Angle)
	}
	return geometry.PathCoords{Points: pts}, true
}

// Rotated returns the committed rotation attribute.
func (s TransformSession) Rotated() float64 {
	return geometry.Rotate(s.Rotation, s.Angle)
}

// createSession collects a rubber band or a point trail for a new shape.
type createSession struct {
	Kind     shapes.Kind
	SymbolID string
	Start    geometry.Point
	Current  geometry.Point
	Points   []geometry.Point
}

func (s *createSession) add(p geometry.Point) {
	if n := len(s.Points); n > 0 && s.Points[n-1] == p {
		return
	}
	s.Points = append(s.Points, p)
}
