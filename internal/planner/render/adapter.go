package render

import (
	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/shapes"
)

// ============================================================
// Primitives
// ============================================================

// PrimitiveKind is the drawable family a primitive belongs to.
type PrimitiveKind string

const (
	PrimRect   PrimitiveKind = "rect"
	PrimCircle PrimitiveKind = "circle"
	PrimText   PrimitiveKind = "text"
	PrimLine   PrimitiveKind = "line"
	PrimSymbol PrimitiveKind = "symbol"
)

// Primitive is what an adapter hands to a drawing surface. X/Y is the node
// position; lines are positioned at the origin and carry absolute points.
type Primitive struct {
	ShapeID string        `json:"shapeId"`
	Type    shapes.Kind   `json:"type"`
	Kind    PrimitiveKind `json:"kind"`

	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Width  float64   `json:"width,omitempty"`
	Height float64   `json:"height,omitempty"`
	Radius float64   `json:"radius,omitempty"`
	Points []float64 `json:"points,omitempty"`

	Closed  bool    `json:"closed,omitempty"`
	Tension float64 `json:"tension,omitempty"`

	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	SymbolID string  `json:"symbolId,omitempty"`
	Label    string  `json:"label,omitempty"`

	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Rotation    float64 `json:"rotation"`
	ScaleX      float64 `json:"scaleX"`
	ScaleY      float64 `json:"scaleY"`

	Selected  bool `json:"selected"`
	Draggable bool `json:"draggable"`
}

func (p Primitive) clone() Primitive {
	if p.Points != nil {
		p.Points = append([]float64(nil), p.Points...)
	}
	return p
}

// ============================================================
// Adapters
// ============================================================

// Adapter turns a shape of its family into a primitive.
type Adapter interface {
	Draw(s shapes.Shape, selected bool, style shapes.Style) (Primitive, error)
}

// AdapterFor returns the adapter registered for a shape kind.
func AdapterFor(kind shapes.Kind) (Adapter, shapes.Style, error) {
	entry, err := shapes.Lookup(kind)
	if err != nil {
		return nil, shapes.Style{}, err
	}
	switch entry.Adapter {
	case shapes.AdapterRect:
		return rectAdapter{}, entry.Defaults, nil
	case shapes.AdapterCircle:
		return circleAdapter{}, entry.Defaults, nil
	case shapes.AdapterText:
		return textAdapter{}, entry.Defaults, nil
	case shapes.AdapterPath:
		return pathAdapter{}, entry.Defaults, nil
	case shapes.AdapterSymbol:
		return symbolAdapter{}, entry.Defaults, nil
	default:
		return nil, shapes.Style{}, errors.UnknownKind(string(kind))
	}
}

// base fills the attributes every family shares.
func base(s shapes.Shape, selected bool, style shapes.Style, kind PrimitiveKind) Primitive {
	p := Primitive{
		ShapeID:     s.ID,
		Type:        s.Type,
		Kind:        kind,
		Fill:        orString(s.Color, style.Fill),
		Stroke:      orString(s.StrokeColor, style.Stroke),
		StrokeWidth: orFloat(s.StrokeWidth, style.StrokeWidth),
		Rotation:    s.RotationDeg(),
		ScaleX:      1,
		ScaleY:      1,
		Selected:    selected,
		Draggable:   true,
	}
	if selected {
		p.Stroke = shapes.SelectedStroke
	}
	return p
}

type rectAdapter struct{}

func (rectAdapter) Draw(s shapes.Shape, selected bool, style shapes.Style) (Primitive, error) {
	c, ok := s.Coordinates.(geometry.RectCoords)
	if !ok {
		return Primitive{}, mismatch(s)
	}
	p := base(s, selected, style, PrimRect)
	p.X, p.Y = c.Left, c.Top
	p.Width, p.Height = c.Width, c.Height
	return p, nil
}

type circleAdapter struct{}

func (circleAdapter) Draw(s shapes.Shape, selected bool, style shapes.Style) (Primitive, error) {
	c, ok := s.Coordinates.(geometry.CircleCoords)
	if !ok {
		return Primitive{}, mismatch(s)
	}
	p := base(s, selected, style, PrimCircle)
	p.X, p.Y = c.CX, c.CY
	p.Radius = c.Radius
	return p, nil
}

type textAdapter struct{}

func (textAdapter) Draw(s shapes.Shape, selected bool, style shapes.Style) (Primitive, error) {
	c, ok := s.Coordinates.(geometry.AnchorCoords)
	if !ok {
		return Primitive{}, mismatch(s)
	}
	p := base(s, selected, style, PrimText)
	p.X, p.Y = c.X, c.Y
	p.Text = orString(s.Text, "")
	p.FontSize = orFloat(s.LengthMM(), style.FontSize)
	// Text is filled, not stroked, unless it is selected.
	if !selected {
		p.Stroke = orString(s.StrokeColor, "")
		p.StrokeWidth = orFloat(s.StrokeWidth, 0)
	}
	return p, nil
}

type pathAdapter struct{}

func (pathAdapter) Draw(s shapes.Shape, selected bool, style shapes.Style) (Primitive, error) {
	c, ok := s.Coordinates.(geometry.PathCoords)
	if !ok {
		return Primitive{}, mismatch(s)
	}
	p := base(s, selected, style, PrimLine)
	p.Points = geometry.FlattenPoints(c.Points)
	p.Closed = style.Closed
	p.Tension = style.Tension
	// Points are absolute, so the node sits at the origin and rotation
	// would spin the line around (0,0).
	p.Rotation = 0
	return p, nil
}

type symbolAdapter struct{}

func (symbolAdapter) Draw(s shapes.Shape, selected bool, style shapes.Style) (Primitive, error) {
	c, ok := s.Coordinates.(geometry.RectCoords)
	if !ok {
		return Primitive{}, mismatch(s)
	}
	p := base(s, selected, style, PrimSymbol)
	p.X, p.Y = c.Left, c.Top
	p.Width, p.Height = c.Width, c.Height
	p.SymbolID = s.SymbolID()
	return p, nil
}

func mismatch(s shapes.Shape) error {
	return errors.Validation("shape %s: %s adapter cannot draw %T", s.ID, s.Type, s.Coordinates)
}

func orString(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func orFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
