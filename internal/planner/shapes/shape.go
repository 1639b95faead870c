package shapes

import (
	"encoding/json"

	"space-planner/internal/planner/geometry"
)

// ============================================================
// Shape
// ============================================================

// Shape is one editable element of a floor-plan scene.
type Shape struct {
	ID          string
	Type        Kind
	Coordinates geometry.Coordinates

	Color       *string
	StrokeColor *string
	StrokeWidth *float64
	Rotation    *float64

	// Text and Metadata.LengthMM are only valid on text shapes,
	// Metadata.SymbolID only on library kinds.
	Text     *string
	Metadata *Metadata

	// Opaque keeps the raw coordinate payload of kinds this build does not
	// know, and of stored shapes that failed to parse or validate, so they
	// survive a load/save round trip untouched. Coordinates is nil then.
	Opaque json.RawMessage
}

// Metadata carries kind-specific extras.
type Metadata struct {
	LengthMM *float64 `json:"lengthMM,omitempty"`
	SymbolID string   `json:"symbolId,omitempty"`
}

// Clone returns a deep copy that shares no memory with s.
func (s Shape) Clone() Shape {
	out := s
	if s.Coordinates != nil {
		out.Coordinates = geometry.Clone(s.Coordinates)
	}
	out.Color = cloneString(s.Color)
	out.StrokeColor = cloneString(s.StrokeColor)
	out.StrokeWidth = cloneFloat(s.StrokeWidth)
	out.Rotation = cloneFloat(s.Rotation)
	out.Text = cloneString(s.Text)
	if s.Metadata != nil {
		md := *s.Metadata
		md.LengthMM = cloneFloat(s.Metadata.LengthMM)
		out.Metadata = &md
	}
	if s.Opaque != nil {
		out.Opaque = append(json.RawMessage(nil), s.Opaque...)
	}
	return out
}

// Inert reports whether s has no usable coordinates. Inert shapes are kept
// and saved back but never drawn or moved.
func (s Shape) Inert() bool { return s.Coordinates == nil }

// MakeInert moves the coordinates of s into Opaque.
func MakeInert(s Shape) Shape {
	out := s.Clone()
	if out.Coordinates != nil {
		if raw, err := json.Marshal(out.Coordinates); err == nil {
			out.Opaque = raw
		}
		out.Coordinates = nil
	}
	if out.Opaque == nil {
		out.Opaque = json.RawMessage("null")
	}
	return out
}

// RotationDeg returns the rotation or 0 when absent.
func (s Shape) RotationDeg() float64 {
	if s.Rotation == nil {
		return 0
	}
	return *s.Rotation
}

// LengthMM returns the metadata length or nil.
func (s Shape) LengthMM() *float64 {
	if s.Metadata == nil {
		return nil
	}
	return s.Metadata.LengthMM
}

// SymbolID returns the catalog symbol a library shape was placed from.
func (s Shape) SymbolID() string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata.SymbolID
}

// Equivalent is the render-equivalence used to skip redraws: id, type,
// coordinates (deep), color, strokeColor, strokeWidth, rotation, text and
// metadata.lengthMM must all match.
func Equivalent(a, b Shape) bool {
	return a.ID == b.ID &&
		a.Type == b.Type &&
		geometry.Equal(a.Coordinates, b.Coordinates) &&
		eqString(a.Color, b.Color) &&
		eqString(a.StrokeColor, b.StrokeColor) &&
		eqFloat(a.StrokeWidth, b.StrokeWidth) &&
		eqFloat(a.Rotation, b.Rotation) &&
		eqString(a.Text, b.Text) &&
		eqFloat(a.LengthMM(), b.LengthMM())
}

// ============================================================
// Attributes
// ============================================================

// Attrs is an optional-field patch over a shape's non-geometric attributes.
type Attrs struct {
	Color       *string  `json:"color,omitempty"`
	StrokeColor *string  `json:"strokeColor,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	Rotation    *float64 `json:"rotation,omitempty"`
	Text        *string  `json:"text,omitempty"`
	LengthMM    *float64 `json:"lengthMM,omitempty"`
	SymbolID    *string  `json:"symbolId,omitempty"`
}

// Empty reports whether the patch sets nothing.
func (a Attrs) Empty() bool {
	return a == Attrs{}
}

// Apply returns a copy of s with every set field of a written over it.
func (a Attrs) Apply(s Shape) Shape {
	out := s.Clone()
	if a.Color != nil {
		out.Color = cloneString(a.Color)
	}
	if a.StrokeColor != nil {
		out.StrokeColor = cloneString(a.StrokeColor)
	}
	if a.StrokeWidth != nil {
		out.StrokeWidth = cloneFloat(a.StrokeWidth)
	}
	if a.Rotation != nil {
		r := geometry.NormalizeDegrees(*a.Rotation)
		out.Rotation = &r
	}
	if a.Text != nil {
		out.Text = cloneString(a.Text)
	}
	if a.LengthMM != nil || a.SymbolID != nil {
		md := Metadata{}
		if out.Metadata != nil {
			md = *out.Metadata
		}
		if a.LengthMM != nil {
			md.LengthMM = cloneFloat(a.LengthMM)
		}
		if a.SymbolID != nil {
			md.SymbolID = *a.SymbolID
		}
		out.Metadata = &md
	}
	return out
}

// ============================================================
// Helpers
// ============================================================

// String returns a pointer to v.
func String(v string) *string { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
