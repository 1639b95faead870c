package shapes

import (
	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
)

// ValidateCoordinates checks that c is the payload the registry expects for
// kind. Unknown kinds fail with UNKNOWN_KIND, anything else with VALIDATION.
func ValidateCoordinates(kind Kind, c geometry.Coordinates) error {
	entry, err := Lookup(kind)
	if err != nil {
		return err
	}
	if c == nil {
		return errors.Validation("%s shape has no coordinates", kind)
	}
	if c.Schema() != entry.Schema {
		return errors.Validation("%s expects %s coordinates, got %s", kind, entry.Schema, c.Schema())
	}
	if !geometry.Finite(c) {
		return errors.Validation("%s coordinates must be finite numbers", kind)
	}

	switch v := c.(type) {
	case geometry.RectCoords:
		if v.Width < 0 || v.Height < 0 {
			return errors.Validation("%s width and height must not be negative", kind)
		}
	case geometry.CircleCoords:
		if v.Radius < 0 {
			return errors.Validation("circle radius must not be negative")
		}
	case geometry.PathCoords:
		if len(v.Points) < entry.MinPoints {
			return errors.Validation("%s needs at least %d points, got %d", kind, entry.MinPoints, len(v.Points))
		}
	}
	return nil
}

// ValidateAttrs rejects attributes that do not belong on kind.
func ValidateAttrs(kind Kind, a Attrs) error {
	if a.Text != nil && kind != KindText {
		return errors.Validation("text is only valid on text shapes")
	}
	if a.LengthMM != nil {
		if kind != KindText {
			return errors.Validation("lengthMM is only valid on text shapes")
		}
		if *a.LengthMM <= 0 {
			return errors.Validation("lengthMM must be positive")
		}
	}
	if a.SymbolID != nil && !kind.IsLibrary() {
		return errors.Validation("symbolId is only valid on library shapes")
	}
	if a.StrokeWidth != nil && *a.StrokeWidth < 0 {
		return errors.Validation("strokeWidth must not be negative")
	}
	return nil
}

// Validate checks a whole shape.
func Validate(s Shape) error {
	if s.ID == "" {
		return errors.Validation("shape id is required")
	}
	if err := ValidateCoordinates(s.Type, s.Coordinates); err != nil {
		return err
	}
	return ValidateAttrs(s.Type, attrsOf(s))
}

func attrsOf(s Shape) Attrs {
	a := Attrs{
		Color:       s.Color,
		StrokeColor: s.StrokeColor,
		StrokeWidth: s.StrokeWidth,
		Rotation:    s.Rotation,
		Text:        s.Text,
	}
	if s.Metadata != nil {
		a.LengthMM = s.Metadata.LengthMM
		if s.Metadata.SymbolID != "" {
			a.SymbolID = &s.Metadata.SymbolID
		}
	}
	return a
}
