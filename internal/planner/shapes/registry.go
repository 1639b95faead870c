// Package shapes defines the editable floor-plan shape, the closed set of
// shape kinds and the registry mapping each kind to its coordinate schema
// and renderer adapter.
package shapes

import (
	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
)

// ============================================================
// Kinds
// ============================================================

// Kind is the shape discriminant. It never changes after creation.
type Kind string

const (
	KindRectangle     Kind = "rectangle"
	KindDoor          Kind = "door"
	KindOpening       Kind = "opening"
	KindCircle        Kind = "circle"
	KindText          Kind = "text"
	KindFreehand      Kind = "freehand"
	KindPolygon       Kind = "polygon"
	KindLibrarySymbol Kind = "library-symbol"
	KindObjectLibrary Kind = "object-library"
)

// Kinds lists every kind the registry knows, in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindRectangle, KindDoor, KindOpening, KindCircle, KindText,
		KindFreehand, KindPolygon, KindLibrarySymbol, KindObjectLibrary,
	}
}

// IsLibrary reports whether k is placed from the symbol catalog.
func (k Kind) IsLibrary() bool {
	return k == KindLibrarySymbol || k == KindObjectLibrary
}

// ============================================================
// Registry
// ============================================================

// Adapter names the renderer adapter family that draws a kind.
type Adapter int

const (
	AdapterRect Adapter = iota + 1
	AdapterCircle
	AdapterText
	AdapterPath
	AdapterSymbol
)

func (a Adapter) String() string {
	switch a {
	case AdapterRect:
		return "rect"
	case AdapterCircle:
		return "circle"
	case AdapterText:
		return "text"
	case AdapterPath:
		return "path"
	case AdapterSymbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// Style holds the type-specific defaults used when an attribute is absent.
type Style struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
	FontSize    float64
	Closed      bool
	Tension     float64
}

// Entry is what the registry knows about one kind.
type Entry struct {
	Kind      Kind
	Schema    geometry.Schema
	Adapter   Adapter
	Defaults  Style
	MinPoints int
}

const (
	DefaultStroke      = "#000000"
	DefaultStrokeWidth = 2.0
	DefaultFontSize    = 16.0
	SelectedStroke     = "#3b82f6"
	Transparent        = "transparent"
)

// Lookup returns the schema/adapter pair for k, or an UNKNOWN_KIND error for
// kinds this build does not know (e.g. added server-side later).
func Lookup(k Kind) (Entry, error) {
	base := Style{Fill: Transparent, Stroke: DefaultStroke, StrokeWidth: DefaultStrokeWidth}

	switch k {
	case KindRectangle, KindDoor, KindOpening:
		return Entry{Kind: k, Schema: geometry.SchemaRect, Adapter: AdapterRect, Defaults: base}, nil
	case KindLibrarySymbol, KindObjectLibrary:
		return Entry{Kind: k, Schema: geometry.SchemaRect, Adapter: AdapterSymbol, Defaults: base}, nil
	case KindCircle:
		return Entry{Kind: k, Schema: geometry.SchemaCircle, Adapter: AdapterCircle, Defaults: base}, nil
	case KindText:
		text := Style{Fill: DefaultStroke, FontSize: DefaultFontSize}
		return Entry{Kind: k, Schema: geometry.SchemaAnchor, Adapter: AdapterText, Defaults: text}, nil
	case KindFreehand:
		line := base
		line.Tension = 0.5
		return Entry{Kind: k, Schema: geometry.SchemaPoints, Adapter: AdapterPath, Defaults: line, MinPoints: 2}, nil
	case KindPolygon:
		poly := base
		poly.Closed = true
		return Entry{Kind: k, Schema: geometry.SchemaPoints, Adapter: AdapterPath, Defaults: poly, MinPoints: 3}, nil
	default:
		return Entry{}, errors.UnknownKind(string(k))
	}
}

// Known reports whether k has a registry entry.
func Known(k Kind) bool {
	_, err := Lookup(k)
	return err == nil
}
