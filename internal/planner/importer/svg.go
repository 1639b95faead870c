// Package importer turns floor-plan SVG drawings into shapes. Elements whose
// ids follow the plan naming convention (Wall_*, Door_*, Window_*, Room_*)
// are classified by id; other drawable elements map to the matching kind.
package importer

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/scene"
	"space-planner/internal/planner/shapes"
)

// ============================================================
// XML Structures
// ============================================================

type svgDoc struct {
	XMLName xml.Name `xml:"svg"`
	group
}

type group struct {
	Groups    []group    `xml:"g"`
	Rects     []rect     `xml:"rect"`
	Paths     []path     `xml:"path"`
	Circles   []circle   `xml:"circle"`
	Texts     []text     `xml:"text"`
	Polylines []polyline `xml:"polyline"`
	Polygons  []polyline `xml:"polygon"`
}

type paint struct {
	Fill        string `xml:"fill,attr"`
	Stroke      string `xml:"stroke,attr"`
	StrokeWidth string `xml:"stroke-width,attr"`
}

type rect struct {
	ID     string  `xml:"id,attr"`
	X      float64 `xml:"x,attr"`
	Y      float64 `xml:"y,attr"`
	Width  float64 `xml:"width,attr"`
	Height float64 `xml:"height,attr"`
	paint
}

type path struct {
	ID string `xml:"id,attr"`
	D  string `xml:"d,attr"`
	paint
}

type circle struct {
	ID string  `xml:"id,attr"`
	CX float64 `xml:"cx,attr"`
	CY float64 `xml:"cy,attr"`
	R  float64 `xml:"r,attr"`
	paint
}

type text struct {
	ID      string  `xml:"id,attr"`
	X       float64 `xml:"x,attr"`
	Y       float64 `xml:"y,attr"`
	Content string  `xml:",chardata"`
	paint
}

type polyline struct {
	ID     string `xml:"id,attr"`
	Points string `xml:"points,attr"`
	paint
}

// ============================================================
// Result
// ============================================================

// Element is one imported shape together with the id it had in the SVG.
type Element struct {
	SourceID string
	Shape    scene.NewShape
}

// Skipped records an element that could not be turned into a shape.
type Skipped struct {
	SourceID string `json:"sourceId"`
	Reason   string `json:"reason"`
}

// Result is the outcome of one import. Elements keep document order.
type Result struct {
	Elements []Element
	Skipped  []Skipped
}

// Shapes returns the batch to hand to the scene store.
func (r *Result) Shapes() []scene.NewShape {
	out := make([]scene.NewShape, len(r.Elements))
	for i, el := range r.Elements {
		out[i] = el.Shape
	}
	return out
}

// ============================================================
// Parser
// ============================================================

type Option func(*parser)

func WithLogger(l *log.Logger) Option {
	return func(p *parser) { p.log = l }
}

type parser struct {
	log *log.Logger
	res Result
}

// Parse decodes an SVG document. Malformed XML fails the whole import;
// individual elements that do not form a valid shape are skipped.
func Parse(r io.Reader, opts ...Option) (*Result, error) {
	p := &parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = log.Default()
	}

	var doc svgDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "decode svg")
	}

	p.walk(doc.group)
	p.log.Debug("svg parsed", "shapes", len(p.res.Elements), "skipped", len(p.res.Skipped))
	return &p.res, nil
}

func (p *parser) walk(g group) {
	for _, r := range g.Rects {
		p.rect(r)
	}
	for _, el := range g.Paths {
		p.path(el)
	}
	for _, c := range g.Circles {
		p.add(c.ID, shapes.KindCircle, geometry.CircleCoords{CX: c.CX, CY: c.CY, Radius: c.R}, c.paint, nil)
	}
	for _, t := range g.Texts {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			p.skip(t.ID, "empty text")
			continue
		}
		p.add(t.ID, shapes.KindText, geometry.AnchorCoords{X: t.X, Y: t.Y}, t.paint, &content)
	}
	for _, pl := range g.Polylines {
		p.points(pl, shapes.KindFreehand)
	}
	for _, pg := range g.Polygons {
		p.points(pg, shapes.KindPolygon)
	}
	for _, child := range g.Groups {
		p.walk(child)
	}
}

func (p *parser) rect(r rect) {
	box := geometry.RectCoords{Left: r.X, Top: r.Y, Width: r.Width, Height: r.Height}
	kind, ok := Classify(r.ID)
	if !ok {
		kind = shapes.KindRectangle
	}
	if kind == shapes.KindPolygon {
		p.add(r.ID, kind, corners(box), r.paint, nil)
		return
	}
	p.add(r.ID, kind, box, r.paint, nil)
}

func (p *parser) path(el path) {
	pts, closed, err := ParsePath(el.D)
	if err != nil {
		p.skip(el.ID, err.Error())
		return
	}

	kind, classified := Classify(el.ID)
	switch {
	case classified && kind != shapes.KindPolygon:
		// Walls, doors and openings drawn as outlines become their bounding box.
		b := geometry.Bounds(geometry.PathCoords{Points: pts})
		p.add(el.ID, kind, geometry.RectCoords{Left: b.X, Top: b.Y, Width: b.W, Height: b.H}, el.paint, nil)
	case classified || closed:
		p.add(el.ID, shapes.KindPolygon, geometry.PathCoords{Points: openRing(pts)}, el.paint, nil)
	default:
		p.add(el.ID, shapes.KindFreehand, geometry.PathCoords{Points: pts}, el.paint, nil)
	}
}

func (p *parser) points(pl polyline, kind shapes.Kind) {
	pts, err := parsePoints(pl.Points)
	if err != nil {
		p.skip(pl.ID, err.Error())
		return
	}
	if k, ok := Classify(pl.ID); ok && k == shapes.KindPolygon {
		kind = k
	}
	if kind == shapes.KindPolygon {
		pts = openRing(pts)
	}
	p.add(pl.ID, kind, geometry.PathCoords{Points: pts}, pl.paint, nil)
}

func (p *parser) add(id string, kind shapes.Kind, c geometry.Coordinates, pt paint, label *string) {
	attrs := pt.attrs()
	attrs.Text = label

	if err := shapes.ValidateCoordinates(kind, c); err != nil {
		p.skip(id, err.Error())
		return
	}
	if err := shapes.ValidateAttrs(kind, attrs); err != nil {
		p.skip(id, err.Error())
		return
	}
	p.res.Elements = append(p.res.Elements, Element{
		SourceID: id,
		Shape:    scene.NewShape{Kind: kind, Coordinates: c, Attrs: attrs},
	})
}

func (p *parser) skip(id, reason string) {
	p.log.Warn("skipping svg element", "id", id, "reason", reason)
	p.res.Skipped = append(p.res.Skipped, Skipped{SourceID: id, Reason: reason})
}

func (pt paint) attrs() shapes.Attrs {
	var a shapes.Attrs
	if fill := strings.TrimSpace(pt.Fill); fill != "" && fill != "none" {
		a.Color = &fill
	}
	if stroke := strings.TrimSpace(pt.Stroke); stroke != "" && stroke != "none" {
		a.StrokeColor = &stroke
	}
	if w, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(pt.StrokeWidth), "px"), 64); err == nil && w >= 0 {
		a.StrokeWidth = &w
	}
	return a
}

// ============================================================
// Classification
// ============================================================

// Classify maps a plan element id to a shape kind.
func Classify(id string) (shapes.Kind, bool) {
	switch {
	case strings.HasPrefix(id, "Wall_"), strings.HasPrefix(id, "Hui_Wall_"):
		return shapes.KindRectangle, true
	case strings.HasPrefix(id, "Door_"):
		return shapes.KindDoor, true
	case strings.HasPrefix(id, "Window_"):
		return shapes.KindOpening, true
	case strings.HasPrefix(id, "Room_"),
		strings.HasSuffix(id, "_room"), // Hall_room, Toilet_room
		strings.HasSuffix(id, "_Room"),
		strings.HasPrefix(id, "Balcony"):
		return shapes.KindPolygon, true
	default:
		return "", false
	}
}

func corners(r geometry.RectCoords) geometry.PathCoords {
	return geometry.PathCoords{Points: []geometry.Point{
		{X: r.Left, Y: r.Top},
		{X: r.Left + r.Width, Y: r.Top},
		{X: r.Left + r.Width, Y: r.Top + r.Height},
		{X: r.Left, Y: r.Top + r.Height},
	}}
}

// openRing drops a trailing vertex that repeats the first one; polygons
// close implicitly.
func openRing(pts []geometry.Point) []geometry.Point {
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		return pts[:n-1]
	}
	return pts
}
