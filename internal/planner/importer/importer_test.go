package importer

import (
	"strings"
	"testing"

	"space-planner/internal/common/errors"
	"space-planner/internal/common/logging"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/shapes"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		id   string
		want shapes.Kind
		ok   bool
	}{
		{"Wall_1", shapes.KindRectangle, true},
		{"Hui_Wall_12", shapes.KindRectangle, true},
		{"Door_3", shapes.KindDoor, true},
		{"Window_2", shapes.KindOpening, true},
		{"Room_kitchen", shapes.KindPolygon, true},
		{"Hall_room", shapes.KindPolygon, true},
		{"Toilet_Room", shapes.KindPolygon, true},
		{"Balcony", shapes.KindPolygon, true},
		{"Balcony_2", shapes.KindPolygon, true},
		{"background", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Classify(tt.id)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Classify(%q) = %q, %v; want %q, %v", tt.id, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name   string
		d      string
		want   []geometry.Point
		closed bool
	}{
		{"absolute", "M 0 0 L 10 0 L 10 10", []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, false},
		{"relative", "m10,10 l5,0 l0,5 z", []geometry.Point{{X: 10, Y: 10}, {X: 15, Y: 10}, {X: 15, Y: 15}}, true},
		{"hv", "M0 0H20V30h-5v-10", []geometry.Point{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 30}, {X: 15, Y: 30}, {X: 15, Y: 20}}, false},
		{"implicit lineto", "M0 0 10 0 10 10", []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, false},
		{"curve end points", "M0 0 C 5 5 10 5 20 0 Q 25 5 30 0", []geometry.Point{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 30, Y: 0}}, false},
		{"compact numbers", "M-5-5L.5.5", []geometry.Point{{X: -5, Y: -5}, {X: 0.5, Y: 0.5}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts, closed, err := ParsePath(tt.d)
			if err != nil {
				t.Fatalf("ParsePath: %v", err)
			}
			if closed != tt.closed {
				t.Errorf("closed = %v, want %v", closed, tt.closed)
			}
			if len(pts) != len(tt.want) {
				t.Fatalf("points = %v, want %v", pts, tt.want)
			}
			for i := range pts {
				if pts[i] != tt.want[i] {
					t.Errorf("point %d = %v, want %v", i, pts[i], tt.want[i])
				}
			}
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	for _, d := range []string{"", "   ", "M 10", "Z"} {
		if _, _, err := ParsePath(d); !errors.Is(err, errors.CodeValidation) {
			t.Errorf("ParsePath(%q) err = %v, want VALIDATION", d, err)
		}
	}
}

const plan = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 800 600">
  <rect id="Wall_1" x="0" y="0" width="400" height="10" fill="#333333"/>
  <rect id="Door_1" x="100" y="0" width="80" height="10"/>
  <path id="Window_1" d="M 200 0 L 260 0 L 260 10 L 200 10 Z"/>
  <path id="Room_living" d="M 0 10 L 400 10 L 400 300 L 0 300 Z" fill="none" stroke="#999" stroke-width="1.5"/>
  <g id="furniture">
    <circle id="lamp" cx="50" cy="50" r="12"/>
    <text id="label" x="150" y="150">Living room</text>
    <polyline points="10,10 20,20 30,10"/>
    <g>
      <rect id="Balcony" x="0" y="300" width="400" height="60"/>
    </g>
  </g>
  <rect id="zero" x="0" y="0" width="-5" height="5"/>
  <text id="blank">  </text>
</svg>`

func TestParsePlan(t *testing.T) {
	res, err := Parse(strings.NewReader(plan), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	byID := make(map[string]Element)
	for _, el := range res.Elements {
		byID[el.SourceID] = el
	}

	wantKinds := map[string]shapes.Kind{
		"Wall_1":      shapes.KindRectangle,
		"Door_1":      shapes.KindDoor,
		"Window_1":    shapes.KindOpening,
		"Room_living": shapes.KindPolygon,
		"lamp":        shapes.KindCircle,
		"label":       shapes.KindText,
		"":            shapes.KindFreehand,
		"Balcony":     shapes.KindPolygon,
	}
	for id, kind := range wantKinds {
		el, ok := byID[id]
		if !ok {
			t.Errorf("element %q not imported", id)
			continue
		}
		if el.Shape.Kind != kind {
			t.Errorf("%q kind = %s, want %s", id, el.Shape.Kind, kind)
		}
	}

	if got := byID["Window_1"].Shape.Coordinates; got != (geometry.RectCoords{Left: 200, Top: 0, Width: 60, Height: 10}) {
		t.Errorf("window box = %+v", got)
	}
	room := byID["Room_living"].Shape
	if pts := room.Coordinates.(geometry.PathCoords).Points; len(pts) != 4 {
		t.Errorf("room ring should drop the closing vertex: %v", pts)
	}
	if room.Attrs.Color != nil || room.Attrs.StrokeColor == nil || *room.Attrs.StrokeWidth != 1.5 {
		t.Errorf("room paint = %+v", room.Attrs)
	}
	if c := byID["Wall_1"].Shape.Attrs.Color; c == nil || *c != "#333333" {
		t.Errorf("wall fill = %v", c)
	}
	if txt := byID["label"].Shape.Attrs.Text; txt == nil || *txt != "Living room" {
		t.Errorf("text = %v", txt)
	}
	if pts := byID["Balcony"].Shape.Coordinates.(geometry.PathCoords).Points; len(pts) != 4 {
		t.Errorf("balcony rect should become a 4-point polygon: %v", pts)
	}

	if len(res.Skipped) != 2 {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if len(res.Shapes()) != len(res.Elements) {
		t.Fatalf("Shapes() length mismatch")
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse(strings.NewReader("<svg><rect"), WithLogger(logging.Discard()))
	if !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}
