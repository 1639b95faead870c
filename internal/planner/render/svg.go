package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"

	"space-planner/internal/planner/geometry"
)

// ============================================================
// SVG export
// ============================================================

const (
	exportPadding  = 20.0
	exportFallback = 1000
)

// ExportSVG writes prims as a standalone SVG document. The view box covers
// bounds plus a margin; an empty scene gets a 1000x1000 page.
func ExportSVG(w io.Writer, prims []Primitive, bounds geometry.Rect) error {
	minX, minY, width, height := viewBox(bounds, len(prims) > 0)

	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Startview(width, height, minX, minY, width, height)

	for _, p := range prims {
		canvas.Gid(p.ShapeID)
		t := transform(p)
		if t != "" {
			canvas.Gtransform(t)
		}
		drawPrimitive(canvas, p)
		if t != "" {
			canvas.Gend()
		}
		canvas.Gend()
	}

	canvas.End()
	return ew.err
}

func viewBox(b geometry.Rect, hasContent bool) (int, int, int, int) {
	if !hasContent || (b.W <= 0 && b.H <= 0) {
		return 0, 0, exportFallback, exportFallback
	}
	minX := int(math.Floor(b.X - exportPadding))
	minY := int(math.Floor(b.Y - exportPadding))
	width := int(math.Ceil(b.W + 2*exportPadding))
	height := int(math.Ceil(b.H + 2*exportPadding))
	return minX, minY, width, height
}

// transform rotates and scales about the node position the way the editor
// surface does.
func transform(p Primitive) string {
	var parts []string
	if p.Rotation != 0 {
		parts = append(parts, fmt.Sprintf("rotate(%s %s %s)", formatFloat(p.Rotation), formatFloat(p.X), formatFloat(p.Y)))
	}
	if (p.ScaleX != 0 && p.ScaleX != 1) || (p.ScaleY != 0 && p.ScaleY != 1) {
		parts = append(parts,
			fmt.Sprintf("translate(%s %s)", formatFloat(p.X), formatFloat(p.Y)),
			fmt.Sprintf("scale(%s %s)", formatFloat(p.ScaleX), formatFloat(p.ScaleY)),
			fmt.Sprintf("translate(%s %s)", formatFloat(-p.X), formatFloat(-p.Y)),
		)
	}
	return strings.Join(parts, " ")
}

func drawPrimitive(canvas *svg.SVG, p Primitive) {
	x, y := round(p.X), round(p.Y)

	switch p.Kind {
	case PrimRect:
		canvas.Rect(x, y, round(p.Width), round(p.Height), style(p))
	case PrimSymbol:
		canvas.Rect(x, y, round(p.Width), round(p.Height), style(p)+";stroke-dasharray:4,2")
		label := p.Label
		if label == "" {
			label = p.SymbolID
		}
		if label != "" {
			canvas.Text(round(p.X+p.Width/2), round(p.Y+p.Height/2), label,
				"text-anchor:middle;dominant-baseline:middle;font-size:10px;fill:#666")
		}
	case PrimCircle:
		canvas.Circle(x, y, round(p.Radius), style(p))
	case PrimText:
		canvas.Text(x, y, p.Text, fmt.Sprintf("dominant-baseline:hanging;font-size:%spx;%s",
			formatFloat(p.FontSize), style(p)))
	case PrimLine:
		xs, ys := splitPoints(p)
		if p.Closed {
			canvas.Polygon(xs, ys, style(p))
		} else {
			canvas.Polyline(xs, ys, style(p)+";stroke-linecap:round;stroke-linejoin:round")
		}
	}
}

// splitPoints de-interleaves flattened points, applying the node offset.
func splitPoints(p Primitive) ([]int, []int) {
	n := len(p.Points) / 2
	xs := make([]int, n)
	ys := make([]int, n)
	for i := 0; i < n; i++ {
		xs[i] = round(p.Points[2*i] + p.X)
		ys[i] = round(p.Points[2*i+1] + p.Y)
	}
	return xs, ys
}

func style(p Primitive) string {
	fill := safeColor(p.Fill)
	if fill == "" || fill == "transparent" {
		fill = "none"
	}
	if p.Kind == PrimLine && !p.Closed {
		fill = "none"
	}
	stroke := safeColor(p.Stroke)
	if stroke == "" {
		return "fill:" + fill + ";stroke:none"
	}
	return fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%s", fill, stroke, formatFloat(p.StrokeWidth))
}

// safeColor drops anything that is not plausibly a CSS color, since style
// values are written into attributes unescaped.
func safeColor(c string) string {
	for _, r := range c {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("#(),.% ", r):
		default:
			return ""
		}
	}
	return c
}

func round(v float64) int {
	return int(math.Round(v))
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

// errWriter keeps the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
