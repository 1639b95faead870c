package geometry

import "math"

// MinDimension is the smallest width, height or radius a resize may produce.
const MinDimension = 5.0

// ============================================================
// Move / resize
// ============================================================

// Translate shifts every positional field of c by (dx, dy).
func Translate(c Coordinates, dx, dy float64) Coordinates {
	switch v := c.(type) {
	case RectCoords:
		v.Left += dx
		v.Top += dy
		return v
	case CircleCoords:
		v.CX += dx
		v.CY += dy
		return v
	case AnchorCoords:
		v.X += dx
		v.Y += dy
		return v
	case PathCoords:
		pts := make([]Point, len(v.Points))
		for i, p := range v.Points {
			pts[i] = p.Add(dx, dy)
		}
		return PathCoords{Points: pts}
	default:
		return c
	}
}

// Resize scales the size of c. Rect widths and heights are multiplied by
// the factors and clamped up to MinDimension; circles scale their radius by
// the mean factor; point lists scale about their bounding-box origin; text
// anchors have no size and come back unchanged.
func Resize(c Coordinates, scaleX, scaleY float64) Coordinates {
	switch v := c.(type) {
	case RectCoords:
		v.Width = clampDimension(v.Width * scaleX)
		v.Height = clampDimension(v.Height * scaleY)
		return v
	case CircleCoords:
		v.Radius = clampDimension(v.Radius * (scaleX + scaleY) / 2)
		return v
	case AnchorCoords:
		return v
	case PathCoords:
		return scalePoints(v, scaleX, scaleY)
	default:
		return c
	}
}

func scalePoints(v PathCoords, scaleX, scaleY float64) PathCoords {
	b := pointsBounds(v.Points)
	fx, fy := 1.0, 1.0
	if b.W > 0 {
		fx = clampDimension(b.W*scaleX) / b.W
	}
	if b.H > 0 {
		fy = clampDimension(b.H*scaleY) / b.H
	}
	pts := make([]Point, len(v.Points))
	for i, p := range v.Points {
		pts[i] = Point{
			X: b.X + (p.X-b.X)*fx,
			Y: b.Y + (p.Y-b.Y)*fy,
		}
	}
	return PathCoords{Points: pts}
}

func clampDimension(v float64) float64 {
	if math.IsNaN(v) || v < MinDimension {
		return MinDimension
	}
	return v
}

// FlattenPoints interleaves points into x0, y0, x1, y1, ... preserving order.
func FlattenPoints(points []Point) []float64 {
	out := make([]float64, 0, len(points)*2)
	for _, p := range points {
		out = append(out, p.X, p.Y)
	}
	return out
}

// ============================================================
// Rotation
// ============================================================

// NormalizeDegrees maps deg into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Rotate adds delta to a rotation in degrees and normalizes the result.
func Rotate(deg, delta float64) float64 {
	return NormalizeDegrees(deg + delta)
}

// RotatePoint rotates p around center by deg degrees (clockwise in screen space).
func RotatePoint(p, center Point, deg float64) Point {
	if deg == 0 {
		return p
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	dx, dy := p.X-center.X, p.Y-center.Y
	return Point{
		X: center.X + dx*cos - dy*sin,
		Y: center.Y + dx*sin + dy*cos,
	}
}

// AngleAround returns the signed angle in degrees swept around center when
// moving from a to b.
func AngleAround(center, a, b Point) float64 {
	from := math.Atan2(a.Y-center.Y, a.X-center.X)
	to := math.Atan2(b.Y-center.Y, b.X-center.X)
	return (to - from) * 180 / math.Pi
}

// ============================================================
// Resize handles
// ============================================================

// Handle identifies a transformer handle grabbed on a selected shape.
type Handle int

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
	HandleRotate
)

func (h Handle) String() string {
	switch h {
	case HandleTopLeft:
		return "top-left"
	case HandleTopRight:
		return "top-right"
	case HandleBottomLeft:
		return "bottom-left"
	case HandleBottomRight:
		return "bottom-right"
	case HandleRotate:
		return "rotate"
	default:
		return "none"
	}
}

// ParseHandle is the inverse of Handle.String.
func ParseHandle(s string) Handle {
	for h := HandleTopLeft; h <= HandleRotate; h++ {
		if h.String() == s {
			return h
		}
	}
	return HandleNone
}

// HandleScale converts a pointer delta on handle h into scale factors for a
// shape whose unrotated bounds are b. Degenerate axes keep scale 1.
func HandleScale(b Rect, h Handle, dx, dy float64) (float64, float64) {
	sx, sy := 1.0, 1.0
	switch h {
	case HandleTopLeft:
		sx, sy = axisScale(b.W, -dx), axisScale(b.H, -dy)
	case HandleTopRight:
		sx, sy = axisScale(b.W, dx), axisScale(b.H, -dy)
	case HandleBottomLeft:
		sx, sy = axisScale(b.W, -dx), axisScale(b.H, dy)
	case HandleBottomRight:
		sx, sy = axisScale(b.W, dx), axisScale(b.H, dy)
	}
	return sx, sy
}

func axisScale(size, delta float64) float64 {
	if size <= 0 {
		return 1
	}
	return (size + delta) / size
}

// AnchorShift returns the translation that keeps the corner opposite to h
// fixed after a shape's bounds changed from before to after.
func AnchorShift(before, after Rect, h Handle) (float64, float64) {
	var dx, dy float64
	switch h {
	case HandleTopLeft:
		dx = before.MaxX() - after.MaxX()
		dy = before.MaxY() - after.MaxY()
	case HandleTopRight:
		dx = before.X - after.X
		dy = before.MaxY() - after.MaxY()
	case HandleBottomLeft:
		dx = before.MaxX() - after.MaxX()
		dy = before.Y - after.Y
	case HandleBottomRight:
		dx = before.X - after.X
		dy = before.Y - after.Y
	}
	return dx, dy
}

// ResizeFromHandle resizes c by (sx, sy) and re-anchors it so the corner
// opposite the grabbed handle stays where it was.
func ResizeFromHandle(c Coordinates, h Handle, sx, sy float64) Coordinates {
	before := Bounds(c)
	resized := Resize(c, sx, sy)
	dx, dy := AnchorShift(before, Bounds(resized), h)
	if dx == 0 && dy == 0 {
		return resized
	}
	return Translate(resized, dx, dy)
}
