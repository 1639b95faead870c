package geometry

import "math"

// anchorHitSize approximates the clickable box of a text anchor.
const anchorHitSize = 16.0

// Contains reports whether p hits the shape described by c. rotation is
// applied around the node origin the way the renderer rotates rects and
// text; tol widens thin geometry (open paths) to a usable hit stroke.
func Contains(c Coordinates, rotation float64, p Point, tol float64) bool {
	switch v := c.(type) {
	case RectCoords:
		local := RotatePoint(p, Origin(v), -rotation)
		return Bounds(v).Contains(local)
	case CircleCoords:
		return p.Dist(Point{X: v.CX, Y: v.CY}) <= v.Radius+tol
	case AnchorCoords:
		local := RotatePoint(p, Origin(v), -rotation)
		box := Rect{X: v.X - tol, Y: v.Y - tol, W: anchorHitSize + 2*tol, H: anchorHitSize + 2*tol}
		return box.Contains(local)
	case PathCoords:
		return nearPolyline(v.Points, p, tol)
	default:
		return false
	}
}

// ContainsPolygon reports whether p lies inside the closed polygon pts
// (even-odd rule) or within tol of its outline.
func ContainsPolygon(pts []Point, p Point, tol float64) bool {
	if len(pts) < 3 {
		return nearPolyline(pts, p, tol)
	}
	inside := false
	j := len(pts) - 1
	for i := range pts {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	if inside {
		return true
	}
	closed := append(append([]Point{}, pts...), pts[0])
	return nearPolyline(closed, p, tol)
}

func nearPolyline(pts []Point, p Point, tol float64) bool {
	switch len(pts) {
	case 0:
		return false
	case 1:
		return p.Dist(pts[0]) <= tol
	}
	for i := 1; i < len(pts); i++ {
		if segmentDistance(p, pts[i-1], pts[i]) <= tol {
			return true
		}
	}
	return false
}

func segmentDistance(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.Dist(a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	proj := Point{X: a.X + t*dx, Y: a.Y + t*dy}
	return p.Dist(proj)
}
