package importer

import (
	"regexp"
	"strconv"
	"strings"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
)

// ============================================================
// Path Parser
// ============================================================

var (
	pathCommandRe = regexp.MustCompile(`([MmLlHhVvCcSsQqTtAaZz])([^MmLlHhVvCcSsQqTtAaZz]*)`)
	numberRe      = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)
)

// pathArity is the number of arguments one segment of each command takes.
var pathArity = map[byte]int{
	'M': 2, 'L': 2, 'H': 1, 'V': 1, 'C': 6, 'S': 4, 'Q': 4, 'T': 2, 'A': 7,
}

// ParsePath разбирает атрибут d в список вершин. Кривые сводятся к своим
// конечным точкам; Z помечает контур как замкнутый.
func ParsePath(d string) ([]geometry.Point, bool, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, false, errors.Validation("empty path")
	}

	var (
		points   []geometry.Point
		cur      geometry.Point
		subStart geometry.Point
		closed   bool
	)

	for _, match := range pathCommandRe.FindAllStringSubmatch(d, -1) {
		cmd := match[1][0]
		args := parseNumbers(match[2])
		rel := cmd >= 'a' && cmd <= 'z'
		upper := cmd &^ 0x20

		if upper == 'Z' {
			closed = true
			cur = subStart
			continue
		}

		n := pathArity[upper]
		if len(args) < n {
			return nil, false, errors.Validation("path command %c needs %d numbers, got %d", cmd, n, len(args))
		}

		for i := 0; i+n <= len(args); i += n {
			seg := args[i : i+n]
			var next geometry.Point
			switch upper {
			case 'H':
				next = geometry.Point{X: seg[0], Y: cur.Y}
				if rel {
					next.X += cur.X
				}
			case 'V':
				next = geometry.Point{X: cur.X, Y: seg[0]}
				if rel {
					next.Y += cur.Y
				}
			default:
				// The end point is always the last pair of the segment.
				next = geometry.Point{X: seg[n-2], Y: seg[n-1]}
				if rel {
					next = next.Add(cur.X, cur.Y)
				}
			}

			// Extra pairs after M are implicit line-tos.
			if upper == 'M' && i == 0 {
				subStart = next
			}
			cur = next
			points = append(points, cur)
		}
	}

	if len(points) == 0 {
		return nil, false, errors.Validation("path %q has no vertices", d)
	}
	return points, closed, nil
}

func parseNumbers(s string) []float64 {
	var out []float64
	for _, tok := range numberRe.FindAllString(s, -1) {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// parsePoints reads the points attribute of polyline and polygon elements.
func parsePoints(s string) ([]geometry.Point, error) {
	nums := parseNumbers(s)
	if len(nums)%2 != 0 {
		return nil, errors.Validation("odd number of coordinates in points %q", s)
	}
	pts := make([]geometry.Point, 0, len(nums)/2)
	for i := 0; i < len(nums); i += 2 {
		pts = append(pts, geometry.Point{X: nums[i], Y: nums[i+1]})
	}
	return pts, nil
}
