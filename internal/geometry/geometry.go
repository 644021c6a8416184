// Package geometry provides the point and quadrilateral math underpinning
// document boundary detection and perspective correction.
//
// All coordinates are floating-point pixel positions with the origin at the
// top-left of the image, X growing right and Y growing down.
package geometry

import (
	"math"
	"sort"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X float64 `json:"x"` // Horizontal position (0 = leftmost)
	Y float64 `json:"y"` // Vertical position (0 = topmost)
}

// Quad is a quadrilateral in canonical corner order:
// [top-left, top-right, bottom-right, bottom-left].
//
// A Quad must only be constructed through OrderCorners (or from already
// axis-aligned rectangles) so the canonical order invariant holds. Contour
// extraction yields corners in arbitrary order; never assume input order.
type Quad [4]Point

// Named corner accessors in canonical order.
func (q Quad) TL() Point { return q[0] }
func (q Quad) TR() Point { return q[1] }
func (q Quad) BR() Point { return q[2] }
func (q Quad) BL() Point { return q[3] }

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Centroid returns the arithmetic mean of a set of points.
func Centroid(pts []Point) Point {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	return Point{X: cx / n, Y: cy / n}
}

// OrderCorners arranges 4 unordered points into canonical
// [top-left, top-right, bottom-right, bottom-left] order.
//
// The points are sorted by polar angle around their centroid, which yields a
// consistent winding for any convex quadrilateral, then the sequence is
// rotated so the point with the minimum (x+y) sum comes first. The minimum
// coordinate sum identifies the top-left corner robustly even when the
// document is rotated or skewed; a naive "sort by y, then by x" breaks on
// rotated quadrilaterals because two corners can share nearly the same y.
//
// Ordering an already-canonical quadrilateral returns it unchanged.
func OrderCorners(pts [4]Point) Quad {
	c := Centroid(pts[:])

	sorted := pts
	sort.Slice(sorted[:], func(i, j int) bool {
		ai := math.Atan2(sorted[i].Y-c.Y, sorted[i].X-c.X)
		aj := math.Atan2(sorted[j].Y-c.Y, sorted[j].X-c.X)
		return ai < aj
	})

	// Rotate so the corner with the smallest x+y leads.
	start := 0
	minSum := sorted[0].X + sorted[0].Y
	for i := 1; i < 4; i++ {
		if s := sorted[i].X + sorted[i].Y; s < minSum {
			minSum = s
			start = i
		}
	}

	var q Quad
	for i := 0; i < 4; i++ {
		q[i] = sorted[(start+i)%4]
	}
	return q
}

// AspectRatio returns the longer-side / shorter-side ratio of a quadrilateral,
// measured between midpoints of opposite edges.
//
// Midpoint distances are more stable than single edge lengths for skewed
// quadrilaterals. Returns +Inf for degenerate (zero extent) input so that
// range filters reject it naturally.
func AspectRatio(q Quad) float64 {
	top := midpoint(q.TL(), q.TR())
	bottom := midpoint(q.BL(), q.BR())
	left := midpoint(q.TL(), q.BL())
	right := midpoint(q.TR(), q.BR())

	h := Distance(top, bottom)
	w := Distance(left, right)

	shorter := math.Min(w, h)
	longer := math.Max(w, h)
	if shorter == 0 {
		return math.Inf(1)
	}
	return longer / shorter
}

// Area returns the absolute polygon area of an ordered point sequence using
// the shoelace formula.
func Area(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// Perimeter returns the closed-curve length of an ordered point sequence.
func Perimeter(pts []Point) float64 {
	var sum float64
	for i := range pts {
		sum += Distance(pts[i], pts[(i+1)%len(pts)])
	}
	return sum
}

func midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
