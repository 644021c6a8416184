package geometry

import (
	"math"
	"sort"
)

// ConvexHull computes the convex hull of a point set using Andrew's monotone
// chain algorithm. The hull is returned in counter-clockwise order (in image
// coordinates, where Y grows down, this appears clockwise on screen).
//
// Returns the input unchanged when it has fewer than 3 points.
func ConvexHull(pts []Point) []Point {
	if len(pts) < 3 {
		return pts
	}

	sorted := make([]Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	var lower []Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []Point
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	// Last point of each chain duplicates the first of the other.
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// MinAreaRect finds the minimum-area enclosing rectangle of a point set using
// rotating calipers over the convex hull.
//
// The rectangle is returned as 4 unordered corner points; pass them through
// OrderCorners before use. This handles contours whose polygon approximation
// produced more than 4 vertices (rounded or damaged document corners,
// compression artifacts) by fitting the tightest rotated rectangle instead.
func MinAreaRect(pts []Point) [4]Point {
	hull := ConvexHull(pts)
	if len(hull) < 3 {
		// Degenerate input: fall back to the axis-aligned bounding box.
		return boundingBox(pts)
	}

	bestArea := math.Inf(1)
	var best [4]Point

	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]

		// Unit vector along this hull edge and its normal.
		edge := Point{X: b.X - a.X, Y: b.Y - a.Y}
		length := math.Hypot(edge.X, edge.Y)
		if length == 0 {
			continue
		}
		ux, uy := edge.X/length, edge.Y/length
		nx, ny := -uy, ux

		minU, maxU := math.Inf(1), math.Inf(-1)
		minN, maxN := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			du := (p.X-a.X)*ux + (p.Y-a.Y)*uy
			dn := (p.X-a.X)*nx + (p.Y-a.Y)*ny
			minU = math.Min(minU, du)
			maxU = math.Max(maxU, du)
			minN = math.Min(minN, dn)
			maxN = math.Max(maxN, dn)
		}

		area := (maxU - minU) * (maxN - minN)
		if area < bestArea {
			bestArea = area
			best = [4]Point{
				{X: a.X + minU*ux + minN*nx, Y: a.Y + minU*uy + minN*ny},
				{X: a.X + maxU*ux + minN*nx, Y: a.Y + maxU*uy + minN*ny},
				{X: a.X + maxU*ux + maxN*nx, Y: a.Y + maxU*uy + maxN*ny},
				{X: a.X + minU*ux + maxN*nx, Y: a.Y + minU*uy + maxN*ny},
			}
		}
	}

	if math.IsInf(bestArea, 1) {
		return boundingBox(pts)
	}
	return best
}

// ApproxPolygon simplifies a closed curve with the Douglas-Peucker algorithm.
//
// epsilon is the maximum allowed perpendicular deviation of dropped points.
// The curve is split at its two most distant points so the closed shape can
// be simplified as two open chains.
func ApproxPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 3 {
		return pts
	}

	// Split at the two points farthest apart.
	ai, bi := 0, 0
	maxDist := -1.0
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			if d := Distance(pts[i], pts[j]); d > maxDist {
				maxDist = d
				ai, bi = i, j
			}
		}
	}

	first := append([]Point{}, pts[ai:bi+1]...)
	second := append(append([]Point{}, pts[bi:]...), pts[:ai+1]...)

	out := douglasPeucker(first, epsilon)
	tail := douglasPeucker(second, epsilon)
	// Chain endpoints are shared; drop them from the second half.
	if len(tail) > 2 {
		out = append(out, tail[1:len(tail)-1]...)
	}
	return out
}

func douglasPeucker(pts []Point, epsilon float64) []Point {
	if len(pts) < 3 {
		return pts
	}

	maxDist := 0.0
	index := 0
	for i := 1; i < len(pts)-1; i++ {
		if d := perpendicularDistance(pts[i], pts[0], pts[len(pts)-1]); d > maxDist {
			maxDist = d
			index = i
		}
	}

	if maxDist <= epsilon {
		return []Point{pts[0], pts[len(pts)-1]}
	}

	left := douglasPeucker(pts[:index+1], epsilon)
	right := douglasPeucker(pts[index:], epsilon)
	return append(left[:len(left)-1], right...)
}

func perpendicularDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return Distance(p, a)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / length
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func boundingBox(pts []Point) [4]Point {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return [4]Point{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
}
