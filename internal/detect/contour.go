package detect

import (
	"github.com/anthonynsimon/bild/effect"

	"github.com/docuflat/docuflat/internal/geometry"
	"github.com/docuflat/docuflat/internal/raster"
)

// minContourSize discards flood-filled components below this pixel count
// before quadrilateral evaluation; anything smaller is sensor noise.
const minContourSize = 30

type pixel struct{ x, y int }

// findContours finds connected components (contours) in a binary mask.
//
// Uses iterative flood-fill with 8-connectivity (includes diagonals) so
// diagonal document edges thinned by non-maximum suppression stay connected.
func findContours(mask [][]bool) [][]geometry.Point {
	height := len(mask)
	if height == 0 {
		return nil
	}
	width := len(mask[0])

	visited := make([][]bool, height)
	for y := range visited {
		visited[y] = make([]bool, width)
	}

	var contours [][]geometry.Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !mask[y][x] || visited[y][x] {
				continue
			}
			component := floodFill(mask, visited, x, y, width, height)
			if len(component) >= minContourSize {
				contours = append(contours, component)
			}
		}
	}
	return contours
}

// floodFill collects one connected component starting at (startX, startY).
//
// Stack-based rather than recursive to avoid stack overflow on components
// spanning most of the frame.
func floodFill(mask, visited [][]bool, startX, startY, width, height int) []geometry.Point {
	var component []geometry.Point
	stack := []pixel{{startX, startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.x < 0 || p.x >= width || p.y < 0 || p.y >= height {
			continue
		}
		if visited[p.y][p.x] || !mask[p.y][p.x] {
			continue
		}

		visited[p.y][p.x] = true
		component = append(component, geometry.Point{X: float64(p.x), Y: float64(p.y)})

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, pixel{p.x + dx, p.y + dy})
			}
		}
	}
	return component
}

// dilateMask grows mask regions by the given radius. Closes small gaps in
// broken edge chains so contour extraction sees one connected outline.
func dilateMask(mask [][]bool, radius float64) [][]bool {
	img := raster.FromGrayPlane(raster.MaskToPlane(mask))
	grown := effect.Dilate(img.ToImage(), radius)
	return planeToMask(raster.FromImage(grown).GrayPlane())
}

// erodeMask shrinks mask regions by the given radius.
func erodeMask(mask [][]bool, radius float64) [][]bool {
	img := raster.FromGrayPlane(raster.MaskToPlane(mask))
	shrunk := effect.Erode(img.ToImage(), radius)
	return planeToMask(raster.FromImage(shrunk).GrayPlane())
}

// closeMask is dilation followed by erosion: fills small holes and gaps.
func closeMask(mask [][]bool, radius float64) [][]bool {
	return erodeMask(dilateMask(mask, radius), radius)
}

// openMask is erosion followed by dilation: removes small noise specks.
func openMask(mask [][]bool, radius float64) [][]bool {
	return dilateMask(erodeMask(mask, radius), radius)
}

func planeToMask(plane [][]float64) [][]bool {
	mask := make([][]bool, len(plane))
	for y, row := range plane {
		mask[y] = make([]bool, len(row))
		for x, v := range row {
			mask[y][x] = v > 0.5
		}
	}
	return mask
}
