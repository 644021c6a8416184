package raster

// Binarization helpers shared by the boundary detector and the enhancer's
// black/white document mode.

// OtsuThreshold computes the binarization threshold (0-255) that maximizes
// between-class variance of the luminance histogram.
//
// Otsu's method needs no tuning: it splits the histogram into foreground and
// background classes and picks the split with the largest separation. The
// boundary detector uses the result to auto-derive Canny hysteresis
// thresholds instead of hardcoding them per lighting condition.
func OtsuThreshold(plane [][]float64) int {
	var hist [256]int
	total := 0
	for _, row := range plane {
		for _, v := range row {
			idx := int(v * 255)
			if idx < 0 {
				idx = 0
			} else if idx > 255 {
				idx = 255
			}
			hist[idx]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	bestVar := -1.0
	best := 0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])

		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return best
}

// AdaptiveThreshold binarizes a luminance plane against a locally varying
// threshold, robust to uneven lighting where a single global threshold fails.
//
// For each pixel the threshold is the Gaussian-weighted-ish local mean over a
// window of the given size (odd, e.g. 25) minus the constant c (normalized
// 0-1 scale, e.g. 0.04). When inverse is true, pixels darker than the local
// threshold become foreground (true) - the convention used for detecting
// dark document edges on binarized scans.
//
// The local mean is computed with a summed-area table, so the window size
// does not affect running time.
func AdaptiveThreshold(plane [][]float64, window int, c float64, inverse bool) [][]bool {
	height := len(plane)
	if height == 0 {
		return nil
	}
	width := len(plane[0])
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	half := window / 2

	// Summed-area table with one row/column of zero padding.
	integral := make([][]float64, height+1)
	integral[0] = make([]float64, width+1)
	for y := 0; y < height; y++ {
		integral[y+1] = make([]float64, width+1)
		rowSum := 0.0
		for x := 0; x < width; x++ {
			rowSum += plane[y][x]
			integral[y+1][x+1] = integral[y][x+1] + rowSum
		}
	}

	out := make([][]bool, height)
	for y := 0; y < height; y++ {
		out[y] = make([]bool, width)
		y1 := maxInt(0, y-half)
		y2 := minInt(height-1, y+half)
		for x := 0; x < width; x++ {
			x1 := maxInt(0, x-half)
			x2 := minInt(width-1, x+half)

			area := float64((y2 - y1 + 1) * (x2 - x1 + 1))
			sum := integral[y2+1][x2+1] - integral[y1][x2+1] - integral[y2+1][x1] + integral[y1][x1]
			mean := sum / area

			above := plane[y][x] > mean-c
			if inverse {
				out[y][x] = !above
			} else {
				out[y][x] = above
			}
		}
	}
	return out
}

// MaskToPlane converts a boolean mask to a luminance plane (true = 1.0).
func MaskToPlane(mask [][]bool) [][]float64 {
	plane := make([][]float64, len(mask))
	for y, row := range mask {
		plane[y] = make([]float64, len(row))
		for x, v := range row {
			if v {
				plane[y][x] = 1
			}
		}
	}
	return plane
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
