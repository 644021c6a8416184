package raster

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func solidImage(width, height int, c color.NRGBA) *Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return FromImage(img)
}

func TestFromImage_Copies(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	src.SetNRGBA(5, 5, color.NRGBA{200, 100, 50, 255})

	img := FromImage(src)
	src.SetNRGBA(5, 5, color.NRGBA{0, 0, 0, 255})

	r, g, b, _ := img.At(5, 5)
	if r != 200 || g != 100 || b != 50 {
		t.Errorf("image shares buffer with source: got (%d,%d,%d)", r, g, b)
	}
}

func TestClone_Independent(t *testing.T) {
	img := solidImage(10, 10, color.NRGBA{100, 100, 100, 255})

	clone := img.Clone()
	img.NRGBA().SetNRGBA(3, 3, color.NRGBA{0, 0, 0, 255})

	r, _, _, _ := clone.At(3, 3)
	if r != 100 {
		t.Errorf("clone shares buffer with original: got r=%d, want 100", r)
	}
}

func TestGrayPlane_RoundTrip(t *testing.T) {
	img := solidImage(4, 4, color.NRGBA{128, 128, 128, 255})

	plane := img.GrayPlane()

	if len(plane) != 4 || len(plane[0]) != 4 {
		t.Fatalf("plane dimensions: got %dx%d, want 4x4", len(plane[0]), len(plane))
	}
	want := 128.0 / 255.0
	if diff := plane[2][2] - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("gray value: got %f, want ~%f", plane[2][2], want)
	}

	back := FromGrayPlane(plane)
	r, g, b, _ := back.At(2, 2)
	if r != 128 || g != 128 || b != 128 {
		t.Errorf("round trip: got (%d,%d,%d), want (128,128,128)", r, g, b)
	}
}

func TestEncodeDecode(t *testing.T) {
	img := solidImage(8, 6, color.NRGBA{10, 200, 30, 255})

	data, err := img.EncodePNG()
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Width() != 8 || decoded.Height() != 6 {
		t.Errorf("decoded size: got %dx%d, want 8x6", decoded.Width(), decoded.Height())
	}
}

func TestCrop_OutOfBounds(t *testing.T) {
	img := solidImage(10, 10, color.NRGBA{255, 255, 255, 255})

	if _, err := img.Crop(0, 0, 20, 20); err == nil {
		t.Error("expected error for out-of-bounds crop")
	}
	if _, err := img.Crop(5, 5, 5, 8); err == nil {
		t.Error("expected error for empty crop region")
	}
}

func TestOtsuThreshold_Bimodal(t *testing.T) {
	// Half dark (0.1), half bright (0.9): threshold must fall between.
	plane := make([][]float64, 10)
	for y := range plane {
		plane[y] = make([]float64, 10)
		for x := range plane[y] {
			if x < 5 {
				plane[y][x] = 0.1
			} else {
				plane[y][x] = 0.9
			}
		}
	}

	thr := OtsuThreshold(plane)

	if thr < 20 || thr > 230 {
		t.Errorf("Otsu threshold: got %d, want between dark and bright peaks", thr)
	}
}

func TestAdaptiveThreshold_Inverse(t *testing.T) {
	// Uniform bright field with one dark spot: only the spot is foreground.
	plane := make([][]float64, 20)
	for y := range plane {
		plane[y] = make([]float64, 20)
		for x := range plane[y] {
			plane[y][x] = 0.8
		}
	}
	plane[10][10] = 0.1

	mask := AdaptiveThreshold(plane, 9, 0.05, true)

	if !mask[10][10] {
		t.Error("dark spot should be foreground in inverse mode")
	}
	if mask[2][2] {
		t.Error("uniform background should not be foreground")
	}
}

func TestLoader_Cache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.png")

	img := solidImage(5, 5, color.NRGBA{1, 2, 3, 255})
	data, _ := img.EncodePNG()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader()
	first, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Delete the file; cached load must still succeed.
	os.Remove(path)
	second, err := loader.Load(path)
	if err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
	if first != second {
		t.Error("expected cached image instance")
	}

	loader.Evict(path)
	if _, err := loader.Load(path); err == nil {
		t.Error("expected error after eviction of deleted file")
	}
}
