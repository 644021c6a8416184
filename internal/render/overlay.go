// Package render draws diagnostic overlays on scan images.
package render

import (
	"fmt"

	"github.com/fogleman/gg"

	"github.com/docuflat/docuflat/internal/geometry"
	"github.com/docuflat/docuflat/internal/raster"
)

var cornerLabels = [4]string{"TL", "TR", "BR", "BL"}

// Overlay returns a copy of the image with the detected quadrilateral
// drawn on top: edges, labeled corner markers and the detection confidence.
// The input image is not modified.
func Overlay(img *raster.Image, corners geometry.Quad, confidence float64) *raster.Image {
	dc := gg.NewContextForImage(img.ToImage())

	dc.SetRGBA(0.1, 0.8, 0.2, 0.9)
	dc.SetLineWidth(3)
	for i := 0; i < 4; i++ {
		p, q := corners[i], corners[(i+1)%4]
		dc.DrawLine(p.X, p.Y, q.X, q.Y)
	}
	dc.Stroke()

	for i, p := range corners {
		dc.SetRGBA(0.9, 0.2, 0.1, 1)
		dc.DrawCircle(p.X, p.Y, 6)
		dc.Fill()

		dc.SetRGBA(1, 1, 1, 1)
		dc.DrawString(cornerLabels[i], p.X+9, p.Y-9)
	}

	dc.SetRGBA(1, 1, 1, 1)
	dc.DrawString(fmt.Sprintf("confidence %.2f", confidence), 8, 16)

	return raster.FromImage(dc.Image())
}
