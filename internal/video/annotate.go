package video

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/banshee-data/pothole.report/internal/pothole"
)

var severityColors = map[pothole.Severity]color.Color{
	pothole.SeveritySmall:  color.RGBA{R: 0x2e, G: 0xcc, B: 0x40, A: 0xff},
	pothole.SeverityMedium: color.RGBA{R: 0xff, G: 0xaa, B: 0x00, A: 0xff},
	pothole.SeverityLarge:  color.RGBA{R: 0xff, G: 0x20, B: 0x20, A: 0xff},
}

const boxLineWidth = 3

// Annotate returns a copy of img with a box and label drawn for each pothole.
func Annotate(img image.Image, potholes []pothole.Pothole) *image.RGBA {
	dc := gg.NewContextForImage(img)
	off := img.Bounds().Min
	for _, p := range potholes {
		c, ok := severityColors[p.Severity]
		if !ok {
			c = color.White
		}
		x, y := p.Box.X1-float64(off.X), p.Box.Y1-float64(off.Y)
		w, h := p.Box.X2-p.Box.X1, p.Box.Y2-p.Box.Y1

		dc.SetColor(c)
		dc.SetLineWidth(boxLineWidth)
		dc.DrawRectangle(x, y, w, h)
		dc.Stroke()

		label := label(p)
		tw, th := dc.MeasureString(label)
		ly := y - th - 4
		if ly < 0 {
			ly = y
		}
		dc.DrawRectangle(x, ly, tw+6, th+4)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(label, x+3, ly+2, 0, 1)
	}
	return dc.Image().(*image.RGBA)
}

// label omits the id for repeat sightings, which have none.
func label(p pothole.Pothole) string {
	if p.ID == 0 {
		return fmt.Sprintf("%s %.2f", p.Severity, p.Confidence)
	}
	return fmt.Sprintf("#%d %s %.2f", p.ID, p.Severity, p.Confidence)
}
