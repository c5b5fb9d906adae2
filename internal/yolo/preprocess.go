package yolo

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// padColor is the grey YOLOv8 was trained with for letterbox borders.
var padColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox records how a frame was fitted into the square model input so
// boxes can be mapped back to frame pixels.
type Letterbox struct {
	Size   int
	Scale  float64
	PadX   int
	PadY   int
	Width  int
	Height int
}

// letterbox scales img to fit a size x size square keeping its aspect
// ratio, centres it and pads the rest.
func letterbox(img image.Image, size int) (*image.NRGBA, Letterbox) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	lb := Letterbox{Size: size, Width: w, Height: h, Scale: 1}
	if w == 0 || h == 0 {
		return imaging.New(size, size, padColor), lb
	}

	lb.Scale = float64(size) / float64(max(w, h))
	nw := max(1, int(float64(w)*lb.Scale+0.5))
	nh := max(1, int(float64(h)*lb.Scale+0.5))
	lb.PadX = (size - nw) / 2
	lb.PadY = (size - nh) / 2

	var resized *image.NRGBA
	if nw == w && nh == h {
		resized = imaging.Clone(img)
	} else {
		resized = imaging.Resize(img, nw, nh, imaging.Linear)
	}
	canvas := imaging.New(size, size, padColor)
	return imaging.Paste(canvas, resized, image.Pt(lb.PadX, lb.PadY)), lb
}

// fillTensor writes img into dst as planar RGB scaled to [0, 1].
func fillTensor(img *image.NRGBA, dst []float32) {
	size := img.Bounds().Dx()
	plane := size * size
	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			px := row[x*4:]
			dst[i] = float32(px[0]) / 255
			dst[plane+i] = float32(px[1]) / 255
			dst[2*plane+i] = float32(px[2]) / 255
		}
	}
}

// unmap converts a box from model input pixels back to frame pixels,
// clipped to the frame.
func (lb Letterbox) unmap(x1, y1, x2, y2 float64) (float64, float64, float64, float64) {
	fx := func(v float64) float64 {
		return clamp((v-float64(lb.PadX))/lb.Scale, 0, float64(lb.Width))
	}
	fy := func(v float64) float64 {
		return clamp((v-float64(lb.PadY))/lb.Scale, 0, float64(lb.Height))
	}
	return fx(x1), fy(y1), fx(x2), fy(y2)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
