package pothole

import (
	"fmt"
	"math"
)

// Point is a pixel coordinate in frame space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// BoundingBox is an axis-aligned rectangle (X1,Y1)-(X2,Y2) in pixels.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Width returns X2-X1.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns Y2-Y1.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area in px².
func (b BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Valid reports whether all corners are finite and the box is not inverted.
func (b BoundingBox) Valid() bool {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X2 >= b.X1 && b.Y2 >= b.Y1
}

// IoU returns the intersection-over-union of two boxes.
func (b BoundingBox) IoU(o BoundingBox) float64 {
	x1 := math.Max(b.X1, o.X1)
	y1 := math.Max(b.Y1, o.Y1)
	x2 := math.Min(b.X2, o.X2)
	y2 := math.Min(b.Y2, o.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := b.Area() + o.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// Detection is one box reported by the detector for a single frame. It is
// only held for the duration of that frame's processing.
type Detection struct {
	Box        BoundingBox
	Confidence float64
	Class      string
}

// Validate reports why a detection cannot be used, or nil.
func (d Detection) Validate() error {
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", d.Confidence)
	}
	if !d.Box.Valid() {
		return fmt.Errorf("invalid bounding box %+v", d.Box)
	}
	return nil
}

// Pothole is an accepted, unique detection. It is immutable once added to an
// Inventory.
type Pothole struct {
	ID         int         `json:"id"`
	Timestamp  float64     `json:"timestamp"`
	Frame      int         `json:"frame"`
	Confidence float64     `json:"confidence"`
	Area       float64     `json:"area"`
	Severity   Severity    `json:"severity"`
	Center     Point       `json:"center"`
	Box        BoundingBox `json:"box"`
}
