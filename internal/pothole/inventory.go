package pothole

import "math"

// Inventory is the ordered, append-only list of potholes accepted during one
// run. Ids are assigned 1..N in insertion order.
type Inventory struct {
	items []Pothole
}

// NewInventory returns an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{}
}

// Add appends a pothole built from an accepted detection and returns it.
func (inv *Inventory) Add(det Detection, frame int, fps float64, severity Severity) Pothole {
	p := FromDetection(det, frame, fps, severity)
	p.ID = len(inv.items) + 1
	inv.items = append(inv.items, p)
	return p
}

// FromDetection builds an unnumbered pothole (ID 0) from det. The timestamp
// is frame/fps in seconds, or 0 when fps is unknown.
func FromDetection(det Detection, frame int, fps float64, severity Severity) Pothole {
	var ts float64
	if fps > 0 {
		ts = Round2(float64(frame) / fps)
	}
	return Pothole{
		Timestamp:  ts,
		Frame:      frame,
		Confidence: det.Confidence,
		Area:       det.Box.Area(),
		Severity:   severity,
		Center:     det.Box.Center(),
		Box:        det.Box,
	}
}

// Len returns the number of potholes.
func (inv *Inventory) Len() int { return len(inv.items) }

// Potholes returns a copy of the inventory in detection order.
func (inv *Inventory) Potholes() []Pothole {
	out := make([]Pothole, len(inv.items))
	copy(out, inv.items)
	return out
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
