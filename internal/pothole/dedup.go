package pothole

// DefaultDuplicateDistance is the pixel radius within which a new detection
// is considered a repeat sighting of an already counted pothole.
const DefaultDuplicateDistance = 100.0

// LocationIndex stores the centers of accepted potholes and answers
// proximity queries. A grid or quadtree can replace the linear list when the
// number of potholes per run grows large.
type LocationIndex interface {
	// Insert records a new seen location.
	Insert(p Point)
	// AnyWithin reports whether any stored location is closer than radius to p.
	AnyWithin(p Point, radius float64) bool
	// Len returns the number of stored locations.
	Len() int
}

// linearIndex scans every stored location in insertion order.
type linearIndex struct {
	points []Point
}

func (l *linearIndex) Insert(p Point) {
	l.points = append(l.points, p)
}

func (l *linearIndex) AnyWithin(p Point, radius float64) bool {
	for _, seen := range l.points {
		if seen.DistanceTo(p) < radius {
			return true
		}
	}
	return false
}

func (l *linearIndex) Len() int { return len(l.points) }

// Deduplicator decides whether a detection center repeats one already in the
// inventory. A Deduplicator belongs to exactly one video run; construct a new
// one for every video. Locations are never removed or merged.
type Deduplicator struct {
	threshold float64
	index     LocationIndex
}

// NewDeduplicator returns a Deduplicator backed by a linear scan. A
// non-positive threshold falls back to DefaultDuplicateDistance.
func NewDeduplicator(threshold float64) *Deduplicator {
	return NewDeduplicatorWithIndex(threshold, &linearIndex{})
}

// NewDeduplicatorWithIndex returns a Deduplicator using the supplied index.
func NewDeduplicatorWithIndex(threshold float64, index LocationIndex) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultDuplicateDistance
	}
	return &Deduplicator{threshold: threshold, index: index}
}

// Threshold returns the duplicate radius in pixels.
func (d *Deduplicator) Threshold() float64 { return d.threshold }

// IsDuplicate reports whether c lies strictly closer than the threshold to
// any recorded location.
func (d *Deduplicator) IsDuplicate(c Point) bool {
	return d.index.AnyWithin(c, d.threshold)
}

// Record stores c as a seen location. Callers invoke it only for centers
// IsDuplicate reported as novel.
func (d *Deduplicator) Record(c Point) {
	d.index.Insert(c)
}

// Accept records c and returns true if it is novel, or returns false and
// leaves state untouched if it is a duplicate.
func (d *Deduplicator) Accept(c Point) bool {
	if d.IsDuplicate(c) {
		return false
	}
	d.Record(c)
	return true
}

// Seen returns the number of recorded locations.
func (d *Deduplicator) Seen() int { return d.index.Len() }
