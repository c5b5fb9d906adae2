package pothole

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()

	th := DefaultSeverityThresholds()
	cases := []struct {
		area float64
		want Severity
	}{
		{0, SeveritySmall},
		{3000, SeveritySmall},
		{4999, SeveritySmall},
		{4999.999, SeveritySmall},
		{5000, SeverityMedium},
		{14999, SeverityMedium},
		{15000, SeverityLarge},
		{1e9, SeverityLarge},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, th.Classify(tc.area), "area=%v", tc.area)
	}
}

func TestClassifyIsTotal(t *testing.T) {
	t.Parallel()

	th := DefaultSeverityThresholds()
	for a := -100.0; a < 40000; a += 137 {
		got := th.Classify(a)
		assert.Contains(t, Severities, got)
	}
}

func TestSeverityThresholdsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultSeverityThresholds().Validate())
	assert.Error(t, SeverityThresholds{MediumArea: 0, LargeArea: 10}.Validate())
	assert.Error(t, SeverityThresholds{MediumArea: 10, LargeArea: 10}.Validate())
}

func TestFrameSamplerStride(t *testing.T) {
	t.Parallel()

	s := NewFrameSampler(10)
	for i := 0; i <= 100; i++ {
		assert.Equal(t, i%10 == 0, s.ShouldSample(i), "frame %d", i)
	}
	for i := 1; i <= 9; i++ {
		assert.False(t, s.ShouldSample(i))
	}
}

func TestFrameSamplerNonPositiveStride(t *testing.T) {
	t.Parallel()

	s := NewFrameSampler(0)
	assert.Equal(t, 1, s.Stride)
	for i := 0; i < 5; i++ {
		assert.True(t, s.ShouldSample(i))
	}
	assert.True(t, FrameSampler{}.ShouldSample(7))
}

func TestDeduplicatorDistanceBoundary(t *testing.T) {
	t.Parallel()

	t.Run("99 px apart is a duplicate", func(t *testing.T) {
		t.Parallel()
		d := NewDeduplicator(100)
		require.True(t, d.Accept(Point{X: 50, Y: 50}))
		assert.True(t, d.IsDuplicate(Point{X: 149, Y: 50}))
		assert.False(t, d.Accept(Point{X: 149, Y: 50}))
		assert.Equal(t, 1, d.Seen())
	})

	t.Run("101 px apart is novel", func(t *testing.T) {
		t.Parallel()
		d := NewDeduplicator(100)
		require.True(t, d.Accept(Point{X: 50, Y: 50}))
		assert.False(t, d.IsDuplicate(Point{X: 151, Y: 50}))
		assert.True(t, d.Accept(Point{X: 151, Y: 50}))
		assert.Equal(t, 2, d.Seen())
	})

	t.Run("exactly the threshold is novel", func(t *testing.T) {
		t.Parallel()
		d := NewDeduplicator(100)
		d.Record(Point{X: 0, Y: 0})
		assert.False(t, d.IsDuplicate(Point{X: 60, Y: 80}))
	})
}

func TestDeduplicatorDiagonalDistance(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(100)
	d.Record(Point{X: 0, Y: 0})
	// (70, 70) is ~98.99 px away.
	assert.True(t, d.IsDuplicate(Point{X: 70, Y: 70}))
	// (71, 71) is ~100.4 px away.
	assert.False(t, d.IsDuplicate(Point{X: 71, Y: 71}))
}

func TestDeduplicatorIsDuplicateHasNoSideEffect(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(100)
	assert.False(t, d.IsDuplicate(Point{X: 1, Y: 1}))
	assert.Equal(t, 0, d.Seen())
}

func TestDeduplicatorDefaultThreshold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultDuplicateDistance, NewDeduplicator(0).Threshold())
	assert.Equal(t, DefaultDuplicateDistance, NewDeduplicator(-5).Threshold())
	assert.Equal(t, 40.0, NewDeduplicator(40).Threshold())
}

type countingIndex struct {
	linearIndex
	queries int
}

func (c *countingIndex) AnyWithin(p Point, radius float64) bool {
	c.queries++
	return c.linearIndex.AnyWithin(p, radius)
}

func TestDeduplicatorCustomIndex(t *testing.T) {
	t.Parallel()

	idx := &countingIndex{}
	d := NewDeduplicatorWithIndex(100, idx)
	d.Accept(Point{X: 0, Y: 0})
	d.Accept(Point{X: 500, Y: 500})
	d.Accept(Point{X: 10, Y: 10})

	assert.Equal(t, 3, idx.queries)
	assert.Equal(t, 2, idx.Len())
}

func TestInventoryAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	inv := NewInventory()
	det := Detection{Box: BoundingBox{X1: 0, Y1: 0, X2: 60, Y2: 50}, Confidence: 0.9}

	first := inv.Add(det, 0, 10, SeveritySmall)
	second := inv.Add(det, 25, 10, SeveritySmall)
	third := inv.Add(det, 33, 30, SeveritySmall)

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, 3, third.ID)
	assert.Equal(t, 2.5, second.Timestamp)
	assert.Equal(t, 1.1, third.Timestamp)
	assert.Equal(t, 3000.0, first.Area)
	assert.Equal(t, Point{X: 30, Y: 25}, first.Center)

	got := inv.Potholes()
	require.Len(t, got, 3)
	got[0].ID = 99
	assert.Equal(t, 1, inv.Potholes()[0].ID, "Potholes must return a copy")
}

func TestInventoryUnknownFPS(t *testing.T) {
	t.Parallel()

	inv := NewInventory()
	p := inv.Add(Detection{Box: BoundingBox{X2: 1, Y2: 1}, Confidence: 1}, 40, 0, SeveritySmall)
	assert.Equal(t, 0.0, p.Timestamp)
}

func TestFromDetectionIsUnnumbered(t *testing.T) {
	t.Parallel()

	det := Detection{Box: BoundingBox{X1: 10, Y1: 10, X2: 30, Y2: 20}, Confidence: 0.7}
	p := FromDetection(det, 15, 10, SeverityMedium)
	assert.Zero(t, p.ID)
	assert.Equal(t, 1.5, p.Timestamp)
	assert.Equal(t, 200.0, p.Area)
}

func TestDetectionValidate(t *testing.T) {
	t.Parallel()

	good := Detection{Box: BoundingBox{X1: 1, Y1: 1, X2: 2, Y2: 2}, Confidence: 0.7}
	assert.NoError(t, good.Validate())

	bad := []Detection{
		{Box: good.Box, Confidence: math.NaN()},
		{Box: good.Box, Confidence: -0.1},
		{Box: good.Box, Confidence: 1.5},
		{Box: BoundingBox{X1: 5, Y1: 1, X2: 2, Y2: 2}, Confidence: 0.7},
		{Box: BoundingBox{X1: math.Inf(1), Y1: 1, X2: 2, Y2: 2}, Confidence: 0.7},
	}
	for _, d := range bad {
		assert.Error(t, d.Validate(), "%+v", d)
	}
}

func TestBoundingBoxIoU(t *testing.T) {
	t.Parallel()

	a := BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
	assert.Equal(t, 0.0, a.IoU(BoundingBox{X1: 20, Y1: 20, X2: 30, Y2: 30}))
	assert.InDelta(t, 25.0/175.0, a.IoU(BoundingBox{X1: 5, Y1: 5, X2: 15, Y2: 15}), 1e-9)
}

func TestRound2(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10.1, Round2(101.0/10.0))
	assert.Equal(t, 3.33, Round2(10.0/3.0))
	assert.Equal(t, 0.0, Round2(0))
}
