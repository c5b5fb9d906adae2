package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pothole.report/internal/pothole"
)

func TestRunBatchIsolatesFailures(t *testing.T) {
	d := &fakeDetector{fn: func(int) ([]pothole.Detection, error) {
		return []pothole.Detection{det(320, 240, 0.9)}, nil
	}}
	results := &memorySink{}
	p := newTestPipeline(t, d,
		WithOpener(func(path string) (FrameSource, error) {
			if path == "missing.mp4" {
				return nil, errors.New("no such file")
			}
			return newFakeSource(20, 10), nil
		}),
		WithResultSinks(results),
	)

	jobs := []Job{
		{Video: "a.mp4", Street: "Jalan Solo"},
		{Video: "missing.mp4", Street: "Jalan Magelang"},
		{Video: "b.mp4", Street: "Jalan Kaliurang", City: "Sleman"},
	}
	out := p.RunBatch(context.Background(), jobs)
	require.Len(t, out, 3)

	assert.NoError(t, out[0].Err)
	assert.ErrorIs(t, out[1].Err, ErrSourceUnavailable)
	assert.Nil(t, out[1].Report)
	require.NoError(t, out[2].Err)
	assert.Equal(t, "Sleman", out[2].Report.City)
	assert.Equal(t, "Yogyakarta", out[0].Report.City)

	assert.Equal(t, 1, Failed(out))
	assert.Len(t, results.saved, 2)
}

func TestRunBatchSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &fakeDetector{}
	p := newTestPipeline(t, d,
		WithOpener(func(path string) (FrameSource, error) {
			src := newFakeSource(5, 10)
			if path == "a.mp4" {
				src.onFrame = func(i int) {
					if i == 4 {
						cancel()
					}
				}
			}
			return src, nil
		}),
	)

	out := p.RunBatch(ctx, []Job{{Video: "a.mp4"}, {Video: "b.mp4"}, {Video: "c.mp4"}})
	require.Len(t, out, 3)
	require.NoError(t, out[0].Err)
	assert.True(t, out[0].Report.Partial)
	for _, res := range out[1:] {
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.Nil(t, res.Report)
	}
	assert.Equal(t, 2, Failed(out))
}

func TestFailedEmpty(t *testing.T) {
	assert.Zero(t, Failed(nil))
}
