package pipeline

import (
	"context"
	"image"

	"github.com/banshee-data/pothole.report/internal/pothole"
	"github.com/banshee-data/pothole.report/internal/report"
)

// Frame is one decoded video frame. Index is zero-based in decode order.
type Frame struct {
	Index int
	Image image.Image
}

// Detector runs the object-detection model on a single frame.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]pothole.Detection, error)
}

// FrameSource yields frames in increasing index order. Next returns io.EOF
// once the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	// FPS returns the nominal frame rate, or 0 when unknown.
	FPS() float64
	// TotalFrames returns the container's frame count, or 0 when unknown.
	TotalFrames() int
	Close() error
}

// Opener opens the video at path.
type Opener func(path string) (FrameSource, error)

// FrameSink receives every frame together with the potholes to draw on it,
// typically to encode an annotated output video. The overlay holds every
// confident detection of the most recent sampled frame; repeat sightings
// of an already counted pothole carry ID 0.
type FrameSink interface {
	WriteFrame(frame Frame, overlay []pothole.Pothole) error
	Close() error
}

// FrameSinkFactory creates the optional output sink for a run. It is called
// once the source is open so the sink can match its frame rate.
type FrameSinkFactory func(meta RunMetadata, src FrameSource) (FrameSink, error)

// ResultSink persists a finished report.
type ResultSink interface {
	Save(ctx context.Context, r *report.Report) error
}
