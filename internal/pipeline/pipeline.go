package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/pothole.report/internal/config"
	"github.com/banshee-data/pothole.report/internal/pothole"
	"github.com/banshee-data/pothole.report/internal/report"
	"github.com/banshee-data/pothole.report/internal/timeutil"
)

// defaultProgressEvery is how many frames pass between progress logs.
const defaultProgressEvery = 100

// Config holds the per-run detection parameters.
type Config struct {
	// ConfidenceThreshold is exclusive: detections must score strictly above it.
	ConfidenceThreshold float64
	// Stride samples every Stride-th frame. Values < 1 sample every frame.
	Stride int
	// DuplicateDistance is the dedup radius in pixels.
	DuplicateDistance float64
	Severity          pothole.SeverityThresholds
	// DefaultCity is used when RunMetadata.City is empty.
	DefaultCity string
	// Location stamps Report.ProcessedAt. Nil means time.Local.
	Location *time.Location
	// ProgressEvery is the frame interval between progress logs.
	ProgressEvery int
}

// DefaultConfig returns the built-in run parameters.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning maps a tuning file onto run parameters.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		ConfidenceThreshold: t.GetConfidenceThreshold(),
		Stride:              t.GetFrameStride(),
		DuplicateDistance:   t.GetDuplicateDistancePx(),
		Severity: pothole.SeverityThresholds{
			MediumArea: t.GetSeverityMediumArea(),
			LargeArea:  t.GetSeverityLargeArea(),
		},
		DefaultCity:   t.GetDefaultCity(),
		Location:      t.GetLocation(),
		ProgressEvery: defaultProgressEvery,
	}
}

// RunMetadata identifies the street segment a video covers.
type RunMetadata struct {
	Street    string
	Direction string
	City      string
	Source    string
}

// Job is one video to process.
type Job struct {
	Video     string
	Street    string
	Direction string
	City      string
}

func (j Job) metadata() RunMetadata {
	return RunMetadata{Street: j.Street, Direction: j.Direction, City: j.City, Source: j.Video}
}

// Stats counts what happened to frames and detections during a run.
type Stats struct {
	FramesRead         int
	FramesSampled      int
	DetectionsSeen     int
	RejectedConfidence int
	Malformed          int
	Duplicates         int
	Accepted           int
}

// Pipeline processes videos into reports. A Pipeline may be reused across
// runs; per-run state is created inside ProcessVideo.
type Pipeline struct {
	cfg        Config
	detector   Detector
	opener     Opener
	frameSinks FrameSinkFactory
	results    []ResultSink
	clock      timeutil.Clock

	lastStats Stats
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOpener sets how Run opens video paths.
func WithOpener(o Opener) Option {
	return func(p *Pipeline) { p.opener = o }
}

// WithFrameSinks sets the factory for the optional output video sink.
func WithFrameSinks(f FrameSinkFactory) Option {
	return func(p *Pipeline) { p.frameSinks = f }
}

// WithResultSinks appends sinks that receive every report produced by Run.
func WithResultSinks(sinks ...ResultSink) Option {
	return func(p *Pipeline) { p.results = append(p.results, sinks...) }
}

// WithClock overrides the clock used to stamp processed_at.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New returns a pipeline using detector for inference.
func New(cfg Config, detector Detector, opts ...Option) (*Pipeline, error) {
	if detector == nil {
		return nil, errors.New("pipeline: detector is required")
	}
	if err := cfg.Severity.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	p := &Pipeline{cfg: cfg, detector: detector, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// LastStats returns the counters of the most recent ProcessVideo call.
func (p *Pipeline) LastStats() Stats { return p.lastStats }

// Run opens job.Video, processes it and saves the report to every result
// sink. A source that cannot be opened yields ErrSourceUnavailable before
// any processing. Sink failures are joined into the returned error but the
// report is still returned.
func (p *Pipeline) Run(ctx context.Context, job Job) (*report.Report, error) {
	if p.opener == nil {
		return nil, fmt.Errorf("%w: no opener configured", ErrSourceUnavailable)
	}
	src, err := p.opener(job.Video)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, job.Video, err)
	}

	r, err := p.ProcessVideo(ctx, src, job.metadata())
	if err != nil {
		return nil, err
	}

	// A stop signal still persists the partial report.
	saveCtx := context.WithoutCancel(ctx)
	var errs []error
	for _, sink := range p.results {
		if err := sink.Save(saveCtx, r); err != nil {
			opsf("failed to save report %s: %v", r.RunID, err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return r, fmt.Errorf("failed to save report: %w", errors.Join(errs...))
	}
	return r, nil
}

// ProcessVideo runs the detection loop over src until end of stream, a read
// failure or cancellation of ctx. Cancellation produces a report with
// Partial set. A detector error aborts the run with a *DetectorError. src
// is closed before returning.
func (p *Pipeline) ProcessVideo(ctx context.Context, src FrameSource, meta RunMetadata) (*report.Report, error) {
	defer src.Close()

	started := p.clock.Now()
	if meta.City == "" {
		meta.City = p.cfg.DefaultCity
	}

	sampler := pothole.NewFrameSampler(p.cfg.Stride)
	dedup := pothole.NewDeduplicator(p.cfg.DuplicateDistance)
	inventory := pothole.NewInventory()
	fps := src.FPS()
	total := src.TotalFrames()

	var sink FrameSink
	if p.frameSinks != nil {
		s, err := p.frameSinks(meta, src)
		if err != nil {
			opsf("output video disabled for %s: %v", meta.Source, err)
		} else {
			sink = s
		}
	}
	closeSink := func() {
		if sink == nil {
			return
		}
		if err := sink.Close(); err != nil {
			opsf("failed to close output video for %s: %v", meta.Source, err)
		}
		sink = nil
	}
	defer closeSink()

	diagf("processing %s (street=%q direction=%q fps=%.2f frames=%d stride=%d)",
		meta.Source, meta.Street, meta.Direction, fps, total, sampler.Stride)

	var stats Stats
	// overlay is what the frame sink draws. It is replaced on every sampled
	// frame and held across the unsampled frames in between.
	var overlay []pothole.Pothole
	partial := false
	for {
		if ctx.Err() != nil {
			partial = true
			break
		}

		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				partial = true
			} else if !errors.Is(err, io.EOF) {
				diagf("read failure after %d frames of %s, finishing: %v", stats.FramesRead, meta.Source, err)
			}
			break
		}
		stats.FramesRead++

		if sampler.ShouldSample(frame.Index) {
			stats.FramesSampled++
			detections, err := p.detector.Detect(ctx, frame)
			if err != nil {
				if ctx.Err() != nil {
					partial = true
					break
				}
				opsf("detector failed on frame %d of %s: %v", frame.Index, meta.Source, err)
				p.lastStats = stats
				return nil, &DetectorError{Frame: frame.Index, Err: err}
			}
			var accepted int
			overlay, accepted = p.admit(detections, frame.Index, fps, dedup, inventory, &stats)
			tracef("frame %d: %d detections, %d accepted", frame.Index, len(detections), accepted)
		}

		if sink != nil {
			if err := sink.WriteFrame(frame, overlay); err != nil {
				opsf("output video write failed on frame %d, dropping sink: %v", frame.Index, err)
				closeSink()
			}
		}

		if stats.FramesRead%p.cfg.ProgressEvery == 0 {
			logProgress(stats.FramesRead, total, inventory.Len())
		}
	}
	p.lastStats = stats

	if partial {
		opsf("stopped %s after %d frames, writing partial report", meta.Source, stats.FramesRead)
	}
	diagf("finished %s: read=%d sampled=%d detections=%d accepted=%d duplicates=%d low_confidence=%d malformed=%d",
		meta.Source, stats.FramesRead, stats.FramesSampled, stats.DetectionsSeen, stats.Accepted,
		stats.Duplicates, stats.RejectedConfidence, stats.Malformed)

	return report.Build(inventory.Potholes(), report.Metadata{
		Street:         meta.Street,
		Direction:      meta.Direction,
		City:           meta.City,
		Source:         meta.Source,
		FPS:            fps,
		TotalFrames:    total,
		StartedAt:      started,
		Location:       p.cfg.Location,
		Partial:        partial,
		FramesRead:     stats.FramesRead,
		FramesSampled:  stats.FramesSampled,
		DetectionsSeen: stats.DetectionsSeen,
	}), nil
}

// admit filters, deduplicates and classifies the detections of one frame,
// appending novel potholes to inv. It returns every confident detection on
// the frame for drawing, duplicates included with ID 0, and the number of
// novel potholes.
func (p *Pipeline) admit(detections []pothole.Detection, frame int, fps float64,
	dedup *pothole.Deduplicator, inv *pothole.Inventory, stats *Stats) ([]pothole.Pothole, int) {
	var visible []pothole.Pothole
	accepted := 0
	for _, det := range detections {
		stats.DetectionsSeen++
		if err := det.Validate(); err != nil {
			stats.Malformed++
			diagf("dropping malformed detection on frame %d: %v", frame, err)
			continue
		}
		if det.Confidence <= p.cfg.ConfidenceThreshold {
			stats.RejectedConfidence++
			continue
		}
		severity := p.cfg.Severity.Classify(det.Box.Area())
		center := det.Box.Center()
		if dedup.IsDuplicate(center) {
			stats.Duplicates++
			visible = append(visible, pothole.FromDetection(det, frame, fps, severity))
			continue
		}
		dedup.Record(center)
		ph := inv.Add(det, frame, fps, severity)
		stats.Accepted++
		accepted++
		visible = append(visible, ph)
	}
	return visible, accepted
}

func logProgress(read, total, found int) {
	if total > 0 {
		diagf("progress: %d/%d frames (%.0f%%), %d potholes", read, total, 100*float64(read)/float64(total), found)
		return
	}
	diagf("progress: %d frames, %d potholes", read, found)
}
