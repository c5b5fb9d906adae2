// Package report aggregates a run's pothole inventory into the summary
// record handed to result sinks, and persists collections of those records.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pothole.report/internal/pothole"
)

// ProcessedAtLayout is the layout of Report.ProcessedAt.
const ProcessedAtLayout = "2006-01-02 15:04:05"

// Histogram counts potholes per severity tier.
type Histogram struct {
	Small  int `json:"small"`
	Medium int `json:"medium"`
	Large  int `json:"large"`
}

// Add increments the bucket for s.
func (h *Histogram) Add(s pothole.Severity) {
	switch s {
	case pothole.SeverityLarge:
		h.Large++
	case pothole.SeverityMedium:
		h.Medium++
	default:
		h.Small++
	}
}

// Get returns the count for s.
func (h Histogram) Get(s pothole.Severity) int {
	switch s {
	case pothole.SeverityLarge:
		return h.Large
	case pothole.SeverityMedium:
		return h.Medium
	default:
		return h.Small
	}
}

// Sum returns the total across tiers.
func (h Histogram) Sum() int {
	return h.Small + h.Medium + h.Large
}

// Report is the immutable summary of one processed video.
type Report struct {
	RunID          string            `json:"run_id"`
	Street         string            `json:"street"`
	Direction      string            `json:"direction"`
	City           string            `json:"city"`
	ProcessedAt    string            `json:"processed_at"`
	Source         string            `json:"source,omitempty"`
	Total          int               `json:"total_lubang"`
	Duration       float64           `json:"durasi_video"`
	PerMinute      float64           `json:"lubang_per_menit"`
	Potholes       []pothole.Pothole `json:"detail_lubang"`
	Statistik      Histogram         `json:"statistik"`
	Partial        bool              `json:"partial,omitempty"`
	FramesRead     int               `json:"frames_read,omitempty"`
	FramesSampled  int               `json:"frames_sampled,omitempty"`
	DetectionsSeen int               `json:"detections_seen,omitempty"`
}

// Header is a Report without its pothole detail. Report listings serve
// headers; the full detail_lubang comes from the single-report endpoint.
type Header struct {
	RunID          string    `json:"run_id"`
	Street         string    `json:"street"`
	Direction      string    `json:"direction"`
	City           string    `json:"city"`
	ProcessedAt    string    `json:"processed_at"`
	Source         string    `json:"source,omitempty"`
	Total          int       `json:"total_lubang"`
	Duration       float64   `json:"durasi_video"`
	PerMinute      float64   `json:"lubang_per_menit"`
	Statistik      Histogram `json:"statistik"`
	Partial        bool      `json:"partial,omitempty"`
	FramesRead     int       `json:"frames_read,omitempty"`
	FramesSampled  int       `json:"frames_sampled,omitempty"`
	DetectionsSeen int       `json:"detections_seen,omitempty"`
}

// Header drops the pothole detail from r.
func (r *Report) Header() Header {
	return Header{
		RunID:          r.RunID,
		Street:         r.Street,
		Direction:      r.Direction,
		City:           r.City,
		ProcessedAt:    r.ProcessedAt,
		Source:         r.Source,
		Total:          r.Total,
		Duration:       r.Duration,
		PerMinute:      r.PerMinute,
		Statistik:      r.Statistik,
		Partial:        r.Partial,
		FramesRead:     r.FramesRead,
		FramesSampled:  r.FramesSampled,
		DetectionsSeen: r.DetectionsSeen,
	}
}

// Headers maps Header over reports.
func Headers(reports []Report) []Header {
	out := make([]Header, 0, len(reports))
	for i := range reports {
		out = append(out, reports[i].Header())
	}
	return out
}

// Metadata describes a run independently of its inventory.
type Metadata struct {
	Street      string
	Direction   string
	City        string
	Source      string
	FPS         float64
	TotalFrames int
	StartedAt   time.Time
	Location    *time.Location
	Partial     bool

	FramesRead     int
	FramesSampled  int
	DetectionsSeen int
}

// Duration returns total_frames/fps in seconds, or 0 when either is unknown.
func Duration(totalFrames int, fps float64) float64 {
	if fps <= 0 || totalFrames <= 0 {
		return 0
	}
	return float64(totalFrames) / fps
}

// PerMinute returns count/(duration/60), or 0 when duration is not positive.
func PerMinute(count int, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(count) / (duration / 60)
}

// Build assembles the report for the given inventory. It performs no I/O.
func Build(potholes []pothole.Pothole, meta Metadata) *Report {
	duration := Duration(meta.TotalFrames, meta.FPS)

	var hist Histogram
	detail := make([]pothole.Pothole, len(potholes))
	copy(detail, potholes)
	for _, p := range detail {
		hist.Add(p.Severity)
	}

	loc := meta.Location
	if loc == nil {
		loc = time.Local
	}
	started := meta.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	return &Report{
		RunID:          uuid.NewString(),
		Street:         meta.Street,
		Direction:      meta.Direction,
		City:           meta.City,
		ProcessedAt:    started.In(loc).Format(ProcessedAtLayout),
		Source:         meta.Source,
		Total:          len(detail),
		Duration:       pothole.Round2(duration),
		PerMinute:      pothole.Round2(PerMinute(len(detail), duration)),
		Potholes:       detail,
		Statistik:      hist,
		Partial:        meta.Partial,
		FramesRead:     meta.FramesRead,
		FramesSampled:  meta.FramesSampled,
		DetectionsSeen: meta.DetectionsSeen,
	}
}
