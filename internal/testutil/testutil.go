// Package testutil provides shared report fixtures for tests.
package testutil

import (
	"time"

	"github.com/banshee-data/pothole.report/internal/pothole"
	"github.com/banshee-data/pothole.report/internal/report"
)

// SurveyStart is the fixed processing time stamped on fixture reports.
var SurveyStart = time.Date(2026, time.May, 5, 7, 0, 0, 0, time.UTC)

// NewReport builds a report for street with one pothole per area, spaced
// far enough apart that none are duplicates. The video is 300 frames at
// 10 fps.
func NewReport(street string, areas ...float64) *report.Report {
	thresholds := pothole.DefaultSeverityThresholds()
	inv := pothole.NewInventory()
	for i, a := range areas {
		side := a / 50
		x := float64(i) * 200
		inv.Add(pothole.Detection{
			Box:        pothole.BoundingBox{X1: x, Y1: 0, X2: x + side, Y2: 50},
			Confidence: 0.8,
			Class:      "pothole",
		}, i*10, 10, thresholds.Classify(a))
	}
	return report.Build(inv.Potholes(), report.Metadata{
		Street:      street,
		Direction:   "utara",
		City:        "Yogyakarta",
		Source:      "survey.mp4",
		FPS:         10,
		TotalFrames: 300,
		StartedAt:   SurveyStart,
		Location:    time.UTC,
		FramesRead:  300,
	})
}
