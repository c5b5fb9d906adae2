// Package pipeline runs the frame-sampling detection and deduplication loop
// over a video and hands the resulting report to result sinks.
//
// This package is the composition root: it imports the pothole domain
// types and the report builder, and talks to decoding, inference and
// persistence only through the interfaces in stages.go.
package pipeline
