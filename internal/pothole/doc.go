// Package pothole holds the leaf components of the detection pipeline:
// bounding-box geometry, the severity classifier, the frame sampler, the
// spatial deduplicator and the append-only inventory of accepted potholes.
//
// Nothing in this package performs I/O. The orchestration that feeds frames
// through these components lives in internal/pipeline.
package pothole
