package pipeline

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable is returned when a video cannot be opened. No
// processing happens and no report is produced.
var ErrSourceUnavailable = errors.New("video source unavailable")

// DetectorError reports an inference failure on a specific frame. The run
// is aborted without a report.
type DetectorError struct {
	Frame int
	Err   error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector failed on frame %d: %v", e.Frame, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }
