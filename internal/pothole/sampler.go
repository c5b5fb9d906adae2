package pothole

// DefaultFrameStride is the number of frames between detector calls.
const DefaultFrameStride = 10

// FrameSampler selects which frame indices are sent to the detector.
// Consecutive samples are far enough apart that dense resampling of one
// pothole is rare, and close enough at survey speeds not to skip one.
type FrameSampler struct {
	Stride int
}

// NewFrameSampler returns a sampler with the given stride. A stride below 1
// samples every frame.
func NewFrameSampler(stride int) FrameSampler {
	if stride < 1 {
		stride = 1
	}
	return FrameSampler{Stride: stride}
}

// ShouldSample reports whether frame index i is submitted for inference.
func (s FrameSampler) ShouldSample(i int) bool {
	if s.Stride <= 1 {
		return true
	}
	return i%s.Stride == 0
}
