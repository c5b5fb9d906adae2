// Package yolo runs a YOLOv8 ONNX export through ONNX Runtime and turns its
// raw output into pothole detections in frame pixel coordinates.
package yolo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/banshee-data/pothole.report/internal/config"
	"github.com/banshee-data/pothole.report/internal/pipeline"
	"github.com/banshee-data/pothole.report/internal/pothole"
)

// Config describes the model and its decoding parameters.
type Config struct {
	ModelPath  string
	InputSize  int
	ClassNames []string
	// Keep restricts output to these class names. Empty keeps every class.
	Keep       []string
	ScoreFloor float64
	NMSIoU     float64
	Threads    int
}

// ConfigFromTuning fills the decoding parameters from a tuning file.
func ConfigFromTuning(modelPath string, t *config.TuningConfig) Config {
	return Config{
		ModelPath:  modelPath,
		InputSize:  t.GetModelInputSize(),
		ClassNames: t.GetClassNames(),
		ScoreFloor: t.GetModelScoreFloor(),
		NMSIoU:     t.GetNMSIoUThreshold(),
	}
}

func (c Config) validate() error {
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", c.InputSize)
	}
	if len(c.ClassNames) == 0 {
		return errors.New("at least one class name is required")
	}
	return nil
}

// InitializeRuntime loads the ONNX Runtime shared library. It must be called
// once before New.
func InitializeRuntime(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	return nil
}

// DestroyRuntime releases the ONNX Runtime environment.
func DestroyRuntime() error {
	return ort.DestroyEnvironment()
}

// session is the part of ort.AdvancedSession the detector drives.
type session interface {
	Run() error
	Destroy() error
}

// Detector runs inference one frame at a time. It is safe for concurrent
// use; calls are serialised on the shared tensors.
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	anchors int
	keep    map[int]bool

	sess   session
	input  []float32
	output []float32
	free   func()
}

// New loads the model at cfg.ModelPath.
func New(cfg Config) (*Detector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	anchors := anchorCount(cfg.InputSize)
	size := int64(cfg.InputSize)

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(cfg.ClassNames)), int64(anchors)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	sess, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session for %s: %w", cfg.ModelPath, err)
	}

	d := newDetector(cfg, sess, inputTensor.GetData(), outputTensor.GetData())
	d.free = func() {
		inputTensor.Destroy()
		outputTensor.Destroy()
	}
	return d, nil
}

func newDetector(cfg Config, sess session, input, output []float32) *Detector {
	d := &Detector{
		cfg:     cfg,
		anchors: anchorCount(cfg.InputSize),
		sess:    sess,
		input:   input,
		output:  output,
	}
	if len(cfg.Keep) > 0 {
		d.keep = make(map[int]bool, len(cfg.Keep))
		for _, name := range cfg.Keep {
			for i, c := range cfg.ClassNames {
				if c == name {
					d.keep[i] = true
				}
			}
		}
	}
	return d
}

// Detect runs the model on frame and returns detections in frame pixels,
// after score floor, class filter and per-class NMS.
func (d *Detector) Detect(ctx context.Context, frame pipeline.Frame) ([]pothole.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Image == nil {
		return nil, errors.New("frame has no image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	square, lb := letterbox(frame.Image, d.cfg.InputSize)
	fillTensor(square, d.input)

	if err := d.sess.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	cands := decodeOutput(d.output, len(d.cfg.ClassNames), d.anchors, d.cfg.ScoreFloor)
	if d.keep != nil {
		filtered := cands[:0]
		for _, c := range cands {
			if d.keep[c.class] {
				filtered = append(filtered, c)
			}
		}
		cands = filtered
	}
	cands = nms(cands, d.cfg.NMSIoU)

	out := make([]pothole.Detection, 0, len(cands))
	for _, c := range cands {
		x1, y1, x2, y2 := lb.unmap(c.box.X1, c.box.Y1, c.box.X2, c.box.Y2)
		out = append(out, pothole.Detection{
			Box:        pothole.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
			Confidence: c.score,
			Class:      d.cfg.ClassNames[c.class],
		})
	}
	return out, nil
}

// Close releases the session and its tensors.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.sess != nil {
		err = d.sess.Destroy()
		d.sess = nil
	}
	if d.free != nil {
		d.free()
		d.free = nil
	}
	return err
}
