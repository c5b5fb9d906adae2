package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/banshee-data/pothole.report/internal/pipeline"
	"github.com/banshee-data/pothole.report/internal/pothole"
)

// defaultFPS is used for the output when the input declares no rate.
const defaultFPS = 25

// Writer encodes annotated frames into a video file.
type Writer struct {
	path          string
	width, height int

	pw     *io.PipeWriter
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stderr bytes.Buffer
	runErr error

	buf    []byte
	closed bool
}

// NewWriter starts an encoder writing a width x height video to path. The
// container and codec follow the file extension.
func NewWriter(path string, width, height int, fps float64) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", width, height)
	}
	if fps <= 0 {
		fps = defaultFPS
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	w := &Writer{
		path:   path,
		width:  width,
		height: height,
		pw:     pw,
		cancel: cancel,
		buf:    make([]byte, width*height*3),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		stream := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
			"format":    "rawvideo",
			"pix_fmt":   "rgb24",
			"s":         fmt.Sprintf("%dx%d", width, height),
			"framerate": strconv.FormatFloat(fps, 'f', -1, 64),
		}).Output(path, ffmpeg.KwArgs{"pix_fmt": "yuv420p"}).OverWriteOutput()
		stream.Context = ctx
		w.runErr = stream.WithInput(pr).WithOutput(io.Discard, &w.stderr).Run()
		pr.CloseWithError(w.runErr)
	}()
	return w, nil
}

// Path returns the output file path.
func (w *Writer) Path() string { return w.path }

// WriteFrame draws the overlay onto the frame and encodes it.
func (w *Writer) WriteFrame(frame pipeline.Frame, overlay []pothole.Pothole) error {
	if w.closed {
		return errors.New("writer is closed")
	}
	if frame.Image == nil {
		return fmt.Errorf("frame %d has no image", frame.Index)
	}
	img := frame.Image
	if len(overlay) > 0 {
		img = Annotate(img, overlay)
	}
	imageToRGB(img, w.width, w.height, w.buf)
	if _, err := w.pw.Write(w.buf); err != nil {
		return fmt.Errorf("encode frame %d: %w", frame.Index, err)
	}
	return nil
}

// Close flushes the encoder and waits for it to finish.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.pw.Close()
	w.wg.Wait()
	w.cancel()
	if w.runErr != nil {
		return fmt.Errorf("encode %s: %w%s", w.path, w.runErr, lastLine(w.stderr.String()))
	}
	return nil
}

// SinkFactory returns a pipeline.FrameSinkFactory that writes an annotated
// copy of each input video into dir, named after the input with an
// "_annotated" suffix. Sources must report their frame size.
func SinkFactory(dir string) pipeline.FrameSinkFactory {
	return func(meta pipeline.RunMetadata, src pipeline.FrameSource) (pipeline.FrameSink, error) {
		sized, ok := src.(interface{ Size() (int, int) })
		if !ok {
			return nil, errors.New("frame source does not report its size")
		}
		width, height := sized.Size()
		w, err := NewWriter(OutputPath(dir, meta.Source), width, height, src.FPS())
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// OutputPath names the annotated video for source inside dir.
func OutputPath(dir, source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "result"
	}
	if ext == "" || ext == "." {
		ext = ".mp4"
	}
	return filepath.Join(dir, name+"_annotated"+ext)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return ": " + s
}
