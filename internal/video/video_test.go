package video

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/banshee-data/pothole.report/internal/pipeline"
	"github.com/banshee-data/pothole.report/internal/pothole"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
		{"30/x", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, parseRate(tt.in), 1e-9)
		})
	}
}

func TestParseProbe(t *testing.T) {
	out := `{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1280, "height": 720,
			 "r_frame_rate": "30/1", "avg_frame_rate": "30000/1001", "nb_frames": "1800"}
		],
		"format": {"duration": "60.06"}
	}`
	info, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 1280, info.Width)
	assert.Equal(t, 720, info.Height)
	assert.InDelta(t, 29.97, info.FPS, 0.01)
	assert.Equal(t, 1800, info.Frames)
}

func TestParseProbeDurationFallback(t *testing.T) {
	out := `{"streams": [{"codec_type": "video", "width": 64, "height": 48,
		"r_frame_rate": "10/1", "avg_frame_rate": "0/0"}],
		"format": {"duration": "10.1"}}`
	info, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 10.0, info.FPS)
	assert.Equal(t, 101, info.Frames)
}

func TestParseProbeErrors(t *testing.T) {
	_, err := parseProbe("not json")
	assert.Error(t, err)

	_, err = parseProbe(`{"streams": [{"codec_type": "audio"}]}`)
	assert.Error(t, err)

	_, err = parseProbe(`{"streams": [{"codec_type": "video", "width": 0, "height": 10}]}`)
	assert.Error(t, err)
}

func TestRGBConversionRoundTrip(t *testing.T) {
	buf := []byte{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 10, 20, 30,
	}
	img := rgbToImage(buf, 2, 2)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.RGBAAt(1, 1))

	dst := make([]byte, len(buf))
	imageToRGB(img, 2, 2, dst)
	assert.Equal(t, buf, dst)

	// Non-RGBA input and a smaller image than the output.
	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.SetGray(0, 0, color.Gray{Y: 100})
	imageToRGB(gray, 2, 2, dst)
	assert.Equal(t, []byte{100, 100, 100, 0, 0, 0, 0, 0, 0, 0, 0, 0}, dst)
}

func TestAnnotate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	p := pothole.Pothole{
		ID:         1,
		Box:        pothole.BoundingBox{X1: 50, Y1: 60, X2: 150, Y2: 160},
		Confidence: 0.8,
		Severity:   pothole.SeverityLarge,
	}

	out := Annotate(img, []pothole.Pothole{p})
	require.Equal(t, img.Bounds(), out.Bounds())

	edge := out.RGBAAt(100, 160)
	assert.Equal(t, uint8(0xff), edge.R, "box edge drawn in the large colour")
	assert.Equal(t, color.RGBA{}, out.RGBAAt(100, 110), "box interior untouched")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(100, 160), "source image not modified")
}

func TestAnnotateLabel(t *testing.T) {
	p := pothole.Pothole{ID: 3, Severity: pothole.SeverityMedium, Confidence: 0.876}
	assert.Equal(t, "#3 medium 0.88", label(p))
	p.ID = 0
	assert.Equal(t, "medium 0.88", label(p))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "jalan_annotated.mp4"), OutputPath("out", "/videos/jalan.mp4"))
	assert.Equal(t, filepath.Join("out", "cam_annotated.mp4"), OutputPath("out", "cam"))
	assert.Equal(t, filepath.Join("out", "result_annotated.mp4"), OutputPath("out", ""))
}

type unsizedSource struct{}

func (unsizedSource) Next(context.Context) (pipeline.Frame, error) { return pipeline.Frame{}, io.EOF }
func (unsizedSource) FPS() float64                                 { return 10 }
func (unsizedSource) TotalFrames() int                             { return 0 }
func (unsizedSource) Close() error                                 { return nil }

func TestSinkFactoryRequiresSize(t *testing.T) {
	_, err := SinkFactory(t.TempDir())(pipeline.RunMetadata{Source: "a.mp4"}, unsizedSource{})
	assert.Error(t, err)
}

func TestNewWriterRejectsBadSize(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "out.mp4"), 0, 10, 10)
	assert.Error(t, err)
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
}

func TestDecodeAndEncode(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")

	err := ffmpeg.Input("testsrc=size=64x48:rate=10:duration=1", ffmpeg.KwArgs{"f": "lavfi"}).
		Output(input, ffmpeg.KwArgs{"pix_fmt": "yuv420p"}).
		OverWriteOutput().
		Run()
	require.NoError(t, err)

	src, err := Open(input)
	require.NoError(t, err)
	w, h := src.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
	assert.InDelta(t, 10, src.FPS(), 0.01)

	sink, err := SinkFactory(dir)(pipeline.RunMetadata{Source: input}, src)
	require.NoError(t, err)

	ctx := context.Background()
	n := 0
	for {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, n, frame.Index)
		require.NoError(t, sink.WriteFrame(frame, nil))
		n++
	}
	assert.Equal(t, 10, n)
	require.NoError(t, src.Close())
	require.NoError(t, sink.Close())

	info, err := Probe(OutputPath(dir, input))
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
}

func TestSourceCloseStopsDecoder(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "long.mp4")
	require.NoError(t, ffmpeg.Input("testsrc=size=32x32:rate=10:duration=5", ffmpeg.KwArgs{"f": "lavfi"}).
		Output(input, ffmpeg.KwArgs{"pix_fmt": "yuv420p"}).OverWriteOutput().Run())

	src, err := Open(input)
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.NoError(t, err)

	// Closing mid-stream must not hang.
	require.NoError(t, src.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
