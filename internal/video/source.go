// Package video decodes and encodes video through ffmpeg child processes.
//
// Frames travel as raw rgb24 over an io.Pipe connected to the process's
// stdout (decode) or stdin (encode).
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/banshee-data/pothole.report/internal/pipeline"
)

// Source decodes a video file frame by frame.
type Source struct {
	info Info
	path string

	pr     *io.PipeReader
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stderr bytes.Buffer

	buf   []byte
	index int
	done  bool
}

// Open probes path and starts decoding it.
func Open(path string) (*Source, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	return openWithInfo(path, info), nil
}

// Opener adapts Open to pipeline.Opener.
func Opener(path string) (pipeline.FrameSource, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func openWithInfo(path string, info Info) *Source {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	s := &Source{
		info:   info,
		path:   path,
		pr:     pr,
		cancel: cancel,
		buf:    make([]byte, info.Width*info.Height*3),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		stream := ffmpeg.Input(path).Output("pipe:", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "rgb24",
		})
		// Context must be set before the writers are attached; stderr is
		// kept for error messages.
		stream.Context = ctx
		pw.CloseWithError(stream.WithOutput(pw, &s.stderr).Run())
	}()
	return s
}

// FPS implements pipeline.FrameSource.
func (s *Source) FPS() float64 { return s.info.FPS }

// TotalFrames implements pipeline.FrameSource.
func (s *Source) TotalFrames() int { return s.info.Frames }

// Size returns the frame dimensions in pixels.
func (s *Source) Size() (int, int) { return s.info.Width, s.info.Height }

// Next returns the next decoded frame, or io.EOF once the stream ends.
func (s *Source) Next(ctx context.Context) (pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Frame{}, err
	}
	if s.done {
		return pipeline.Frame{}, io.EOF
	}

	_, err := io.ReadFull(s.pr, s.buf)
	switch {
	case errors.Is(err, io.EOF):
		s.done = true
		return pipeline.Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		return pipeline.Frame{}, fmt.Errorf("truncated frame %d in %s", s.index, s.path)
	case err != nil:
		s.done = true
		return pipeline.Frame{}, fmt.Errorf("decode %s: %w%s", s.path, err, lastLine(s.stderr.String()))
	}

	frame := pipeline.Frame{Index: s.index, Image: rgbToImage(s.buf, s.info.Width, s.info.Height)}
	s.index++
	return frame, nil
}

// Close stops the decoder and waits for it to exit.
func (s *Source) Close() error {
	s.cancel()
	s.pr.Close()
	s.wg.Wait()
	return nil
}

// rgbToImage copies packed rgb24 pixels into a new RGBA image.
func rgbToImage(buf []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i+2 < len(buf) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// imageToRGB writes img as packed rgb24 into dst, which must hold
// w*h*3 bytes. Pixels outside img are black.
func imageToRGB(img image.Image, w, h int, dst []byte) {
	clear(dst)
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		for y := 0; y < h && y < b.Dy(); y++ {
			row := rgba.Pix[y*rgba.Stride:]
			for x := 0; x < w && x < b.Dx(); x++ {
				o := (y*w + x) * 3
				dst[o], dst[o+1], dst[o+2] = row[x*4], row[x*4+1], row[x*4+2]
			}
		}
		return
	}
	for y := 0; y < h && y < b.Dy(); y++ {
		for x := 0; x < w && x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			o := (y*w + x) * 3
			dst[o], dst[o+1], dst[o+2] = byte(r>>8), byte(g>>8), byte(bl>>8)
		}
	}
}
