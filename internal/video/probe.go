package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Info describes the first video stream of a container.
type Info struct {
	Width  int
	Height int
	// FPS is 0 when the container does not declare a rate.
	FPS float64
	// Frames is 0 when the container does not declare a frame count.
	Frames int
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe on path.
func Probe(path string) (Info, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(data string) (Info, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Info{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return Info{}, fmt.Errorf("video stream has invalid size %dx%d", s.Width, s.Height)
		}
		info := Info{Width: s.Width, Height: s.Height}
		info.FPS = parseRate(s.AvgFrameRate)
		if info.FPS == 0 {
			info.FPS = parseRate(s.RFrameRate)
		}
		info.Frames, _ = strconv.Atoi(s.NbFrames)
		if info.Frames <= 0 && info.FPS > 0 {
			// Some containers (mkv, webm) only carry a duration.
			if d, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil && d > 0 {
				info.Frames = int(d*info.FPS + 0.5)
			}
		}
		return info, nil
	}
	return Info{}, errors.New("no video stream found")
}

// parseRate parses an ffprobe rational such as "30000/1001". Unknown or
// malformed rates are 0.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d <= 0 {
		return 0
	}
	return n / d
}
