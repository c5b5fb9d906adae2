package yolo

import (
	"sort"

	"github.com/banshee-data/pothole.report/internal/pothole"
)

// candidate is one anchor that passed the score floor, in model input pixels.
type candidate struct {
	box   pothole.BoundingBox
	score float64
	class int
}

// anchorCount returns the number of prediction anchors a YOLOv8 head emits
// for a square input (strides 8, 16 and 32).
func anchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := size / stride
		n += g * g
	}
	return n
}

// decodeOutput reads a [1, 4+numClasses, anchors] tensor laid out row-major:
// rows 0-3 hold cx, cy, w, h and the remaining rows hold per-class scores.
// Each anchor keeps its best class if that score reaches scoreFloor.
func decodeOutput(out []float32, numClasses, anchors int, scoreFloor float64) []candidate {
	if len(out) < (4+numClasses)*anchors {
		return nil
	}
	var cands []candidate
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := out[(4+c)*anchors+a]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < scoreFloor {
			continue
		}
		cx, cy := float64(out[a]), float64(out[anchors+a])
		w, h := float64(out[2*anchors+a]), float64(out[3*anchors+a])
		cands = append(cands, candidate{
			box:   pothole.BoundingBox{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2},
			score: float64(bestScore),
			class: best,
		})
	}
	return cands
}

// nms keeps the highest-scoring candidates, suppressing any later candidate
// of the same class whose IoU with a kept one exceeds iouThreshold.
func nms(cands []candidate, iouThreshold float64) []candidate {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		suppressed := false
		for _, k := range kept {
			if k.class == c.class && k.box.IoU(c.box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}
