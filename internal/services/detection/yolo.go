package detection

import (
	"fmt"

	"cutwatch-worker-go/internal/models"
)

// YOLOCandidate is one pre-NMS box decoded from a YOLOv8 style output tensor
type YOLOCandidate struct {
	Box        models.BoundingBox
	ClassIndex int
	Confidence float32
}

// DecodeYOLO reads a [1, 4+numClasses, numBoxes] output laid out row-major.
// Boxes are cx,cy,w,h in model input pixels and are scaled by scaleX/scaleY
// back into the source frame.
func DecodeYOLO(data []float32, numClasses, numBoxes int, threshold float64, scaleX, scaleY float64) []YOLOCandidate {
	rows := 4 + numClasses
	if numClasses < 1 || numBoxes < 1 || len(data) < rows*numBoxes {
		return nil
	}

	at := func(row, col int) float32 { return data[row*numBoxes+col] }

	var out []YOLOCandidate
	for i := 0; i < numBoxes; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if score := at(4+c, i); score > bestScore {
				best, bestScore = c, score
			}
		}
		if best < 0 || float64(bestScore) < threshold {
			continue
		}

		cx, cy, w, h := float64(at(0, i)), float64(at(1, i)), float64(at(2, i)), float64(at(3, i))
		out = append(out, YOLOCandidate{
			Box: models.BoundingBox{
				X1: int((cx - w/2) * scaleX),
				Y1: int((cy - h/2) * scaleY),
				X2: int((cx + w/2) * scaleX),
				Y2: int((cy + h/2) * scaleY),
			},
			ClassIndex: best,
			Confidence: bestScore,
		})
	}
	return out
}

// ClassLabel names a class index; indexes outside the configured list get a
// neutral label
func ClassLabel(classes []string, index int) string {
	if index >= 0 && index < len(classes) {
		return classes[index]
	}
	if index >= 0 {
		return fmt.Sprintf("class_%d", index)
	}
	return "object"
}
