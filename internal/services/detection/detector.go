package detection

import (
	"context"

	"cutwatch-worker-go/internal/models"
)

// Detector finds objects in a decoded frame. Results below threshold are dropped.
type Detector interface {
	Detect(ctx context.Context, frame models.Frame, threshold float64) ([]models.RawDetection, error)
}

// FrameEncoder turns a frame into bytes a remote model server can decode
type FrameEncoder func(models.Frame) ([]byte, error)

// HealthChecker is implemented by detectors with a remote dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	IsHealthy() bool
}

// filterByThreshold keeps detections at or above threshold
func filterByThreshold(dets []models.RawDetection, threshold float64) []models.RawDetection {
	out := dets[:0]
	for _, d := range dets {
		if float64(d.Confidence) >= threshold {
			out = append(out, d)
		}
	}
	return out
}
