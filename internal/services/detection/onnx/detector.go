// Package onnx runs a YOLO-format ONNX export locally through OpenCV DNN.
package onnx

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/services/detection"
	"cutwatch-worker-go/internal/services/videoio"
)

type Detector struct {
	mu           sync.Mutex // gocv.Net is not safe for concurrent Forward calls
	net          gocv.Net
	classes      []string
	inputSize    int
	nmsThreshold float32
}

func NewDetector(modelPath string, classes []string, inputSize int, nmsThreshold float64) (*Detector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load ONNX model from %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		log.Warn().Err(err).Msg("Failed to set DNN backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		log.Warn().Err(err).Msg("Failed to set DNN target")
	}
	if inputSize <= 0 {
		inputSize = 640
	}

	log.Info().
		Str("model", modelPath).
		Strs("classes", classes).
		Int("input_size", inputSize).
		Msg("ONNX detector loaded")

	return &Detector{
		net:          net,
		classes:      classes,
		inputSize:    inputSize,
		nmsThreshold: float32(nmsThreshold),
	}, nil
}

func (d *Detector) Detect(ctx context.Context, frame models.Frame, threshold float64) ([]models.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := videoio.AsMat(frame)
	if err != nil {
		return nil, err
	}
	if mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	blob := gocv.BlobFromImage(*mat, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	sizes := out.Size()
	if len(sizes) != 3 || sizes[1] < 5 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	numClasses, numBoxes := sizes[1]-4, sizes[2]

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read model output: %w", err)
	}

	scaleX := float64(mat.Cols()) / float64(d.inputSize)
	scaleY := float64(mat.Rows()) / float64(d.inputSize)
	candidates := detection.DecodeYOLO(data, numClasses, numBoxes, threshold, scaleX, scaleY)
	if len(candidates) == 0 {
		return nil, nil
	}

	rects := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		rects[i] = image.Rect(c.Box.X1, c.Box.Y1, c.Box.X2, c.Box.Y2)
		scores[i] = c.Confidence
	}
	keep := gocv.NMSBoxes(rects, scores, float32(threshold), d.nmsThreshold)

	dets := make([]models.RawDetection, 0, len(keep))
	for _, idx := range keep {
		c := candidates[idx]
		dets = append(dets, models.RawDetection{
			Box:        c.Box,
			ClassLabel: detection.ClassLabel(d.classes, c.ClassIndex),
			Confidence: c.Confidence,
		})
	}
	return dets, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
