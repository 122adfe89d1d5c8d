package videoio

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"cutwatch-worker-go/internal/helpers"
	"cutwatch-worker-go/internal/models"
)

var (
	boxColor   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotator draws detection boxes and labels onto a frame in place
type Annotator struct {
	Thickness    int
	CornerLength int
}

func NewAnnotator() *Annotator {
	return &Annotator{Thickness: 2, CornerLength: 15}
}

func (a *Annotator) Annotate(frame models.Frame, detections []models.RawDetection) (models.Frame, error) {
	mat, err := AsMat(frame)
	if err != nil {
		return nil, err
	}
	if mat.Empty() {
		return nil, fmt.Errorf("cannot annotate empty frame")
	}
	width, height := mat.Cols(), mat.Rows()

	for _, det := range detections {
		box := helpers.ClampBox(det.Box, width, height)
		x1, y1, x2, y2 := box.X1, box.Y1, box.X2, box.Y2
		gocv.Rectangle(mat, image.Rect(x1, y1, x2, y2), boxColor, a.Thickness)

		c := a.CornerLength
		gocv.Line(mat, image.Pt(x1, y1), image.Pt(x1+c, y1), boxColor, a.Thickness+1)
		gocv.Line(mat, image.Pt(x1, y1), image.Pt(x1, y1+c), boxColor, a.Thickness+1)
		gocv.Line(mat, image.Pt(x2, y2), image.Pt(x2-c, y2), boxColor, a.Thickness+1)
		gocv.Line(mat, image.Pt(x2, y2), image.Pt(x2, y2-c), boxColor, a.Thickness+1)

		label := fmt.Sprintf("%s %.2f", det.ClassLabel, det.Confidence)
		textSize := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
		labelY := y1 - 4
		if labelY-textSize.Y < 0 {
			labelY = y1 + textSize.Y + 4
		}
		bg := image.Rect(x1, labelY-textSize.Y-4, x1+textSize.X+4, labelY+2)
		gocv.Rectangle(mat, bg, boxColor, -1)
		gocv.PutText(mat, label, image.Pt(x1+2, labelY), gocv.FontHersheySimplex, 0.5, labelColor, 1)
	}
	return frame, nil
}

// JPEGEncoder returns an encoder producing JPEG bytes at the given quality
func JPEGEncoder(quality int) func(models.Frame) ([]byte, error) {
	quality = helpers.ClampQuality(quality)
	return func(frame models.Frame) ([]byte, error) {
		mat, err := AsMat(frame)
		if err != nil {
			return nil, err
		}
		return EncodeJPEG(*mat, quality)
	}
}

// EncodeJPEG encodes a Mat as JPEG
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame as JPEG: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
