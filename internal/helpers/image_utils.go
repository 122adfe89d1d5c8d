package helpers

import (
	"cutwatch-worker-go/internal/models"
)

const (
	// JPEG quality settings
	HighQuality   = 95
	MediumQuality = 75
	LowQuality    = 50

	// Frames sent to a remote detector are downscaled to fit these bounds
	MaxTransportWidth  = 1280
	MaxTransportHeight = 1280
)

// IsJPEGData checks if the byte slice contains JPEG data by checking magic bytes
func IsJPEGData(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	// JPEG magic bytes: FF D8
	return data[0] == 0xFF && data[1] == 0xD8
}

// ClampQuality keeps a JPEG quality inside 1..100, falling back to HighQuality
func ClampQuality(quality int) int {
	if quality < 1 || quality > 100 {
		return HighQuality
	}
	return quality
}

// ClampBox keeps a box inside a width x height frame with a non-empty area
func ClampBox(box models.BoundingBox, width, height int) models.BoundingBox {
	if width < 2 || height < 2 {
		return box
	}
	x1 := max(0, min(width-2, box.X1))
	y1 := max(0, min(height-2, box.Y1))
	x2 := max(x1+1, min(width-1, box.X2))
	y2 := max(y1+1, min(height-1, box.Y2))
	return models.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// FitWithin returns the scale that fits width x height inside maxWidth x
// maxHeight without upscaling
func FitWithin(width, height, maxWidth, maxHeight int) float64 {
	if width <= 0 || height <= 0 {
		return 1.0
	}
	scaleX := float64(maxWidth) / float64(width)
	scaleY := float64(maxHeight) / float64(height)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}
	// Don't upscale images
	if scale > 1.0 {
		scale = 1.0
	}
	return scale
}

// ScaleBox maps a box from a resized frame back to the original resolution
func ScaleBox(box models.BoundingBox, scaleX, scaleY float64) models.BoundingBox {
	if scaleX <= 0 || scaleY <= 0 {
		return box
	}
	return models.BoundingBox{
		X1: int(float64(box.X1) / scaleX),
		Y1: int(float64(box.Y1) / scaleY),
		X2: int(float64(box.X2) / scaleX),
		Y2: int(float64(box.Y2) / scaleY),
	}
}
