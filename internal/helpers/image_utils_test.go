package helpers

import (
	"testing"

	"cutwatch-worker-go/internal/models"
)

func TestClampBox(t *testing.T) {
	tests := []struct {
		name     string
		box      models.BoundingBox
		expected models.BoundingBox
	}{
		{"inside", models.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 60}, models.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 60}},
		{"negative origin", models.BoundingBox{X1: -5, Y1: -8, X2: 20, Y2: 20}, models.BoundingBox{X1: 0, Y1: 0, X2: 20, Y2: 20}},
		{"past edge", models.BoundingBox{X1: 90, Y1: 70, X2: 150, Y2: 130}, models.BoundingBox{X1: 90, Y1: 70, X2: 99, Y2: 79}},
		{"inverted", models.BoundingBox{X1: 40, Y1: 40, X2: 30, Y2: 30}, models.BoundingBox{X1: 40, Y1: 40, X2: 41, Y2: 41}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampBox(tt.box, 100, 80)
			if got != tt.expected {
				t.Errorf("ClampBox(%+v) = %+v, expected %+v", tt.box, got, tt.expected)
			}
		})
	}
}

func TestFitWithin(t *testing.T) {
	if s := FitWithin(640, 480, 1280, 1280); s != 1.0 {
		t.Errorf("expected no upscale, got %v", s)
	}
	if s := FitWithin(2560, 1440, 1280, 1280); s != 0.5 {
		t.Errorf("expected 0.5, got %v", s)
	}
}

func TestScaleBox(t *testing.T) {
	got := ScaleBox(models.BoundingBox{X1: 10, Y1: 20, X2: 30, Y2: 40}, 0.5, 0.5)
	expected := models.BoundingBox{X1: 20, Y1: 40, X2: 60, Y2: 80}
	if got != expected {
		t.Errorf("ScaleBox = %+v, expected %+v", got, expected)
	}
}

func TestIsJPEGData(t *testing.T) {
	if !IsJPEGData([]byte{0xFF, 0xD8, 0xFF}) {
		t.Error("expected JPEG magic to be recognised")
	}
	if IsJPEGData([]byte{0x89, 0x50}) {
		t.Error("PNG magic is not JPEG")
	}
}

func TestClampQuality(t *testing.T) {
	if ClampQuality(0) != HighQuality || ClampQuality(101) != HighQuality {
		t.Error("out of range quality should fall back")
	}
	if ClampQuality(60) != 60 {
		t.Error("in range quality should be kept")
	}
}
