package models

import (
	"fmt"
	"time"
)

// Frame is one decoded video frame. The concrete type belongs to the video
// backend; the pipeline only needs to release it.
type Frame interface {
	Close() error
}

// BoundingBox is a pixel-space box with (X1,Y1) top-left and (X2,Y2) bottom-right
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BoundingBox) Width() int  { return b.X2 - b.X1 }
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// RawDetection is what the detector returns for a single frame
type RawDetection struct {
	Box        BoundingBox `json:"box"`
	ClassLabel string      `json:"class_label"`
	Confidence float32     `json:"confidence"`
}

// EvidenceRef names an annotated frame owned by an evidence store
type EvidenceRef string

// Detection is one model hit on one frame. Values are never mutated after the
// scanner appends them to a ledger.
type Detection struct {
	FrameIndex  int         `json:"frame_index"`
	Timestamp   float64     `json:"timestamp"` // seconds, FrameIndex / fps
	ClassLabel  string      `json:"class_label"`
	Confidence  float32     `json:"confidence"`
	Box         BoundingBox `json:"bounding_box"`
	EvidenceRef EvidenceRef `json:"evidence_ref,omitempty"`
}

// TimestampLabel renders the detection timestamp as mm:ss.mmm
func (d Detection) TimestampLabel() string {
	total := time.Duration(d.Timestamp * float64(time.Second))
	minutes := int(total / time.Minute)
	seconds := total % time.Minute
	return fmt.Sprintf("%02d:%06.3f", minutes, seconds.Seconds())
}

// DetectionLedger holds every detection of a run in frame order
type DetectionLedger struct {
	Detections    []Detection `json:"detections"`
	FramesScanned int         `json:"frames_scanned"`
	FPS           float64     `json:"fps"`
}

// Len returns the number of detections in the ledger
func (l DetectionLedger) Len() int {
	return len(l.Detections)
}

// EvidenceFrames returns the distinct frame indexes that carry an evidence artifact
func (l DetectionLedger) EvidenceFrames() []int {
	seen := make(map[int]struct{})
	var frames []int
	for _, det := range l.Detections {
		if det.EvidenceRef == "" {
			continue
		}
		if _, ok := seen[det.FrameIndex]; ok {
			continue
		}
		seen[det.FrameIndex] = struct{}{}
		frames = append(frames, det.FrameIndex)
	}
	return frames
}

// AlertSelection is the bounded subset of a ledger chosen for individual alerts
type AlertSelection struct {
	Items      []Detection `json:"items"`
	Positions  []int       `json:"positions"` // ledger positions of Items
	TotalCount int         `json:"total_count"`
	Truncated  bool        `json:"truncated"`
	Cap        int         `json:"cap"`
}

// Shown is the number of detections that will be individually notified
func (s AlertSelection) Shown() int {
	return len(s.Items)
}
