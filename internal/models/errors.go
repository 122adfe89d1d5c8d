package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreadable means the video could not be opened; no work was done
	ErrSourceUnreadable = errors.New("video source unreadable")
	// ErrScanTruncated means a frame failed to decode mid-stream
	ErrScanTruncated = errors.New("video scan truncated")
	// ErrDetectorFailed means the detection capability failed on a frame
	ErrDetectorFailed = errors.New("detector failed")
	// ErrNotRegistered means a handle has no known channel identity yet
	ErrNotRegistered = errors.New("recipient not registered")
	// ErrRegistrationFailed means the registration handshake could not complete
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrChannelSendFailed means a notification could not be delivered
	ErrChannelSendFailed = errors.New("channel send failed")
	// ErrEvidenceWriteFailed means an annotated frame could not be persisted
	ErrEvidenceWriteFailed = errors.New("evidence write failed")
	// ErrFrameDecode means the source produced a frame that decodes to nothing
	ErrFrameDecode = errors.New("frame decode failed")
	// ErrInvalidRequest means the analysis request is incomplete or contradictory
	ErrInvalidRequest = errors.New("invalid analysis request")
)

// ScanError reports a fatal scan failure together with how far the scan got
type ScanError struct {
	Kind          error
	FrameIndex    int
	FramesScanned int
	Ledger        DetectionLedger // partial, never to be treated as complete
	Err           error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v at frame %d: %v", e.Kind, e.FrameIndex, e.Err)
	}
	return fmt.Sprintf("%v at frame %d", e.Kind, e.FrameIndex)
}

func (e *ScanError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
