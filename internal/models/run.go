package models

import (
	"time"
)

// Channel identifies a notification channel
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
)

// String returns the string representation of Channel
func (c Channel) String() string {
	return string(c)
}

// NotificationKind distinguishes the messages a dispatch batch can contain
type NotificationKind string

const (
	NotificationDetection NotificationKind = "detection"
	NotificationSummary   NotificationKind = "summary"
	NotificationClear     NotificationKind = "no_detections"
)

// RegistrationEntry maps an external handle to a deliverable channel identity
type RegistrationEntry struct {
	Handle          string    `json:"handle"`
	ChannelIdentity string    `json:"channel_identity"`
	RegisteredAt    time.Time `json:"registered_at"`
}

// DispatchOutcome records one notification attempt sequence
type DispatchOutcome struct {
	Channel    Channel          `json:"channel"`
	Target     string           `json:"target"`
	Kind       NotificationKind `json:"kind"`
	FrameIndex int              `json:"frame_index,omitempty"`
	Attempts   int              `json:"attempts"`
	Succeeded  bool             `json:"succeeded"`
	PhotoSent  bool             `json:"photo_sent,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
}

// ChannelSummary aggregates the outcomes of one channel for a run
type ChannelSummary struct {
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Truncated bool   `json:"truncated"`
	Shown     int    `json:"shown"`
	Total     int    `json:"total"`
	Rejected  string `json:"rejected,omitempty"`
}

// Record folds an outcome into the summary
func (s *ChannelSummary) Record(outcome DispatchOutcome) {
	if outcome.Succeeded {
		s.Sent++
	} else {
		s.Failed++
	}
}

// AnalysisRequest is everything a caller can ask of a single video run
type AnalysisRequest struct {
	VideoName           string
	SourcePath          string
	AlertTelegram       bool
	TelegramHandle      string
	AlertEmail          bool
	EmailRecipient      string
	GenerateVideo       bool
	ConfidenceThreshold float64 // 0 means use the configured default
}

// AlertingRequested reports whether any notification channel was requested
func (r AnalysisRequest) AlertingRequested() bool {
	return r.AlertTelegram || r.AlertEmail
}

// VideoRun is the unit of work for one analysis request. It lives for the
// duration of the request only.
type VideoRun struct {
	ID              string                     `json:"run_id"`
	VideoName       string                     `json:"video_name"`
	SourcePath      string                     `json:"source_path"`
	StartedAt       time.Time                  `json:"started_at"`
	FinishedAt      time.Time                  `json:"finished_at"`
	Ledger          DetectionLedger            `json:"ledger"`
	Selection       AlertSelection             `json:"selection"`
	Outcomes        []DispatchOutcome          `json:"outcomes"`
	Summaries       map[Channel]ChannelSummary `json:"summaries"`
	OutputVideoPath string                     `json:"output_video_path,omitempty"`
	EvidenceDir     string                     `json:"evidence_dir,omitempty"`
	EvidenceFiles   []string                   `json:"evidence_files,omitempty"`
	ArchivedKeys    []string                   `json:"archived_keys,omitempty"`
	ScanComplete    bool                       `json:"scan_complete"`
}

// ObjectDetected reports whether the run produced at least one detection
func (r *VideoRun) ObjectDetected() bool {
	return r.Ledger.Len() > 0
}

// RunEvent is published once a run finishes
type RunEvent struct {
	RunID           string                     `json:"run_id"`
	WorkerID        string                     `json:"worker_id"`
	VideoName       string                     `json:"video_name"`
	Status          string                     `json:"status"`
	Error           string                     `json:"error,omitempty"`
	ObjectDetected  bool                       `json:"object_detected"`
	TotalDetections int                        `json:"total_detections"`
	FramesScanned   int                        `json:"frames_scanned"`
	Channels        map[Channel]ChannelSummary `json:"channels,omitempty"`
	Timestamp       time.Time                  `json:"timestamp"`
}

// MessagePublisher interface for publishing run events
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}
