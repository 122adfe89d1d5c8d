package postprocessing

import (
	"fmt"
	"html"
	"strings"

	"cutwatch-worker-go/internal/models"
)

// Notification is one message handed to a channel adapter
type Notification struct {
	Kind      models.NotificationKind
	Subject   string
	Text      string // Telegram HTML
	PlainText string // e-mail body
	PhotoPath string // optional evidence image
	Detection *models.Detection
}

func detectionNotification(videoName string, det models.Detection, photoPath string) Notification {
	name := html.EscapeString(videoName)
	confidence := fmt.Sprintf("%.1f%%", det.Confidence*100)

	var text strings.Builder
	fmt.Fprintf(&text, "<b>ALERT</b>: Sharp object detected!\n\nVideo: <code>%s</code>", name)
	fmt.Fprintf(&text, "\nFrame: %d (%s)", det.FrameIndex, det.TimestampLabel())
	fmt.Fprintf(&text, "\nConfidence: %s", confidence)

	plain := fmt.Sprintf("A sharp object was detected in video: %s\n\nFrame: %d (%s)\nConfidence: %s\nClass: %s\n",
		videoName, det.FrameIndex, det.TimestampLabel(), confidence, det.ClassLabel)

	d := det
	return Notification{
		Kind:      models.NotificationDetection,
		Subject:   fmt.Sprintf("ALERT: sharp object detected in %s", videoName),
		Text:      text.String(),
		PlainText: plain,
		PhotoPath: photoPath,
		Detection: &d,
	}
}

func summaryNotification(videoName string, shown, total int) Notification {
	return Notification{
		Kind:    models.NotificationSummary,
		Subject: fmt.Sprintf("Summary: %d of %d detections in %s", shown, total, videoName),
		Text: fmt.Sprintf("<b>Summary</b>: %d of %d detections in <code>%s</code> were sent individually.",
			shown, total, html.EscapeString(videoName)),
		PlainText: fmt.Sprintf("%d of %d detections in video %s were sent individually. The remaining detections are available in the analysis result.\n",
			shown, total, videoName),
	}
}

func clearNotification(videoName string) Notification {
	return Notification{
		Kind:      models.NotificationClear,
		Subject:   fmt.Sprintf("No sharp objects detected in %s", videoName),
		Text:      fmt.Sprintf("No sharp objects detected in video: <code>%s</code>", html.EscapeString(videoName)),
		PlainText: fmt.Sprintf("No sharp objects were detected in video: %s\n", videoName),
	}
}
