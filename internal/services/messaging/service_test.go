package messaging

import (
	"testing"
	"time"

	"cutwatch-worker-go/internal/models"
)

func TestRunEventRoundTrip(t *testing.T) {
	sent := models.RunEvent{
		RunID:           "run_20240309-140507_1a2b3c4d",
		WorkerID:        "worker-1",
		VideoName:       "hall.mp4",
		Status:          "completed",
		ObjectDetected:  true,
		TotalDetections: 25,
		FramesScanned:   300,
		Channels: map[models.Channel]models.ChannelSummary{
			models.ChannelTelegram: {Sent: 11, Shown: 10, Total: 25, Truncated: true},
		},
		Timestamp: time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
	}

	payload, err := encodeEvent(sent)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeRunEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != sent.RunID || got.TotalDetections != 25 || !got.Timestamp.Equal(sent.Timestamp) {
		t.Errorf("decoded %+v", got)
	}
	if tg := got.Channels[models.ChannelTelegram]; tg.Sent != 11 || !tg.Truncated {
		t.Errorf("telegram summary = %+v", tg)
	}
}

func TestDecodeRunEventRejectsMalformed(t *testing.T) {
	for _, payload := range []string{`not json`, `{"status":"completed"}`} {
		if _, err := decodeRunEvent([]byte(payload)); err == nil {
			t.Errorf("expected error for %q", payload)
		}
	}
}

func TestEncodeEventUnencodable(t *testing.T) {
	if _, err := encodeEvent(make(chan int)); err == nil {
		t.Error("expected error for a channel value")
	}
}
