package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cutwatch-worker-go/internal/logging"
	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/services/pipeline"
)

// Analyzer runs one analysis request
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.VideoRun, error)
}

type AnalysisHandler struct {
	analyzer  Analyzer
	uploadDir string
	now       func() time.Time
}

func NewAnalysisHandler(analyzer Analyzer, uploadDir string) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, uploadDir: uploadDir, now: time.Now}
}

type ChannelStatus struct {
	Requested bool   `json:"requested"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Rejected  string `json:"rejected,omitempty"`
}

type AnalysisResponse struct {
	RunID           string                   `json:"run_id" example:"run_20240309-140507_1a2b3c4d"`
	VideoName       string                   `json:"video_name" example:"hall.mp4"`
	ObjectDetected  bool                     `json:"object_detected"`
	TotalDetections int                      `json:"total_detections" example:"25"`
	Shown           int                      `json:"shown" example:"10"`
	Truncated       bool                     `json:"truncated"`
	FramesScanned   int                      `json:"frames_scanned" example:"1500"`
	OutputVideo     string                   `json:"output_video,omitempty"`
	Evidence        []string                 `json:"evidence"`
	Channels        map[string]ChannelStatus `json:"channels"`
}

type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	FramesScanned *int   `json:"frames_scanned,omitempty"`
}

// Analyze godoc
// @Summary Analyze a video for sharp objects
// @Description Upload a video, scan it and send the requested alerts. The call returns when the run is finished.
// @Tags analyses
// @Accept multipart/form-data
// @Produce json
// @Param video formData file true "Video file"
// @Param alert_telegram formData bool false "Send Telegram alerts"
// @Param telegram_username formData string false "Registered Telegram handle"
// @Param alert_email formData bool false "Send email alerts"
// @Param email_recipient formData string false "Email recipient"
// @Param generate_video formData bool false "Write an annotated copy of the video"
// @Param confidence formData number false "Detection confidence threshold (0-1]"
// @Success 200 {object} AnalysisResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/analyses [post]
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	req, err := parseAnalysisForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_request"})
		return
	}

	file, err := c.FormFile("video")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "video exceeds upload limit", Code: "too_large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "video file is required", Code: "invalid_request"})
		return
	}

	req.VideoName = pipeline.SanitizeFileName(file.Filename)
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		logging.Error(c).Err(err).Str("dir", h.uploadDir).Msg("Failed to create upload directory")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to store upload"})
		return
	}
	req.SourcePath = filepath.Join(h.uploadDir, fmt.Sprintf("%d_%s", h.now().UnixNano(), req.VideoName))
	if err := c.SaveUploadedFile(file, req.SourcePath); err != nil {
		logging.Error(c).Err(err).Msg("Failed to save upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to store upload"})
		return
	}

	logging.Info(c).
		Str("video", req.VideoName).
		Int64("size", file.Size).
		Bool("telegram", req.AlertTelegram).
		Bool("email", req.AlertEmail).
		Bool("generate_video", req.GenerateVideo).
		Msg("Video received")

	// a started run finishes even if the client goes away
	run, err := h.analyzer.Analyze(context.WithoutCancel(c.Request.Context()), req)
	if run != nil {
		logging.SetRunID(c, run.ID)
	}
	if err != nil {
		status, body := analysisError(run, err)
		if status >= http.StatusInternalServerError {
			logging.Error(c).Err(err).Msg("Analysis failed")
		} else {
			logging.Warn(c).Err(err).Msg("Analysis rejected")
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, newAnalysisResponse(req, run))
}

func parseAnalysisForm(c *gin.Context) (models.AnalysisRequest, error) {
	var req models.AnalysisRequest
	var err error

	if req.AlertTelegram, err = formBool(c, "alert_telegram"); err != nil {
		return req, err
	}
	if req.AlertEmail, err = formBool(c, "alert_email"); err != nil {
		return req, err
	}
	if req.GenerateVideo, err = formBool(c, "generate_video"); err != nil {
		return req, err
	}
	req.TelegramHandle = strings.TrimSpace(c.PostForm("telegram_username"))
	req.EmailRecipient = strings.TrimSpace(c.PostForm("email_recipient"))

	if v := strings.TrimSpace(c.PostForm("confidence")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return req, fmt.Errorf("confidence must be a number in (0, 1]")
		}
		req.ConfidenceThreshold = f
	}
	return req, nil
}

func formBool(c *gin.Context, key string) (bool, error) {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

func analysisError(run *models.VideoRun, err error) (int, ErrorResponse) {
	body := ErrorResponse{Error: err.Error()}
	if run != nil {
		body.RunID = run.ID
	}

	switch {
	case errors.Is(err, models.ErrNotRegistered):
		body.Code = "recipient_not_registered"
		return http.StatusBadRequest, body
	case errors.Is(err, models.ErrInvalidRequest):
		body.Code = "invalid_request"
		return http.StatusBadRequest, body
	case errors.Is(err, models.ErrSourceUnreadable):
		body.Code = "source_unreadable"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, models.ErrScanTruncated), errors.Is(err, models.ErrDetectorFailed):
		body.Code = "scan_truncated"
		if errors.Is(err, models.ErrDetectorFailed) {
			body.Code = "detector_failed"
		}
		var scanErr *models.ScanError
		if errors.As(err, &scanErr) {
			n := scanErr.FramesScanned
			body.FramesScanned = &n
		}
		return http.StatusInternalServerError, body
	default:
		body.Code = "internal_error"
		return http.StatusInternalServerError, body
	}
}

func newAnalysisResponse(req models.AnalysisRequest, run *models.VideoRun) AnalysisResponse {
	resp := AnalysisResponse{
		RunID:           run.ID,
		VideoName:       run.VideoName,
		ObjectDetected:  run.ObjectDetected(),
		TotalDetections: run.Ledger.Len(),
		Shown:           run.Selection.Shown(),
		Truncated:       run.Selection.Truncated,
		FramesScanned:   run.Ledger.FramesScanned,
		Evidence:        make([]string, 0, len(run.EvidenceFiles)),
		Channels: map[string]ChannelStatus{
			models.ChannelTelegram.String(): {Requested: req.AlertTelegram},
			models.ChannelEmail.String():    {Requested: req.AlertEmail},
		},
	}
	if run.OutputVideoPath != "" {
		resp.OutputVideo = "/api/v1/outputs/" + filepath.Base(run.OutputVideoPath)
	}
	for _, name := range run.EvidenceFiles {
		resp.Evidence = append(resp.Evidence, fmt.Sprintf("/api/v1/runs/%s/evidence/%s", run.ID, name))
	}
	for ch, summary := range run.Summaries {
		status := resp.Channels[ch.String()]
		status.Sent = summary.Sent
		status.Failed = summary.Failed
		status.Rejected = summary.Rejected
		resp.Channels[ch.String()] = status
	}
	return resp
}
