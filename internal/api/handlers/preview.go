package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cutwatch-worker-go/internal/services/preview"
)

type PreviewHandler struct {
	publisher *preview.Publisher
}

func NewPreviewHandler(publisher *preview.Publisher) *PreviewHandler {
	return &PreviewHandler{publisher: publisher}
}

type ActivePreviewsResponse struct {
	Runs []string `json:"runs"`
}

// ListActive godoc
// @Summary List runs in progress
// @Tags runs
// @Produce json
// @Success 200 {object} ActivePreviewsResponse
// @Router /api/v1/previews [get]
func (h *PreviewHandler) ListActive(c *gin.Context) {
	c.JSON(http.StatusOK, ActivePreviewsResponse{Runs: h.publisher.Active()})
}

// Stream godoc
// @Summary Live preview of a run
// @Description MJPEG stream of the annotated frames of a run in progress
// @Tags runs
// @Produce multipart/x-mixed-replace
// @Param run_id path string true "Run ID"
// @Failure 404 {string} string
// @Router /api/v1/runs/{run_id}/preview [get]
func (h *PreviewHandler) Stream(c *gin.Context) {
	h.publisher.StreamMJPEGHTTP(c.Writer, c.Request, c.Param("run_id"))
}
