package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"cutwatch-worker-go/internal/services/evidence"
)

// ArtifactHandler serves evidence frames and processed videos from disk
type ArtifactHandler struct {
	evidenceDir string
	outputDir   string
}

func NewArtifactHandler(evidenceDir, outputDir string) *ArtifactHandler {
	return &ArtifactHandler{evidenceDir: evidenceDir, outputDir: outputDir}
}

// Evidence godoc
// @Summary Get an evidence frame
// @Tags artifacts
// @Produce image/jpeg
// @Param run_id path string true "Run ID"
// @Param file path string true "Evidence file name"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/runs/{run_id}/evidence/{file} [get]
func (h *ArtifactHandler) Evidence(c *gin.Context) {
	path, err := evidence.ResolveFile(h.evidenceDir, c.Param("run_id"), c.Param("file"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "evidence not found"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "evidence not found"})
		return
	}
	c.Header("Content-Type", "image/jpeg")
	c.File(path)
}

// Output godoc
// @Summary Download a processed video
// @Tags artifacts
// @Produce video/mp4
// @Param file path string true "Processed video file name"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/outputs/{file} [get]
func (h *ArtifactHandler) Output(c *gin.Context) {
	name := c.Param("file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, "processed_") {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "video not found"})
		return
	}
	path := filepath.Join(h.outputDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "video not found"})
		return
	}
	c.FileAttachment(path, name)
}
