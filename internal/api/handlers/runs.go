package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cutwatch-worker-go/internal/logging"
	"cutwatch-worker-go/internal/repository/sqlite"
)

// RunStore reads the run history
type RunStore interface {
	Recent(ctx context.Context, limit int) ([]sqlite.RunRecord, error)
	GetByID(ctx context.Context, id string) (*sqlite.RunRecord, error)
}

type RunHandler struct {
	runs RunStore
}

func NewRunHandler(runs RunStore) *RunHandler {
	return &RunHandler{runs: runs}
}

type RunsResponse struct {
	Total int                `json:"total"`
	Runs  []sqlite.RunRecord `json:"runs"`
}

// ListRuns godoc
// @Summary List recent runs
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum number of runs to return (default: 50)"
// @Success 200 {object} RunsResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/runs [get]
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list runs")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []sqlite.RunRecord{}
	}
	c.JSON(http.StatusOK, RunsResponse{Total: len(runs), Runs: runs})
}

// GetRun godoc
// @Summary Get a run
// @Tags runs
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} sqlite.RunRecord
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/runs/{run_id} [get]
func (h *RunHandler) GetRun(c *gin.Context) {
	rec, err := h.runs.GetByID(c.Request.Context(), c.Param("run_id"))
	if errors.Is(err, sqlite.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
		return
	}
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to load run")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load run"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
