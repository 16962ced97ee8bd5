package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
	"peakmotif/internal"
	"peakmotif/internal/errors"
	"peakmotif/ports"
)

// defaultRunLimit caps run listings without an explicit limit
const defaultRunLimit = 50

// RunsHandler serves stored runs and their results
type RunsHandler struct {
	repo   ports.ResultRepository
	logger *internal.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(repo ports.ResultRepository, logger *internal.Logger) *RunsHandler {
	return &RunsHandler{repo: repo, logger: logger}
}

// ListRuns returns the most recent runs
func (h *RunsHandler) ListRuns(c *gin.Context) {
	limit, ok := h.queryInt(c, "limit", defaultRunLimit)
	if !ok {
		return
	}
	runs, err := h.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns one run summary
func (h *RunsHandler) GetRun(c *gin.Context) {
	runID, ok := h.runIDParam(c)
	if !ok {
		return
	}
	run, err := h.repo.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetResults returns a run's ranked results. ?significant=true keeps only
// motifs passing the adjusted threshold; ?limit=N keeps the top N.
func (h *RunsHandler) GetResults(c *gin.Context) {
	runID, ok := h.runIDParam(c)
	if !ok {
		return
	}
	limit, ok := h.queryInt(c, "limit", 0)
	if !ok {
		return
	}
	if _, err := h.repo.GetRun(c.Request.Context(), runID); err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.repo.GetResults(c.Request.Context(), runID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if c.Query("significant") == "true" {
		kept := results[:0:0]
		for _, r := range results {
			if r.PAdjSig == 1 {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []enrichment.MotifResult{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "results": results, "count": len(results)})
}

// GetFailures returns the motifs that could not be fit
func (h *RunsHandler) GetFailures(c *gin.Context) {
	runID, ok := h.runIDParam(c)
	if !ok {
		return
	}
	if _, err := h.repo.GetRun(c.Request.Context(), runID); err != nil {
		h.respondError(c, err)
		return
	}
	failures, err := h.repo.GetFailures(c.Request.Context(), runID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if failures == nil {
		failures = []enrichment.MotifFailure{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "failures": failures, "count": len(failures)})
}

func (h *RunsHandler) respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	switch code {
	case errors.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": code})
	case errors.CodeValidationError:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": code})
	default:
		h.logger.WithField("path", c.FullPath()).Error("request failed: %v", err)
		appErr := errors.InternalError("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": appErr.Message, "code": appErr.Code})
	}
}

func (h *RunsHandler) runIDParam(c *gin.Context) (core.RunID, bool) {
	runID, err := core.ParseRunID(c.Param("runId"))
	if err != nil {
		h.respondError(c, errors.WithCode(errors.CodeValidationError, err))
		return "", false
	}
	return runID, true
}

func (h *RunsHandler) queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		h.respondError(c, errors.ValidationError(fmt.Sprintf("invalid %s %q", key, raw)))
		return 0, false
	}
	return v, true
}
