package handler

import (
	"net/http"

	"gigmarket/backend/internal/jobs"

	"github.com/gin-gonic/gin"
)

type CreateJobRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// CreateJob handles POST /api/v1/jobs
func (h *Handler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	job, err := h.Jobs.Create(c.Request.Context(), GetUserID(c), req.Kind)
	if err != nil {
		respondJobError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, job)
}

// ReportJob handles PATCH /api/v1/jobs/:id
func (h *Handler) ReportJob(c *gin.Context) {
	var req jobs.Update
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	job, err := h.Jobs.Report(c.Request.Context(), c.Param("id"), GetUserID(c), req)
	if err != nil {
		respondJobError(c, err)
		return
	}

	respondOK(c, http.StatusOK, job)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Jobs.Get(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondJobError(c, err)
		return
	}

	respondOK(c, http.StatusOK, job)
}
