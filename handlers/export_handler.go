package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intelogroup/searchmatic/db/models"
)

type exportRequest struct {
	Kind   string `json:"kind"`
	Format string `json:"format"`
}

func (h *Handler) handleExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "invalid payload")
		return
	}

	if req.Kind == "" {
		req.Kind = models.ExportKindConversations
	}
	if req.Format == "" {
		req.Format = models.ExportFormatJSON
	}

	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		respondFailure(c, statusFromError(err), "project not found")
		return
	}

	result, err := h.export.Export(c.Request.Context(), owner, projectID, req.Kind, req.Format)
	if err != nil {
		respondFailure(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

func (h *Handler) handleExportHistory(c *gin.Context) {
	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		respondFailure(c, statusFromError(err), "project not found")
		return
	}

	logs, err := h.export.History(c.Request.Context(), owner, projectID)
	if err != nil {
		respondFailure(c, http.StatusInternalServerError, "failed to list exports")
		return
	}
	respondSuccess(c, gin.H{"exports": logs})
}
