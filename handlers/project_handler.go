package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/db/models"
)

type projectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Progress    *int   `json:"progress"`
}

func (h *Handler) handleListProjects(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), ownerID(c))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *Handler) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeError(c, http.StatusBadRequest, "title is required", nil)
		return
	}

	now := time.Now().UTC()
	project := models.Project{
		ID:          uuid.NewString(),
		OwnerID:     ownerID(c),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Type:        valueOrDefault(req.Type, "systematic_review"),
		Status:      valueOrDefault(req.Status, "draft"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Progress != nil {
		project.Progress = *req.Progress
	}

	if err := h.projects.Create(c.Request.Context(), &project); err != nil {
		writeError(c, statusFromError(err), "failed to create project", err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *Handler) handleGetProject(c *gin.Context) {
	project, err := h.projects.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) handleUpdateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	project, err := h.projects.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}

	if strings.TrimSpace(req.Title) != "" {
		project.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		project.Description = strings.TrimSpace(req.Description)
	}
	if req.Type != "" {
		project.Type = req.Type
	}
	if req.Status != "" {
		project.Status = req.Status
	}
	if req.Progress != nil {
		project.Progress = *req.Progress
	}

	if err := h.projects.Update(c.Request.Context(), project); err != nil {
		writeError(c, statusFromError(err), "failed to update project", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) handleDeleteProject(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		writeError(c, statusFromError(err), "failed to delete project", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type protocolRequest struct {
	Title             string   `json:"title"`
	Population        string   `json:"population"`
	Intervention      string   `json:"intervention"`
	Comparison        string   `json:"comparison"`
	Outcome           string   `json:"outcome"`
	InclusionCriteria []string `json:"inclusionCriteria"`
	ExclusionCriteria []string `json:"exclusionCriteria"`
	Status            string   `json:"status"`
}

func (h *Handler) handleGetProtocol(c *gin.Context) {
	protocol, err := h.protocols.GetByProject(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		writeError(c, statusFromError(err), "protocol not found", err)
		return
	}
	c.JSON(http.StatusOK, protocol)
}

func (h *Handler) handlePutProtocol(c *gin.Context) {
	var req protocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}

	now := time.Now().UTC()
	protocol := models.Protocol{
		ID:                uuid.NewString(),
		ProjectID:         projectID,
		OwnerID:           owner,
		Title:             strings.TrimSpace(req.Title),
		Population:        strings.TrimSpace(req.Population),
		Intervention:      strings.TrimSpace(req.Intervention),
		Comparison:        strings.TrimSpace(req.Comparison),
		Outcome:           strings.TrimSpace(req.Outcome),
		InclusionCriteria: req.InclusionCriteria,
		ExclusionCriteria: req.ExclusionCriteria,
		Status:            valueOrDefault(req.Status, "draft"),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Keep the original id and created_at when a protocol already exists.
	if existing, err := h.protocols.GetByProject(c.Request.Context(), owner, projectID); err == nil {
		protocol.ID = existing.ID
		protocol.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusInternalServerError, "failed to load protocol", err)
		return
	}

	if err := h.protocols.Upsert(c.Request.Context(), &protocol); err != nil {
		writeError(c, http.StatusInternalServerError, "failed to save protocol", err)
		return
	}
	c.JSON(http.StatusOK, protocol)
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
