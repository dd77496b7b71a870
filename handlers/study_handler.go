package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/intelogroup/searchmatic/db/models"
	"github.com/intelogroup/searchmatic/services"
)

type studyRequest struct {
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Journal  string `json:"journal"`
	Year     int    `json:"year"`
	Abstract string `json:"abstract"`
	DOI      string `json:"doi"`
}

func (h *Handler) handleListStudies(c *gin.Context) {
	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}

	studies, err := h.studies.ListByProject(c.Request.Context(), owner, projectID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list studies", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": studies})
}

func (h *Handler) handleCreateStudy(c *gin.Context) {
	var req studyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(c, http.StatusBadRequest, "title is required", nil)
		return
	}

	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}

	now := time.Now().UTC()
	study := models.Study{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		OwnerID:         owner,
		Title:           strings.TrimSpace(req.Title),
		Authors:         strings.TrimSpace(req.Authors),
		Journal:         strings.TrimSpace(req.Journal),
		Year:            req.Year,
		Abstract:        strings.TrimSpace(req.Abstract),
		DOI:             strings.TrimSpace(req.DOI),
		ScreeningStatus: models.ScreeningPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.studies.Create(c.Request.Context(), &study); err != nil {
		writeError(c, statusFromError(err), "failed to create study", err)
		return
	}
	c.JSON(http.StatusCreated, study)
}

type searchStudiesRequest struct {
	Query string `json:"query"`
}

func (h *Handler) handleSearchStudies(c *gin.Context) {
	var req searchStudiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondFailure(c, http.StatusBadRequest, "query is required")
		return
	}

	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		respondFailure(c, statusFromError(err), "project not found")
		return
	}

	studies, err := h.analysis.SearchStudies(c.Request.Context(), owner, projectID, req.Query)
	if err != nil {
		respondFailure(c, http.StatusInternalServerError, "search failed")
		return
	}
	respondSuccess(c, gin.H{"studies": studies})
}

type screeningRequest struct {
	ScreeningStatus string `json:"screeningStatus"`
}

func (h *Handler) handleUpdateStudyScreening(c *gin.Context) {
	var req screeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	switch req.ScreeningStatus {
	case models.ScreeningPending, models.ScreeningIncluded, models.ScreeningExcluded:
	default:
		writeError(c, http.StatusBadRequest, "invalid screening status", nil)
		return
	}

	if err := h.studies.UpdateScreening(c.Request.Context(), ownerID(c), c.Param("id"), req.ScreeningStatus); err != nil {
		writeError(c, statusFromError(err), "failed to update study", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleDeleteStudy(c *gin.Context) {
	if err := h.studies.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		writeError(c, statusFromError(err), "failed to delete study", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type importArticlesRequest struct {
	Source   string           `json:"source"`
	Articles []map[string]any `json:"articles"`
}

func (h *Handler) handleImportArticles(c *gin.Context) {
	var req importArticlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}
	if len(req.Articles) == 0 {
		writeError(c, http.StatusBadRequest, "at least one article is required", nil)
		return
	}

	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}

	summary, err := h.importer.ImportArticles(c.Request.Context(), owner, projectID, req.Source, req.Articles)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "import failed", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) handleListRawArticles(c *gin.Context) {
	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}

	articles, err := h.importer.ListRawArticles(c.Request.Context(), owner, projectID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list raw articles", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

type analyzeRequest struct {
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
}

func (h *Handler) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Abstract) == "" {
		respondFailure(c, http.StatusBadRequest, "abstract is required")
		return
	}

	suggestion, err := h.analysis.AnalyzeAbstract(c.Request.Context(), ownerID(c), services.AnalyzeRequest{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Abstract:  req.Abstract,
	})
	if err != nil {
		respondFailure(c, http.StatusBadGateway, "analysis failed")
		return
	}
	respondSuccess(c, suggestion)
}
