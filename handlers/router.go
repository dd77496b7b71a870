package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/internal/auth"
	"github.com/intelogroup/searchmatic/services"
)

const profileIDKey = "profile_id"

// Handler wires every HTTP endpoint to the service layer.
type Handler struct {
	authService *auth.Service
	chat        *services.ChatService
	analysis    *services.AnalysisService
	export      *services.ExportService
	importer    *services.ImportService
	projects    *db.ProjectRepository
	protocols   *db.ProtocolRepository
	studies     *db.StudyRepository
	logger      *zap.SugaredLogger
}

func NewHandler(
	authService *auth.Service,
	chat *services.ChatService,
	analysis *services.AnalysisService,
	export *services.ExportService,
	importer *services.ImportService,
	projects *db.ProjectRepository,
	protocols *db.ProtocolRepository,
	studies *db.StudyRepository,
	logger *zap.SugaredLogger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		authService: authService,
		chat:        chat,
		analysis:    analysis,
		export:      export,
		importer:    importer,
		projects:    projects,
		protocols:   protocols,
		studies:     studies,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.handleRegister)
	authGroup.POST("/login", h.handleLogin)

	authed := apiGroup.Group("")
	authed.Use(h.requireAuth)

	authed.GET("/projects", h.handleListProjects)
	authed.POST("/projects", h.handleCreateProject)
	authed.GET("/projects/:id", h.handleGetProject)
	authed.PATCH("/projects/:id", h.handleUpdateProject)
	authed.DELETE("/projects/:id", h.handleDeleteProject)

	authed.GET("/projects/:id/protocol", h.handleGetProtocol)
	authed.PUT("/projects/:id/protocol", h.handlePutProtocol)

	authed.GET("/projects/:id/conversations", h.handleListConversations)
	authed.POST("/projects/:id/conversations", h.handleCreateConversation)
	authed.GET("/conversations/:id", h.handleGetConversation)
	authed.PATCH("/conversations/:id", h.handleUpdateConversationTitle)
	authed.DELETE("/conversations/:id", h.handleDeleteConversation)
	authed.POST("/conversations/:id/messages", h.handleSendMessage)
	authed.GET("/conversations/:id/stream", h.handleChatStream)
	authed.DELETE("/messages/:id", h.handleDeleteMessage)

	authed.GET("/projects/:id/studies", h.handleListStudies)
	authed.POST("/projects/:id/studies", h.handleCreateStudy)
	authed.POST("/projects/:id/studies/search", h.handleSearchStudies)
	authed.PATCH("/studies/:id", h.handleUpdateStudyScreening)
	authed.DELETE("/studies/:id", h.handleDeleteStudy)

	authed.POST("/projects/:id/articles/import", h.handleImportArticles)
	authed.GET("/projects/:id/articles/raw", h.handleListRawArticles)

	authed.POST("/projects/:id/export", h.handleExport)
	authed.GET("/projects/:id/exports", h.handleExportHistory)

	authed.POST("/analyze", h.handleAnalyze)
}

func (h *Handler) requireAuth(c *gin.Context) {
	token := parseAuthorizationToken(c.GetHeader("Authorization"))
	if token == "" {
		writeError(c, http.StatusUnauthorized, "missing bearer token", auth.ErrInvalidToken)
		c.Abort()
		return
	}

	profileID, err := h.authService.VerifyToken(token)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "invalid token", err)
		c.Abort()
		return
	}

	c.Set(profileIDKey, profileID)
	c.Next()
}

func ownerID(c *gin.Context) string {
	return c.GetString(profileIDKey)
}

func parseAuthorizationToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}

func writeError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

// respondSuccess and respondFailure implement the envelope used by the
// analyze/search/export/chat function endpoints.
func respondSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondFailure(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound),
		errors.Is(err, services.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, services.ErrSendInFlight):
		return http.StatusConflict
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrNoConversation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
