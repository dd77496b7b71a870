package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

type updateConversationRequest struct {
	Title string `json:"title"`
}

func (h *Handler) handleListConversations(c *gin.Context) {
	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}

	conversations, err := h.chat.ListConversations(c.Request.Context(), owner, projectID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list conversations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *Handler) handleCreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	owner := ownerID(c)
	projectID := c.Param("id")

	if _, err := h.projects.Get(c.Request.Context(), owner, projectID); err != nil {
		writeError(c, statusFromError(err), "project not found", err)
		return
	}

	conversation, err := h.chat.CreateConversation(c.Request.Context(), owner, projectID, req.Title)
	if err != nil {
		writeError(c, statusFromError(err), "failed to create conversation", err)
		return
	}
	c.JSON(http.StatusCreated, conversation)
}

func (h *Handler) handleGetConversation(c *gin.Context) {
	conversation, err := h.chat.GetConversation(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		writeError(c, statusFromError(err), "conversation not found", err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func (h *Handler) handleUpdateConversationTitle(c *gin.Context) {
	var req updateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}
	if req.Title == "" {
		writeError(c, http.StatusBadRequest, "title is required", nil)
		return
	}

	if err := h.chat.UpdateConversationTitle(c.Request.Context(), ownerID(c), c.Param("id"), req.Title); err != nil {
		writeError(c, statusFromError(err), "failed to update conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleDeleteConversation(c *gin.Context) {
	if err := h.chat.DeleteConversation(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		writeError(c, statusFromError(err), "failed to delete conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleDeleteMessage(c *gin.Context) {
	if err := h.chat.DeleteMessage(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		writeError(c, statusFromError(err), "failed to delete message", err)
		return
	}
	c.Status(http.StatusNoContent)
}
