package models

import (
	"encoding/json"
	"time"
)

// DefaultConversationTitle is assigned when a conversation is created
// without an explicit title; the first user message replaces it.
const DefaultConversationTitle = "New Conversation"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message statuses. A streaming assistant message starts as a placeholder
// and is finalized in place.
const (
	MessageStatusComplete  = "complete"
	MessageStatusStreaming = "streaming"
	MessageStatusFailed    = "failed"
)

type Conversation struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Status         string          `json:"status"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}
